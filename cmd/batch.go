package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pricer/internal/model"
	"github.com/sells-group/pricer/internal/scenario"
)

var (
	batchInput  string
	batchOutput string
	batchLimit  int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Evaluate a CSV of scenarios and write JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		in, err := os.Open(batchInput)
		if err != nil {
			return eris.Wrapf(err, "batch: open %s", batchInput)
		}
		defer in.Close() //nolint:errcheck

		items, err := readScenarios(in)
		if err != nil {
			return err
		}

		history, err := openStore(ctx)
		if err != nil {
			return err
		}
		if history != nil {
			defer history.Close() //nolint:errcheck
		}

		engine, _, err := trainEngine(ctx, history, nil)
		if err != nil {
			return err
		}

		results, err := processBatch(ctx, items, batchLimit, cfg.Batch.Concurrency, func(ctx context.Context, values map[string]any) (*model.Response, error) {
			sc, err := scenario.Decode(values)
			if err != nil {
				return nil, err
			}
			return engine.Handle(ctx, sc)
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if batchOutput != "" {
			f, err := os.Create(batchOutput)
			if err != nil {
				return eris.Wrapf(err, "batch: create %s", batchOutput)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return writeResults(out, results)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "CSV of scenarios with a header of field names")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "JSON lines output file (default stdout)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of scenarios to evaluate (0 means all)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

// batchResult is one output line. Line is the 1-based data row of the input.
type batchResult struct {
	Line     int             `json:"line"`
	Product  string          `json:"product,omitempty"`
	Response *model.Response `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
	Field    string          `json:"field,omitempty"`
}

// evalFunc answers a single scenario given as raw field values.
type evalFunc func(ctx context.Context, values map[string]any) (*model.Response, error)

// readScenarios reads a CSV whose header names scenario fields. Cells stay
// strings; coercion happens in scenario.Decode. Empty cells are treated as
// missing.
func readScenarios(r io.Reader) ([]map[string]any, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "batch: read header")
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
	}

	var items []map[string]any
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "batch: read row %d", len(items)+1)
		}
		values := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) && strings.TrimSpace(rec[i]) != "" {
				values[col] = rec[i]
			}
		}
		items = append(items, values)
	}
	return items, nil
}

// processBatch applies limit, then evaluates scenarios concurrently. Results
// keep input order; a failed scenario is reported in its result and does not
// abort the batch.
func processBatch(ctx context.Context, items []map[string]any, limit, concurrency int, eval evalFunc) ([]batchResult, error) {
	if len(items) == 0 {
		zap.L().Info("no scenarios found")
		return nil, nil
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("scenarios", len(items)),
		zap.Int("concurrency", concurrency),
	)

	results := make([]batchResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, values := range items {
		g.Go(func() error {
			res := batchResult{Line: i + 1}
			if p, ok := values[model.FieldProductName].(string); ok {
				res.Product = strings.TrimSpace(p)
			}
			log := zap.L().With(zap.Int("line", res.Line), zap.String("product", res.Product))

			resp, err := eval(gctx, values)
			if err != nil {
				failed.Add(1)
				res.Error = err.Error()
				if ve, ok := model.AsValidation(err); ok {
					res.Field = ve.Field
				}
				log.Warn("scenario failed", zap.Error(err))
				results[i] = res
				return nil
			}

			succeeded.Add(1)
			res.Response = resp
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "batch cancelled")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results, nil
}

func writeResults(w io.Writer, results []batchResult) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "batch: write result")
		}
	}
	return nil
}
