package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pricer/internal/model"
	"github.com/sells-group/pricer/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded scenario evaluations",
	Long:  "Commands for listing, viewing, and summarizing recorded evaluations.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("history")
	},
}

// -- history list --

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded evaluations, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		product, _ := cmd.Flags().GetString("product")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		evs, err := st.ListEvaluations(ctx, store.EvaluationFilter{Product: product, Limit: limit, Offset: offset})
		if err != nil {
			return eris.Wrap(err, "history list")
		}

		if len(evs) == 0 {
			fmt.Fprintln(os.Stderr, "No evaluations found.")
			return nil
		}

		formatHistoryList(cmd.OutOrStdout(), evs)
		return nil
	},
}

// -- history show --

var historyShowCmd = &cobra.Command{
	Use:   "show <evaluation-id>",
	Short: "Show a recorded evaluation in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ev, err := st.GetEvaluation(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "history show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(ev)
	},
}

// -- history stats --

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recorded evaluations per product",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		evs, err := st.ListEvaluations(ctx, store.EvaluationFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "history stats")
		}

		var cutoff time.Time
		if since > 0 {
			cutoff = time.Now().Add(-since)
		}
		formatHistoryStats(cmd.OutOrStdout(), computeHistoryStats(evs, cutoff))
		return nil
	},
}

func init() {
	historyListCmd.Flags().String("product", "", "filter by product name")
	historyListCmd.Flags().Int("limit", 50, "max number of evaluations to display")
	historyListCmd.Flags().Int("offset", 0, "number of evaluations to skip")

	historyStatsCmd.Flags().Duration("since", 0, "only count evaluations newer than this (e.g. 24h); 0 counts all")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatsCmd)
	rootCmd.AddCommand(historyCmd)
}

// productStats aggregates the evaluations of one product.
type productStats struct {
	Product   string
	Count     int
	AvgPrice  float64
	AvgOptim  float64
	AvgUplift float64
}

// uplift is how much more profit the optimal price earns than the caller's.
func uplift(ev model.Evaluation) float64 {
	return ev.Response.OptimalPrediction.MaxProfit - ev.Response.UserPrediction.Profit
}

// computeHistoryStats groups evaluations created at or after cutoff by
// product. A zero cutoff counts everything.
func computeHistoryStats(evs []model.Evaluation, cutoff time.Time) []productStats {
	byProduct := make(map[string]*productStats)
	for _, ev := range evs {
		if !cutoff.IsZero() && ev.CreatedAt.Before(cutoff) {
			continue
		}
		name := ev.Scenario.Row.ProductName
		s, ok := byProduct[name]
		if !ok {
			s = &productStats{Product: name}
			byProduct[name] = s
		}
		s.Count++
		s.AvgPrice += ev.Scenario.Row.UnitPrice
		s.AvgOptim += ev.Response.OptimalPrediction.OptimalPrice
		s.AvgUplift += uplift(ev)
	}

	out := make([]productStats, 0, len(byProduct))
	for _, s := range byProduct {
		n := float64(s.Count)
		s.AvgPrice /= n
		s.AvgOptim /= n
		s.AvgUplift /= n
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product < out[j].Product })
	return out
}

// formatHistoryList writes a tabular list of evaluations to out.
func formatHistoryList(out io.Writer, evs []model.Evaluation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPRODUCT\tPRICE\tOPTIMAL\tUPLIFT\tCREATED")
	for _, ev := range evs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%.2f\t%s\n",
			ev.ID,
			truncate(ev.Scenario.Row.ProductName, 30),
			ev.Scenario.Row.UnitPrice,
			ev.Response.OptimalPrediction.OptimalPrice,
			uplift(ev),
			ev.CreatedAt.Format(time.RFC3339),
		)
	}
	_ = w.Flush()
}

func formatHistoryStats(out io.Writer, stats []productStats) {
	if len(stats) == 0 {
		_, _ = fmt.Fprintln(out, "No evaluations found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PRODUCT\tCOUNT\tAVG_PRICE\tAVG_OPTIMAL\tAVG_UPLIFT")
	for _, s := range stats {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\n", s.Product, s.Count, s.AvgPrice, s.AvgOptim, s.AvgUplift)
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
