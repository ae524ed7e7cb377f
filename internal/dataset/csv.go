package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricer/internal/model"
)

// LoadCSV reads a dataset CSV file from disk.
func LoadCSV(ctx context.Context, path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(model.ErrDatasetUnavailable, "dataset: open %s: %v", path, err)
	}
	defer f.Close() //nolint:errcheck

	obs, err := ReadCSV(ctx, f)
	if err != nil {
		return nil, err
	}
	return New(obs)
}

// ReadCSV parses dataset rows from r. The first record must be a header
// naming every dataset column; extra columns are ignored.
func ReadCSV(ctx context.Context, r io.Reader) ([]model.Observation, error) {
	rowCh, errCh := streamCSV(ctx, r)

	var (
		idx columnIndex
		obs []model.Observation
	)
	line := 0
	for rec := range rowCh {
		line++
		if idx == nil {
			var err error
			if idx, err = newColumnIndex(rec); err != nil {
				drain(rowCh)
				return nil, err
			}
			continue
		}
		o, err := idx.parseRecord(rec, line)
		if err != nil {
			drain(rowCh)
			return nil, err
		}
		obs = append(obs, o)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, eris.New("dataset: csv has no header")
	}
	return obs, nil
}

// streamCSV reads records on a goroutine. Both channels are closed when
// reading completes; at most one error is sent.
func streamCSV(ctx context.Context, r io.Reader) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(rowCh)

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.ReuseRecord = false

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "dataset: csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "dataset: csv: read row")
				return
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "dataset: csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func drain(ch <-chan []string) {
	for range ch {
	}
}

// WriteCSV writes observations with a header row.
func WriteCSV(w io.Writer, obs []model.Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.DatasetColumns); err != nil {
		return eris.Wrap(err, "dataset: csv: write header")
	}
	for _, o := range obs {
		if err := cw.Write(record(o)); err != nil {
			return eris.Wrap(err, "dataset: csv: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "dataset: csv: flush")
}
