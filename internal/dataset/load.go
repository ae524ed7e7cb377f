package dataset

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricer/internal/model"
)

// Supported source formats.
const (
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
)

// Source locates a reference dataset.
type Source struct {
	// Path is a file path for csv/xlsx, a DSN for sqlite, or a connection
	// string for postgres.
	Path   string
	Format string
	// Table is the observations table for sqlite and postgres.
	Table string
	// Sheet is the worksheet name for xlsx. Empty means the first sheet.
	Sheet string
}

// DetectFormat infers a format from the path extension when Format is empty.
func (s Source) DetectFormat() string {
	if s.Format != "" {
		return strings.ToLower(s.Format)
	}
	if strings.HasPrefix(s.Path, "postgres://") || strings.HasPrefix(s.Path, "postgresql://") {
		return FormatPostgres
	}
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".xlsx":
		return FormatXLSX
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatCSV
	}
}

// Load reads the dataset described by src. Any failure to reach the source
// wraps model.ErrDatasetUnavailable.
func Load(ctx context.Context, src Source) (*Dataset, error) {
	if src.Path == "" {
		return nil, eris.Wrap(model.ErrDatasetUnavailable, "dataset: no path configured")
	}

	format := src.DetectFormat()
	var (
		ds  *Dataset
		err error
	)
	switch format {
	case FormatCSV:
		ds, err = LoadCSV(ctx, src.Path)
	case FormatXLSX:
		ds, err = LoadXLSX(src.Path, src.Sheet)
	case FormatSQLite:
		ds, err = LoadSQLite(ctx, src.Path, src.Table)
	case FormatPostgres:
		var pool *pgxpool.Pool
		pool, err = pgxpool.New(ctx, src.Path)
		if err != nil {
			return nil, eris.Wrapf(model.ErrDatasetUnavailable, "dataset: postgres: connect: %v", err)
		}
		defer pool.Close()
		ds, err = LoadPostgres(ctx, pool, src.Table)
	default:
		return nil, eris.Errorf("dataset: unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("dataset loaded",
		zap.String("format", format),
		zap.Int("rows", ds.Len()),
		zap.Int("products", ds.ProductCount()),
		zap.Int("categories", len(ds.categories)),
	)
	return ds, nil
}
