package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pricer/internal/db"
	"github.com/sells-group/pricer/internal/model"
)

// DefaultTable is the table observations are read from and imported into.
const DefaultTable = "observations"

// selectQuery selects every dataset column, zero-filling NULLs.
func selectQuery(table string) string {
	cols := make([]string, 0, len(model.DatasetColumns))
	for _, c := range model.DatasetColumns {
		switch c {
		case model.FieldProductName, model.FieldProductCategory:
			cols = append(cols, fmt.Sprintf("COALESCE(CAST(%s AS TEXT), '0')", c))
		default:
			cols = append(cols, fmt.Sprintf("COALESCE(CAST(%s AS DOUBLE PRECISION), 0)", c))
		}
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), db.QuotedTable(table))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObservation(row scanner) (model.Observation, error) {
	var product, category string
	vals := make([]float64, len(model.NumericFields)+1)
	dest := []any{&product, &category}
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := row.Scan(dest...); err != nil {
		return model.Observation{}, err
	}

	nums := make(map[string]float64, len(vals))
	for i, col := range model.NumericFields {
		nums[col] = vals[i]
	}
	nums[model.FieldQty] = vals[len(vals)-1]
	return observation(product, category, nums), nil
}

// readOnlyDSN turns a sqlite path or file: URI into a read-only URI so a
// mistyped path fails instead of creating an empty database.
func readOnlyDSN(dsn string) string {
	if dsn == "" || dsn == ":memory:" || strings.Contains(dsn, "mode=") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&mode=ro"
	}
	return dsn + "?mode=ro"
}

// LoadSQLite reads observations from a SQLite table.
func LoadSQLite(ctx context.Context, dsn, table string) (*Dataset, error) {
	if table == "" {
		table = DefaultTable
	}
	conn, err := sql.Open("sqlite", readOnlyDSN(dsn))
	if err != nil {
		return nil, eris.Wrapf(model.ErrDatasetUnavailable, "dataset: sqlite: open %s: %v", dsn, err)
	}
	defer conn.Close() //nolint:errcheck

	rows, err := conn.QueryContext(ctx, selectQuery(table))
	if err != nil {
		return nil, eris.Wrapf(model.ErrDatasetUnavailable, "dataset: sqlite: query %s: %v", table, err)
	}
	defer rows.Close() //nolint:errcheck

	var obs []model.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "dataset: sqlite: scan")
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "dataset: sqlite: iterate")
	}
	return New(obs)
}

// LoadPostgres reads observations from a Postgres table.
func LoadPostgres(ctx context.Context, pool db.Pool, table string) (*Dataset, error) {
	if table == "" {
		table = DefaultTable
	}
	rows, err := pool.Query(ctx, selectQuery(table))
	if err != nil {
		return nil, eris.Wrapf(model.ErrDatasetUnavailable, "dataset: postgres: query %s: %v", table, err)
	}
	obs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Observation, error) {
		return scanObservation(r)
	})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: postgres: scan")
	}
	return New(obs)
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS %s (
	product_name     TEXT NOT NULL,
	product_category TEXT NOT NULL,
	promotion        INTEGER NOT NULL DEFAULT 0,
	unit_price       DOUBLE PRECISION NOT NULL,
	comp_1           DOUBLE PRECISION NOT NULL DEFAULT 0,
	comp_2           DOUBLE PRECISION NOT NULL DEFAULT 0,
	comp_3           DOUBLE PRECISION NOT NULL DEFAULT 0,
	holiday          INTEGER NOT NULL DEFAULT 0,
	weekend          INTEGER NOT NULL DEFAULT 0,
	month            INTEGER NOT NULL,
	qty              DOUBLE PRECISION NOT NULL DEFAULT 0
)`

// Import creates the observations table if needed and bulk-copies ds into it.
func Import(ctx context.Context, pool db.Pool, table string, ds *Dataset) (int64, error) {
	if table == "" {
		table = DefaultTable
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(createTableSQL, db.QuotedTable(table))); err != nil {
		return 0, eris.Wrapf(err, "dataset: create table %s", table)
	}

	rows := make([][]any, 0, ds.Len())
	for _, o := range ds.obs {
		rows = append(rows, []any{
			o.ProductName, o.ProductCategory, o.Promotion, o.UnitPrice,
			o.Comp1, o.Comp2, o.Comp3, o.Holiday, o.Weekend, o.Month, o.Qty,
		})
	}
	n, err := db.CopyFrom(ctx, pool, table, model.DatasetColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "dataset: import")
	}
	return n, nil
}

// SaveSQLite writes ds into a SQLite table, creating it if needed.
func SaveSQLite(ctx context.Context, dsn, table string, ds *Dataset) error {
	if table == "" {
		table = DefaultTable
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return eris.Wrap(err, "dataset: sqlite: open")
	}
	defer conn.Close() //nolint:errcheck

	quoted := db.QuotedTable(table)
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(createTableSQL, quoted)); err != nil {
		return eris.Wrapf(err, "dataset: sqlite: create table %s", table)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "dataset: sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		quoted, strings.Join(model.DatasetColumns, ", "),
	))
	if err != nil {
		return eris.Wrap(err, "dataset: sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, o := range ds.obs {
		if _, err := stmt.ExecContext(ctx,
			o.ProductName, o.ProductCategory, o.Promotion, o.UnitPrice,
			o.Comp1, o.Comp2, o.Comp3, o.Holiday, o.Weekend, o.Month, o.Qty,
		); err != nil {
			return eris.Wrap(err, "dataset: sqlite: insert")
		}
	}
	return eris.Wrap(tx.Commit(), "dataset: sqlite: commit")
}
