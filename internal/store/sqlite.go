package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pricer/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS evaluations (
	id            TEXT PRIMARY KEY,
	product       TEXT NOT NULL,
	category      TEXT NOT NULL,
	unit_price    REAL NOT NULL,
	unit_cost     REAL NOT NULL,
	optimal_price REAL NOT NULL,
	max_profit    REAL NOT NULL,
	scenario      TEXT NOT NULL,
	response      TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_evaluations_product ON evaluations(product);
CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordEvaluation(ctx context.Context, ev *model.Evaluation) error {
	stamp(ev)
	scenarioJSON, responseJSON, err := marshalEvaluation(ev)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evaluation")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evaluations (id, product, category, unit_price, unit_cost, optimal_price, max_profit, scenario, response, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Scenario.Row.ProductName, ev.Scenario.Row.ProductCategory,
		ev.Scenario.Row.UnitPrice, ev.Scenario.UnitCost,
		ev.Response.OptimalPrediction.OptimalPrice, ev.Response.OptimalPrediction.MaxProfit,
		string(scenarioJSON), string(responseJSON), ev.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert evaluation")
}

func (s *SQLiteStore) GetEvaluation(ctx context.Context, id string) (*model.Evaluation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, scenario, response, created_at FROM evaluations WHERE id = ?`,
		id,
	)
	ev, err := scanEvaluation(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get evaluation %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get evaluation %s", id)
	}
	return ev, nil
}

func (s *SQLiteStore) ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]model.Evaluation, error) {
	query := `SELECT id, scenario, response, created_at FROM evaluations WHERE 1=1`
	var args []any

	if filter.Product != "" {
		query += ` AND product = ?`
		args = append(args, filter.Product)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list evaluations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan evaluation")
		}
		out = append(out, *ev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate evaluations")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEvaluation(row scannable) (*model.Evaluation, error) {
	var ev model.Evaluation
	var scenarioJSON, responseJSON string
	if err := row.Scan(&ev.ID, &scenarioJSON, &responseJSON, &ev.CreatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalEvaluation(&ev, []byte(scenarioJSON), []byte(responseJSON)); err != nil {
		return nil, err
	}
	return &ev, nil
}

func stamp(ev *model.Evaluation) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
}

func marshalEvaluation(ev *model.Evaluation) (scenario, response []byte, err error) {
	if scenario, err = json.Marshal(ev.Scenario); err != nil {
		return nil, nil, err
	}
	if response, err = json.Marshal(ev.Response); err != nil {
		return nil, nil, err
	}
	return scenario, response, nil
}

func unmarshalEvaluation(ev *model.Evaluation, scenario, response []byte) error {
	if err := json.Unmarshal(scenario, &ev.Scenario); err != nil {
		return eris.Wrap(err, "unmarshal scenario")
	}
	if err := json.Unmarshal(response, &ev.Response); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}
