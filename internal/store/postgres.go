package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pricer/internal/db"
	"github.com/sells-group/pricer/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters. Zero values
// keep the defaults.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	defaultMaxConns = int32(10)
	defaultMinConns = int32(2)
)

// poolConfig parses connString and applies the pool tuning.
func poolConfig(connString string, poolCfg *PoolConfig) (*pgxpool.Config, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := defaultMaxConns
	minConns := defaultMinConns
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	if minConns > maxConns {
		minConns = maxConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	return pgxCfg, nil
}

// NewPostgres creates a PostgresStore with a connection pool. Statements are
// prepared and cached per connection by pgx on first use.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := poolConfig(connString, poolCfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS evaluations (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	product       TEXT NOT NULL,
	category      TEXT NOT NULL,
	unit_price    DOUBLE PRECISION NOT NULL,
	unit_cost     DOUBLE PRECISION NOT NULL,
	optimal_price DOUBLE PRECISION NOT NULL,
	max_profit    DOUBLE PRECISION NOT NULL,
	scenario      JSONB NOT NULL,
	response      JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_evaluations_product ON evaluations(product);
CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) RecordEvaluation(ctx context.Context, ev *model.Evaluation) error {
	stamp(ev)
	scenarioJSON, responseJSON, err := marshalEvaluation(ev)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evaluation")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO evaluations (id, product, category, unit_price, unit_cost, optimal_price, max_profit, scenario, response, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ev.ID, ev.Scenario.Row.ProductName, ev.Scenario.Row.ProductCategory,
		ev.Scenario.Row.UnitPrice, ev.Scenario.UnitCost,
		ev.Response.OptimalPrediction.OptimalPrice, ev.Response.OptimalPrediction.MaxProfit,
		scenarioJSON, responseJSON, ev.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert evaluation")
}

func (s *PostgresStore) GetEvaluation(ctx context.Context, id string) (*model.Evaluation, error) {
	var ev model.Evaluation
	var scenarioJSON, responseJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, scenario, response, created_at FROM evaluations WHERE id = $1`,
		id,
	).Scan(&ev.ID, &scenarioJSON, &responseJSON, &ev.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get evaluation %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get evaluation %s", id)
	}
	if err := unmarshalEvaluation(&ev, scenarioJSON, responseJSON); err != nil {
		return nil, eris.Wrap(err, "postgres: decode evaluation")
	}
	return &ev, nil
}

func (s *PostgresStore) ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]model.Evaluation, error) {
	query := `SELECT id, scenario, response, created_at FROM evaluations WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Product != "" {
		query += fmt.Sprintf(` AND product = $%d`, argIdx)
		args = append(args, filter.Product)
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list evaluations")
	}
	defer rows.Close()

	var out []model.Evaluation
	for rows.Next() {
		var ev model.Evaluation
		var scenarioJSON, responseJSON []byte
		if err := rows.Scan(&ev.ID, &scenarioJSON, &responseJSON, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan evaluation")
		}
		if err := unmarshalEvaluation(&ev, scenarioJSON, responseJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: decode evaluation")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate evaluations")
}
