// Package store persists evaluated scenarios for later audit.
package store

import (
	"context"
	"errors"

	"github.com/sells-group/pricer/internal/model"
)

// ErrNotFound is returned by GetEvaluation for an unknown id.
var ErrNotFound = errors.New("evaluation not found")

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// EvaluationFilter specifies criteria for listing evaluations.
type EvaluationFilter struct {
	Product string `json:"product,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for evaluation history.
type Store interface {
	// RecordEvaluation stores ev, assigning ID and CreatedAt when unset.
	RecordEvaluation(ctx context.Context, ev *model.Evaluation) error
	GetEvaluation(ctx context.Context, id string) (*model.Evaluation, error)
	// ListEvaluations returns evaluations newest first.
	ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]model.Evaluation, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured driver and migrates it. DriverNone (or an
// empty driver) returns a nil Store. pool only applies to DriverPostgres and
// may be nil.
func Open(ctx context.Context, driver, dsn string, pool *PoolConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite:
		st, err = NewSQLite(dsn)
	case DriverPostgres:
		st, err = NewPostgres(ctx, dsn, pool)
	default:
		return nil, errors.New("store: unknown driver " + driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
