// Package metrics records optimizer activity. The OTel recorder exports to
// an OTLP collector; NoOp is used when metrics are disabled.
package metrics

import (
	"context"
	"time"
)

// Failure kinds passed to Recorder.Failure.
const (
	KindValidation = "validation"
	KindNotTrained = "not_trained"
	KindInternal   = "internal"
)

// Evaluation describes one completed scenario evaluation.
type Evaluation struct {
	Product string
	// Fallback is set when Product had no catalog band.
	Fallback bool
	Duration time.Duration
	// Uplift is the optimal profit minus the profit at the caller's price.
	Uplift float64
}

// Recorder receives optimizer events.
type Recorder interface {
	Evaluation(ctx context.Context, e Evaluation)
	Failure(ctx context.Context, kind string)
	Training(ctx context.Context, rmse float64, d time.Duration)
	Close(ctx context.Context) error
}

// NoOp discards everything.
type NoOp struct{}

func (NoOp) Evaluation(context.Context, Evaluation)           {}
func (NoOp) Failure(context.Context, string)                  {}
func (NoOp) Training(context.Context, float64, time.Duration) {}
func (NoOp) Close(context.Context) error                      { return nil }
