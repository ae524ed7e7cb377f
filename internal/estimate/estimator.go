// Package estimate fits and serves the demand estimator: a one-hot encoder
// over the categorical schema fields feeding an extremely randomized trees
// regressor.
package estimate

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/pricer/internal/dataset"
	"github.com/sells-group/pricer/internal/model"
)

// Predictor maps feature rows to predicted demand, one value per row in
// order. Implementations must be safe for concurrent use.
type Predictor interface {
	Predict(rows []model.FeatureRow) ([]float64, error)
}

// Options configures training.
type Options struct {
	Trees           int
	Seed            uint64
	TestFraction    float64
	MinSamplesSplit int
	MaxFeatures     int
	Workers         int
}

// DefaultOptions returns the stock training configuration.
func DefaultOptions() Options {
	return Options{
		Trees:           50,
		Seed:            42,
		TestFraction:    0.2,
		MinSamplesSplit: 2,
		Workers:         4,
	}
}

func (o Options) forest() ForestOptions {
	return ForestOptions{
		Trees:           o.Trees,
		Seed:            o.Seed,
		MinSamplesSplit: o.MinSamplesSplit,
		MaxFeatures:     o.MaxFeatures,
		Workers:         o.Workers,
	}
}

// Estimator is a fitted encoder and forest. It is immutable after Fit and
// safe for concurrent Predict calls.
type Estimator struct {
	enc    *Encoder
	forest *Forest
}

// Report summarizes a training run.
type Report struct {
	TrainSize int           `json:"train_size"`
	TestSize  int           `json:"test_size"`
	RMSE      float64       `json:"rmse"`
	Features  int           `json:"features"`
	Trees     int           `json:"trees"`
	Duration  time.Duration `json:"duration"`
}

// Fit trains an estimator on every observation given.
func Fit(ctx context.Context, obs []model.Observation, opts Options) (*Estimator, error) {
	rows := make([]model.FeatureRow, len(obs))
	y := make([]float64, len(obs))
	for i, o := range obs {
		rows[i] = o.FeatureRow
		y[i] = o.Qty
	}

	enc := FitEncoder(rows)
	X := make([][]float64, len(rows))
	for i, r := range rows {
		X[i] = enc.Transform(r)
	}

	forest, err := FitForest(ctx, X, y, opts.forest())
	if err != nil {
		return nil, err
	}
	return &Estimator{enc: enc, forest: forest}, nil
}

// Train shuffles the dataset with opts.Seed, holds out opts.TestFraction of
// it, fits on the rest and reports the hold-out RMSE. When the hold-out
// would leave nothing to train on, the whole dataset is used and the RMSE
// is NaN.
func Train(ctx context.Context, ds *dataset.Dataset, opts Options) (*Estimator, *Report, error) {
	start := time.Now()
	obs := ds.Observations()

	r := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	r.Shuffle(len(obs), func(i, j int) { obs[i], obs[j] = obs[j], obs[i] })

	nTest := int(math.Ceil(float64(len(obs))*opts.TestFraction - 1e-9))
	if nTest < 0 || nTest >= len(obs) {
		nTest = 0
	}
	test, train := obs[:nTest], obs[nTest:]

	est, err := Fit(ctx, train, opts)
	if err != nil {
		return nil, nil, eris.Wrap(err, "estimate: train")
	}

	rep := &Report{
		TrainSize: len(train),
		TestSize:  len(test),
		RMSE:      math.NaN(),
		Features:  est.enc.Width(),
		Trees:     est.forest.Size(),
	}
	if len(test) > 0 {
		rows := make([]model.FeatureRow, len(test))
		actual := make([]float64, len(test))
		for i, o := range test {
			rows[i] = o.FeatureRow
			actual[i] = o.Qty
		}
		pred, err := est.Predict(rows)
		if err != nil {
			return nil, nil, eris.Wrap(err, "estimate: score hold-out")
		}
		rep.RMSE = RMSE(pred, actual)
	}
	rep.Duration = time.Since(start)

	zap.L().Info("estimator trained",
		zap.Int("train_size", rep.TrainSize),
		zap.Int("test_size", rep.TestSize),
		zap.Float64("rmse", rep.RMSE),
		zap.Int("features", rep.Features),
		zap.Int("trees", rep.Trees),
		zap.Duration("duration", rep.Duration),
	)
	return est, rep, nil
}

// Predict validates every row, then predicts demand for each. A nil
// Estimator reports model.ErrNotTrained.
func (e *Estimator) Predict(rows []model.FeatureRow) ([]float64, error) {
	if e == nil {
		return nil, model.ErrNotTrained
	}
	for _, r := range rows {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}

	out := make([]float64, len(rows))
	x := make([]float64, e.enc.Width())
	for i, r := range rows {
		clear(x)
		e.enc.transformInto(x, r)
		out[i] = e.forest.Predict(x)
	}
	return out, nil
}

// Encoder exposes the fitted encoder.
func (e *Estimator) Encoder() *Encoder {
	return e.enc
}

// RMSE is the root mean squared error between pred and actual.
func RMSE(pred, actual []float64) float64 {
	if len(pred) == 0 {
		return math.NaN()
	}
	return floats.Distance(pred, actual, 2) / math.Sqrt(float64(len(pred)))
}
