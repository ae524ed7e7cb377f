package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricer/internal/catalog"
	"github.com/sells-group/pricer/internal/dataset"
	"github.com/sells-group/pricer/internal/estimate"
	"github.com/sells-group/pricer/internal/metrics"
	"github.com/sells-group/pricer/internal/pricing"
	"github.com/sells-group/pricer/internal/resilience"
	"github.com/sells-group/pricer/internal/scenario"
	"github.com/sells-group/pricer/internal/store"
)

func datasetSource() dataset.Source {
	return dataset.Source{
		Path:   cfg.Dataset.Path,
		Format: cfg.Dataset.Format,
		Table:  cfg.Dataset.Table,
		Sheet:  cfg.Dataset.Sheet,
	}
}

func estimateOptions() estimate.Options {
	return estimate.Options{
		Trees:           cfg.Model.Trees,
		Seed:            cfg.Model.Seed,
		TestFraction:    cfg.Model.TestFraction,
		MinSamplesSplit: cfg.Model.MinSamplesSplit,
		MaxFeatures:     cfg.Model.MaxFeatures,
		Workers:         cfg.Model.Workers,
	}
}

func searchOptions() (pricing.SearchOptions, error) {
	policy, err := pricing.ParsePolicy(cfg.Optimizer.NegativeDemand)
	if err != nil {
		return pricing.SearchOptions{}, err
	}
	return pricing.SearchOptions{GridPoints: cfg.Optimizer.GridPoints, Policy: policy}, nil
}

func metricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:  cfg.Metrics.Enabled,
		Endpoint: cfg.Metrics.Endpoint,
		Insecure: cfg.Metrics.Insecure,
		Interval: time.Duration(cfg.Metrics.IntervalSecs) * time.Second,
	}
}

func retryPolicy(operation string) resilience.Policy {
	p := resilience.NewPolicy(cfg.Store.ConnectAttempts, cfg.Store.ConnectBackoffMs)
	p.OnRetry = resilience.LogRetries(operation)
	return p
}

// loadDataset reads the configured dataset, retrying transient failures of
// database-backed sources.
func loadDataset(ctx context.Context) (*dataset.Dataset, error) {
	return resilience.Do(ctx, retryPolicy("load dataset"), func(ctx context.Context) (*dataset.Dataset, error) {
		return dataset.Load(ctx, datasetSource())
	})
}

// trainEngine loads the dataset, fits the estimator and builds the engine.
func trainEngine(ctx context.Context, history store.Store, rec metrics.Recorder) (*scenario.Engine, *estimate.Report, error) {
	ds, err := loadDataset(ctx)
	if err != nil {
		return nil, nil, err
	}

	est, rep, err := estimate.Train(ctx, ds, estimateOptions())
	if err != nil {
		return nil, nil, err
	}
	if rec != nil {
		rec.Training(ctx, rep.RMSE, rep.Duration)
	}

	search, err := searchOptions()
	if err != nil {
		return nil, nil, err
	}

	opts := scenario.Options{Search: search, Metrics: rec}
	if history != nil {
		opts.History = history
	}
	engine, err := scenario.NewEngine(est, ds, opts)
	if err != nil {
		return nil, nil, eris.Wrap(err, "build engine")
	}
	return engine, rep, nil
}

// engineOrUnavailable is trainEngine for the server: a dataset or training
// failure yields an engine that refuses predictions instead of an error.
func engineOrUnavailable(ctx context.Context, history store.Store, rec metrics.Recorder) *scenario.Engine {
	engine, _, err := trainEngine(ctx, history, rec)
	if err == nil {
		return engine
	}
	zap.L().Error("model unavailable, serving without predictions", zap.Error(err))

	cat, catErr := catalog.Load(cfg.Catalog.Path)
	if catErr != nil {
		zap.L().Warn("catalog unavailable", zap.Error(catErr))
		cat = nil
	}
	return scenario.Unavailable(err, cat, rec)
}

func openStore(ctx context.Context) (store.Store, error) {
	return resilience.Do(ctx, retryPolicy("open store"), func(ctx context.Context) (store.Store, error) {
		return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	})
}
