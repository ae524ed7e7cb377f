package estimate

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricer/internal/dataset"
	"github.com/sells-group/pricer/internal/model"
)

// linearDemand builds a noise-free dataset where qty = 1000 - 10*price for
// Widget and a flat 50 for Kettle.
func linearDemand(t *testing.T) *dataset.Dataset {
	t.Helper()
	var obs []model.Observation
	for p := 1; p <= 90; p++ {
		price := float64(p)
		obs = append(obs,
			model.Observation{FeatureRow: row("Widget", "Tools", price), Qty: 1000 - 10*price},
			model.Observation{FeatureRow: row("Kettle", "Kitchen", price), Qty: 50},
		)
	}
	ds, err := dataset.New(obs)
	require.NoError(t, err)
	return ds
}

func TestTrain_Report(t *testing.T) {
	t.Parallel()

	ds := linearDemand(t)
	est, rep, err := Train(context.Background(), ds, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, est)

	assert.Equal(t, 36, rep.TestSize)
	assert.Equal(t, 144, rep.TrainSize)
	assert.Equal(t, 50, rep.Trees)
	assert.Equal(t, 2+2+len(model.NumericFields), rep.Features)
	assert.False(t, math.IsNaN(rep.RMSE))
	assert.Less(t, rep.RMSE, 50.0)
}

func TestTrain_NoHoldOut(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.TestFraction = 0
	_, rep, err := Train(context.Background(), linearDemand(t), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.TestSize)
	assert.Equal(t, 180, rep.TrainSize)
	assert.True(t, math.IsNaN(rep.RMSE))
}

func TestEstimator_PredictFollowsPrice(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.TestFraction = 0
	est, _, err := Train(context.Background(), linearDemand(t), opts)
	require.NoError(t, err)

	pred, err := est.Predict([]model.FeatureRow{
		row("Widget", "Tools", 10),
		row("Widget", "Tools", 80),
		row("Kettle", "Kitchen", 10),
	})
	require.NoError(t, err)
	require.Len(t, pred, 3)
	assert.InDelta(t, 900, pred[0], 1e-6)
	assert.InDelta(t, 200, pred[1], 1e-6)
	assert.InDelta(t, 50, pred[2], 1e-6)
}

func TestEstimator_PredictUnknownProduct(t *testing.T) {
	t.Parallel()

	est, err := Fit(context.Background(), linearDemand(t).Observations(), Options{Trees: 5, Seed: 1})
	require.NoError(t, err)

	pred, err := est.Predict([]model.FeatureRow{row("Hovercraft", "Vehicles", 10)})
	require.NoError(t, err)
	require.Len(t, pred, 1)
	assert.False(t, math.IsNaN(pred[0]))
}

func TestEstimator_PredictValidatesRows(t *testing.T) {
	t.Parallel()

	est, err := Fit(context.Background(), linearDemand(t).Observations(), Options{Trees: 2})
	require.NoError(t, err)

	partial := model.NewFeatureRowBuilder().ProductName("Widget").Partial()
	_, err = est.Predict([]model.FeatureRow{row("Widget", "Tools", 10), partial})
	require.Error(t, err)
	ve, ok := model.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, model.FieldProductCategory, ve.Field)
}

func TestEstimator_NilNotTrained(t *testing.T) {
	t.Parallel()

	var est *Estimator
	_, err := est.Predict([]model.FeatureRow{row("Widget", "Tools", 10)})
	assert.ErrorIs(t, err, model.ErrNotTrained)
}

func TestEstimator_ConcurrentPredict(t *testing.T) {
	t.Parallel()

	est, err := Fit(context.Background(), linearDemand(t).Observations(), Options{Trees: 5, Seed: 3})
	require.NoError(t, err)
	want, err := est.Predict([]model.FeatureRow{row("Widget", "Tools", 42)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := est.Predict([]model.FeatureRow{row("Widget", "Tools", 42)})
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestRMSE(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, math.Sqrt2, RMSE([]float64{1, 2}, []float64{1, 4}), 1e-12)
	assert.Equal(t, 0.0, RMSE([]float64{3}, []float64{3}))
	assert.True(t, math.IsNaN(RMSE(nil, nil)))
}
