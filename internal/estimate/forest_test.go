package estimate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepData() ([][]float64, []float64) {
	var X [][]float64
	var y []float64
	for i := range 40 {
		x := float64(i)
		X = append(X, []float64{x, 1})
		if x < 20 {
			y = append(y, 100)
		} else {
			y = append(y, 10)
		}
	}
	return X, y
}

func TestFitForest_FitsTrainingData(t *testing.T) {
	t.Parallel()

	X, y := stepData()
	f, err := FitForest(context.Background(), X, y, ForestOptions{Trees: 10, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 10, f.Size())

	for i := range X {
		assert.InDelta(t, y[i], f.Predict(X[i]), 1e-9, "sample %d", i)
	}
	assert.InDelta(t, 100, f.Predict([]float64{-5, 1}), 1e-9)
	assert.InDelta(t, 10, f.Predict([]float64{500, 1}), 1e-9)
}

func TestFitForest_Deterministic(t *testing.T) {
	t.Parallel()

	X, y := stepData()
	a, err := FitForest(context.Background(), X, y, ForestOptions{Trees: 8, Seed: 42, Workers: 1})
	require.NoError(t, err)
	b, err := FitForest(context.Background(), X, y, ForestOptions{Trees: 8, Seed: 42, Workers: 8})
	require.NoError(t, err)

	for _, x := range []float64{-1, 3.3, 19.5, 20, 20.5, 33} {
		assert.Equal(t, a.Predict([]float64{x, 1}), b.Predict([]float64{x, 1}))
	}
}

func TestFitForest_ConstantTarget(t *testing.T) {
	t.Parallel()

	X := [][]float64{{1}, {2}, {3}}
	f, err := FitForest(context.Background(), X, []float64{7, 7, 7}, ForestOptions{Trees: 3})
	require.NoError(t, err)
	assert.Equal(t, 7.0, f.Predict([]float64{100}))
}

func TestFitForest_Errors(t *testing.T) {
	t.Parallel()

	_, err := FitForest(context.Background(), nil, nil, ForestOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no training samples")

	_, err = FitForest(context.Background(), [][]float64{{1}}, []float64{1, 2}, ForestOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 samples but 2 targets")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	X, y := stepData()
	_, err = FitForest(ctx, X, y, ForestOptions{Trees: 4})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
