//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricer/internal/catalog"
	"github.com/sells-group/pricer/internal/config"
	"github.com/sells-group/pricer/internal/dataset"
)

const testCatalogYAML = `
categories:
  - name: Tools
    price_min: 10
    price_max: 20
    products: [Widget, Sprocket]
  - name: Kitchen
    price_min: 50
    price_max: 120
    products: [Kettle]
`

// withTestConfig points cfg at a freshly generated three-product dataset in
// a temp dir and restores the previous cfg when the test ends.
func withTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	catPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catPath, []byte(testCatalogYAML), 0o644))

	cat, err := catalog.Load(catPath)
	require.NoError(t, err)
	obs := dataset.Generate(cat, dataset.GenerateOptions{Seed: 7, SamplesPerMonth: 4})

	dataPath := filepath.Join(dir, "observations.csv")
	f, err := os.Create(dataPath)
	require.NoError(t, err)
	require.NoError(t, dataset.WriteCSV(f, obs))
	require.NoError(t, f.Close())

	c := &config.Config{
		Dataset: config.DatasetConfig{Path: dataPath, Table: "observations"},
		Model: config.ModelConfig{
			Trees:           5,
			Seed:            42,
			TestFraction:    0.2,
			MinSamplesSplit: 2,
			Workers:         2,
		},
		Optimizer: config.OptimizerConfig{GridPoints: 20, NegativeDemand: "keep"},
		Server: config.ServerConfig{
			Port:               5000,
			RequestTimeoutSecs: 5,
			RateLimitRPS:       100,
			RateLimitBurst:     100,
		},
		Store:   config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "pricer.db")},
		Catalog: config.CatalogConfig{Path: catPath},
		Batch:   config.BatchConfig{Concurrency: 2},
		Log:     config.LogConfig{Level: "info", Format: "console"},
	}

	old := cfg
	cfg = c
	t.Cleanup(func() { cfg = old })
	return c
}
