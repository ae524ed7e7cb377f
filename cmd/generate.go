package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pricer/internal/catalog"
	"github.com/sells-group/pricer/internal/dataset"
)

var (
	generateOutput  string
	generateSeed    uint64
	generateSamples int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Synthesize a reference dataset from the product catalog",
	Long: "Synthesize a reference dataset from the product catalog.\n" +
		"The output format follows the file extension: .csv, .xlsx, or .db/.sqlite.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cat, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}

		obs := dataset.Generate(cat, dataset.GenerateOptions{
			Seed:            generateSeed,
			SamplesPerMonth: generateSamples,
		})

		switch strings.ToLower(filepath.Ext(generateOutput)) {
		case ".xlsx":
			err = dataset.WriteXLSX(generateOutput, obs)
		case ".db", ".sqlite", ".sqlite3":
			var ds *dataset.Dataset
			ds, err = dataset.New(obs)
			if err == nil {
				err = dataset.SaveSQLite(ctx, generateOutput, cfg.Dataset.Table, ds)
			}
		default:
			var f *os.File
			f, err = os.Create(generateOutput)
			if err != nil {
				return eris.Wrapf(err, "generate: create %s", generateOutput)
			}
			err = dataset.WriteCSV(f, obs)
			if cerr := f.Close(); err == nil && cerr != nil {
				err = eris.Wrap(cerr, "generate: close output")
			}
		}
		if err != nil {
			return err
		}

		zap.L().Info("dataset generated",
			zap.String("output", generateOutput),
			zap.Int("observations", len(obs)),
			zap.Int("products", cat.ProductCount()),
		)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateOutput, "output", "extended_retail_data.csv", "output file")
	generateCmd.Flags().Uint64Var(&generateSeed, "seed", 42, "random seed")
	generateCmd.Flags().IntVar(&generateSamples, "samples-per-month", 12, "observations per product and month")
	rootCmd.AddCommand(generateCmd)
}
