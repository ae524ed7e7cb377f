package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pricer/internal/dataset"
)

var importTable string

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage the reference dataset",
}

var datasetImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy the configured dataset into a Postgres observations table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		ds, err := loadDataset(ctx)
		if err != nil {
			return err
		}

		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "dataset import: connect")
		}
		defer pool.Close()

		n, err := dataset.Import(ctx, pool, importTable, ds)
		if err != nil {
			return eris.Wrap(err, "dataset import")
		}

		zap.L().Info("import complete",
			zap.Int64("rows", n),
			zap.String("table", importTable),
			zap.String("source", cfg.Dataset.Path),
		)
		return nil
	},
}

func init() {
	datasetImportCmd.Flags().StringVar(&importTable, "table", dataset.DefaultTable, "destination table, optionally schema-qualified")
	datasetCmd.AddCommand(datasetImportCmd)
	rootCmd.AddCommand(datasetCmd)
}
