package main

import (
	"fmt"
	"io"
	"math"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/pricer/internal/estimate"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the demand model and report its hold-out error",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("train"); err != nil {
			return err
		}

		ds, err := loadDataset(ctx)
		if err != nil {
			return err
		}

		_, rep, err := estimate.Train(ctx, ds, estimateOptions())
		if err != nil {
			return err
		}

		return formatReport(cmd.OutOrStdout(), rep)
	},
}

func formatReport(w io.Writer, rep *estimate.Report) error {
	rmse := "n/a"
	if !math.IsNaN(rep.RMSE) {
		rmse = fmt.Sprintf("%.4f", rep.RMSE)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "train rows\t%d\n", rep.TrainSize)
	fmt.Fprintf(tw, "test rows\t%d\n", rep.TestSize)
	fmt.Fprintf(tw, "rmse\t%s\n", rmse)
	fmt.Fprintf(tw, "features\t%d\n", rep.Features)
	fmt.Fprintf(tw, "trees\t%d\n", rep.Trees)
	fmt.Fprintf(tw, "duration\t%s\n", rep.Duration)
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(trainCmd)
}
