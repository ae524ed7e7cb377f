package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/pricer/internal/model"
	"github.com/sells-group/pricer/internal/pricing"
)

var bandsCmd = &cobra.Command{
	Use:   "bands",
	Short: "List the realistic price band of every product",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("bands"); err != nil {
			return err
		}

		ds, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}

		r := pricing.NewResolver(ds)
		bands := append(r.Bands(), r.Global())
		return formatBands(cmd.OutOrStdout(), bands)
	},
}

func formatBands(w io.Writer, bands []model.PriceBand) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tMIN\tMAX\tFALLBACK")
	for _, b := range bands {
		product := b.Product
		if product == "" {
			product = "(all products)"
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%t\n", product, b.Min, b.Max, b.Fallback)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(bandsCmd)
}
