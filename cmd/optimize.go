package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/pricer/internal/model"
	"github.com/sells-group/pricer/internal/scenario"
)

var optimizeFile string

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Evaluate one scenario and search for its profit-maximizing price",
	Long: "Evaluate one scenario and search for its profit-maximizing price.\n" +
		"Fields come from --file (a JSON object) and are overridden by flags.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("optimize"); err != nil {
			return err
		}

		values, err := scenarioValues(cmd.Flags(), optimizeFile)
		if err != nil {
			return err
		}
		sc, err := scenario.Decode(values)
		if err != nil {
			return err
		}

		engine, _, err := trainEngine(ctx, nil, nil)
		if err != nil {
			return err
		}

		resp, err := engine.Handle(ctx, sc)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

// flagName maps a scenario field to its flag, e.g. unit_price to unit-price.
func flagName(field string) string {
	return strings.ReplaceAll(field, "_", "-")
}

// scenarioValues merges the optional JSON file with every flag set on the
// command line.
func scenarioValues(flags *pflag.FlagSet, path string) (map[string]any, error) {
	values := make(map[string]any)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "optimize: read %s", path)
		}
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, eris.Wrapf(err, "optimize: parse %s", path)
		}
	}
	for _, spec := range model.ScenarioFields {
		f := flags.Lookup(flagName(spec.Name))
		if f != nil && f.Changed {
			values[spec.Name] = f.Value.String()
		}
	}
	return values, nil
}

func init() {
	optimizeCmd.Flags().StringVar(&optimizeFile, "file", "", "JSON file holding the scenario fields")
	for _, spec := range model.ScenarioFields {
		optimizeCmd.Flags().String(flagName(spec.Name), "", spec.Name+" ("+string(spec.Kind)+")")
	}
	rootCmd.AddCommand(optimizeCmd)
}
