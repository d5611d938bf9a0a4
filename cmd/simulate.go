package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/aid-simulator/internal/model"
)

var (
	simulateFile string
	simulateUser string
	simulateLang string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one simulation from a JSON situation file and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("simulate"); err != nil {
			return err
		}
		ctx := cmd.Context()

		raw, err := os.ReadFile(simulateFile)
		if err != nil {
			return eris.Wrapf(err, "simulate: read %s", simulateFile)
		}
		var situation model.UserSituation
		if err := json.Unmarshal(raw, &situation); err != nil {
			return eris.Wrap(err, "simulate: parse situation")
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Simulations.Run(ctx, simulateUser, situation, simulateLang)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateFile, "file", "", "JSON file holding the user situation")
	simulateCmd.Flags().StringVar(&simulateUser, "user", "", "user id; when set the result is saved to history")
	simulateCmd.Flags().StringVar(&simulateLang, "lang", "", "display language (default: catalog language)")
	_ = simulateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(simulateCmd)
}
