package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/aid-simulator/internal/catalog"
)

var catalogFile string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the aid program catalog",
}

var catalogLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load programs from a YAML file into the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("catalog"); err != nil {
			return err
		}
		ctx := cmd.Context()

		programs, err := catalog.LoadFile(catalogFile)
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "catalog: init store")
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "catalog: migrate")
		}

		n, err := st.UpsertPrograms(ctx, programs)
		if err != nil {
			return eris.Wrap(err, "catalog: upsert")
		}

		zap.L().Info("catalog loaded",
			zap.String("file", catalogFile),
			zap.Int("programs", len(programs)),
			zap.Int64("rows", n),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %d programs from %s\n", len(programs), catalogFile)
		return nil
	},
}

func init() {
	catalogLoadCmd.Flags().StringVar(&catalogFile, "file", "", "catalog YAML file")
	_ = catalogLoadCmd.MarkFlagRequired("file")
	catalogCmd.AddCommand(catalogLoadCmd)
	rootCmd.AddCommand(catalogCmd)
}
