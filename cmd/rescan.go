package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Run matching for every open lost report",
	Long:  "Sweeps all open lost reports, scoring each against current found reports. Useful after importing a batch of sightings.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		scanned, err := env.Matcher.RescanOpenReports(ctx)
		if err != nil {
			return eris.Wrap(err, "rescan")
		}

		zap.L().Info("rescan complete", zap.Int("reports_scanned", scanned))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rescanCmd)
}
