package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reunite-labs/petmatch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "petmatch",
	Short: "Lost and found pet matching engine",
	Long:  "Scores open found-pet reports against lost-pet reports using attribute, visual, geographic, and temporal signals, and raises match alerts for owners to review.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
