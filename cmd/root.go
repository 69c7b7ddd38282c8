package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/census-insights/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "census-insights",
	Short: "India Census 2011 district analytics and policy insights",
	Long:  "Derives district indicators from the Census 2011 tables, trains the prediction, clustering and anomaly models, scores districts for policy intervention and serves the results over a REST API.",
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
