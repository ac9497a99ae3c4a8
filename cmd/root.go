package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/obradoria/budget-agent/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "budget-agent",
	Short: "AI-driven construction budget generation",
	Long:  "Turns free-text construction requests into priced budgets: extracts parameters via LLM, resolves a work item structure, matches items against the SINAPI catalog by vector similarity and prices them per state and reference period.",
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
