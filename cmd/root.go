package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akhanna222/email2kg/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "email2kg",
	Short: "Self-improving financial document extraction",
	Long:  "Extracts structured data from financial documents (invoices, receipts, statements), learns reusable templates from LLM extractions, and builds a knowledge graph of parties and transactions.",
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
