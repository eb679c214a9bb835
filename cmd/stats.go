package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akhanna222/email2kg/internal/cost"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show extraction usage and estimated template savings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		summary, err := e.Store.SummarizeUsage(ctx)
		if err != nil {
			return err
		}

		calc := cost.NewCalculator(cfg.Pricing.Anthropic)
		report := calc.Savings(summary, cfg.Anthropic.ExtractorModel)

		fmt.Printf("Template attempts:   %d\n", summary.TemplateAttempts)
		fmt.Printf("Template hits:       %d\n", summary.TemplateSuccesses)
		fmt.Printf("LLM calls:           %d\n", summary.LLMAttempts)
		fmt.Printf("LLM successes:       %d\n", summary.LLMSuccesses)
		fmt.Printf("Template hit rate:   %.1f%%\n", report.HitRate*100)
		fmt.Printf("Estimated savings:   $%.4f\n", report.EstimatedSavings)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
