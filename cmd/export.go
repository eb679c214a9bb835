package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/akhanna222/email2kg/internal/export"
	"github.com/akhanna222/email2kg/internal/model"
	"github.com/akhanna222/email2kg/internal/store"
)

var (
	exportOutput string
	exportFormat string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export transactions and the extraction log",
	Long: `Writes extracted transactions (and, for xlsx, the extraction audit log)
to a spreadsheet.

Examples:
  email2kg export --output march.xlsx
  email2kg export --format csv --output transactions.csv`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "export.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "output format: xlsx or csv")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "max transactions (0 = all)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	txs, err := e.Store.ListTransactions(ctx, exportLimit)
	if err != nil {
		return err
	}
	parties, err := resolveParties(ctx, e.Store, txs)
	if err != nil {
		return err
	}

	switch strings.ToLower(exportFormat) {
	case "xlsx":
		attempts, err := e.Store.ListAttempts(ctx, store.AttemptFilter{})
		if err != nil {
			return err
		}
		if err := export.Workbook(txs, attempts, parties, exportOutput); err != nil {
			return err
		}
	case "csv":
		if err := export.TransactionsCSV(txs, parties, exportOutput); err != nil {
			return err
		}
	default:
		return eris.Errorf("unknown format %q", exportFormat)
	}

	fmt.Printf("wrote %d transactions to %s\n", len(txs), exportOutput)
	return nil
}

// resolveParties loads the party rows referenced by the transactions.
func resolveParties(ctx context.Context, st store.Store, txs []model.Transaction) (map[string]model.Party, error) {
	parties := make(map[string]model.Party)
	for _, tx := range txs {
		if tx.PartyID == "" {
			continue
		}
		if _, ok := parties[tx.PartyID]; ok {
			continue
		}
		p, err := st.GetParty(ctx, tx.PartyID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			parties[tx.PartyID] = *p
		}
	}
	return parties, nil
}
