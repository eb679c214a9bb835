package export

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/akhanna222/email2kg/internal/model"
)

// TransactionsCSV writes transactions as a CSV file with the same columns
// as the workbook's Transactions sheet.
func TransactionsCSV(txs []model.Transaction, parties map[string]model.Party, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(transactionColumns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for i := range txs {
		if err := w.Write(buildTransactionRecord(&txs[i], parties)); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	return nil
}

func buildTransactionRecord(tx *model.Transaction, parties map[string]model.Party) []string {
	partyName := tx.PartyID
	if p, ok := parties[tx.PartyID]; ok {
		partyName = p.Name
	}

	return []string{
		tx.ID,
		tx.DocumentID,
		partyName,
		strconv.FormatFloat(tx.Amount, 'f', 2, 64),
		tx.Currency,
		formatDate(tx.TransactionDate),
		tx.TransactionType,
		tx.Description,
		tx.CreatedAt.Format(time.RFC3339),
	}
}
