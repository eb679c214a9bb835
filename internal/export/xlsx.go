// Package export writes transactions and the extraction audit log to
// spreadsheet files for downstream accounting tools.
package export

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/akhanna222/email2kg/internal/model"
)

// transactionColumns defines the ordered Transactions sheet columns.
var transactionColumns = []string{
	"Transaction ID",
	"Document ID",
	"Party",
	"Amount",
	"Currency",
	"Date",
	"Type",
	"Description",
	"Created At",
}

// attemptColumns defines the ordered Extraction Log sheet columns.
var attemptColumns = []string{
	"Attempt ID",
	"Document ID",
	"Method",
	"Template ID",
	"Success",
	"Extraction Time (s)",
	"Error",
	"Created At",
}

// Workbook writes transactions and extraction attempts as a two-sheet
// xlsx workbook. Party names are resolved through the supplied map keyed
// by party id; unresolved ids fall back to the raw id.
func Workbook(txs []model.Transaction, attempts []model.ExtractionAttempt, parties map[string]model.Party, outputPath string) error {
	f := xlsx.NewFile()

	txSheet, err := f.AddSheet("Transactions")
	if err != nil {
		return eris.Wrap(err, "export: add transactions sheet")
	}
	writeHeader(txSheet, transactionColumns)
	for i := range txs {
		writeTransactionRow(txSheet.AddRow(), &txs[i], parties)
	}

	logSheet, err := f.AddSheet("Extraction Log")
	if err != nil {
		return eris.Wrap(err, "export: add extraction log sheet")
	}
	writeHeader(logSheet, attemptColumns)
	for i := range attempts {
		writeAttemptRow(logSheet.AddRow(), &attempts[i])
	}

	if err := f.Save(outputPath); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

func writeHeader(sheet *xlsx.Sheet, columns []string) {
	row := sheet.AddRow()
	for _, col := range columns {
		row.AddCell().SetString(col)
	}
}

func writeTransactionRow(row *xlsx.Row, tx *model.Transaction, parties map[string]model.Party) {
	partyName := tx.PartyID
	if p, ok := parties[tx.PartyID]; ok {
		partyName = p.Name
	}

	row.AddCell().SetString(tx.ID)
	row.AddCell().SetString(tx.DocumentID)
	row.AddCell().SetString(partyName)
	row.AddCell().SetFloat(tx.Amount)
	row.AddCell().SetString(tx.Currency)
	row.AddCell().SetString(formatDate(tx.TransactionDate))
	row.AddCell().SetString(tx.TransactionType)
	row.AddCell().SetString(tx.Description)
	row.AddCell().SetString(tx.CreatedAt.Format(time.RFC3339))
}

func writeAttemptRow(row *xlsx.Row, a *model.ExtractionAttempt) {
	row.AddCell().SetString(a.ID)
	row.AddCell().SetString(a.DocumentID)
	row.AddCell().SetString(string(a.Method))
	row.AddCell().SetString(a.TemplateID)
	row.AddCell().SetBool(a.Success)
	row.AddCell().SetFloat(a.ExtractionTime)
	row.AddCell().SetString(a.ErrorMessage)
	row.AddCell().SetString(a.CreatedAt.Format(time.RFC3339))
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
