package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/akhanna222/email2kg/internal/model"
)

func sampleData() ([]model.Transaction, []model.ExtractionAttempt, map[string]model.Party) {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC)

	txs := []model.Transaction{
		{
			ID:              "tx-1",
			DocumentID:      "doc-1",
			PartyID:         "party-1",
			Amount:          123.45,
			Currency:        "USD",
			TransactionDate: &date,
			TransactionType: "invoice",
			Description:     "INV-42",
			CreatedAt:       created,
		},
		{
			ID:              "tx-2",
			DocumentID:      "doc-2",
			PartyID:         "party-unknown",
			Amount:          50,
			Currency:        "EUR",
			TransactionType: "receipt",
			CreatedAt:       created,
		},
	}
	attempts := []model.ExtractionAttempt{
		{
			ID:             "att-1",
			DocumentID:     "doc-1",
			Method:         model.MethodLLM,
			Success:        true,
			ExtractionTime: 2.5,
			CreatedAt:      created,
		},
	}
	parties := map[string]model.Party{
		"party-1": {ID: "party-1", Name: "Acme Corp"},
	}
	return txs, attempts, parties
}

func TestWorkbook(t *testing.T) {
	txs, attempts, parties := sampleData()
	path := filepath.Join(t.TempDir(), "out.xlsx")

	require.NoError(t, Workbook(txs, attempts, parties, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)

	txSheet := f.Sheets[0]
	assert.Equal(t, "Transactions", txSheet.Name)
	require.Len(t, txSheet.Rows, 3)
	assert.Equal(t, "Transaction ID", txSheet.Rows[0].Cells[0].String())
	assert.Equal(t, "tx-1", txSheet.Rows[1].Cells[0].String())
	assert.Equal(t, "Acme Corp", txSheet.Rows[1].Cells[2].String())
	assert.Equal(t, "2024-03-15", txSheet.Rows[1].Cells[5].String())

	// Unresolvable party falls back to the raw id; missing date is blank.
	assert.Equal(t, "party-unknown", txSheet.Rows[2].Cells[2].String())
	assert.Equal(t, "", txSheet.Rows[2].Cells[5].String())

	logSheet := f.Sheets[1]
	assert.Equal(t, "Extraction Log", logSheet.Name)
	require.Len(t, logSheet.Rows, 2)
	assert.Equal(t, "att-1", logSheet.Rows[1].Cells[0].String())
	assert.Equal(t, "llm", logSheet.Rows[1].Cells[2].String())
}

func TestTransactionsCSV(t *testing.T) {
	txs, _, parties := sampleData()
	path := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, TransactionsCSV(txs, parties, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, transactionColumns, records[0])
	assert.Equal(t, "123.45", records[1][3])
	assert.Equal(t, "Acme Corp", records[1][2])
	assert.Equal(t, "50.00", records[2][3])
}

func TestWorkbook_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, Workbook(nil, nil, nil, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)
	assert.Len(t, f.Sheets[0].Rows, 1)
}
