package ocr

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// extractPlainText reads a text-based file (txt, csv, eml bodies) as-is.
func extractPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: read %s", path)
	}
	return string(data), nil
}

// extractXLSX flattens all sheets of a workbook into tab-separated lines.
// Tab separation keeps amounts and labels on the same line, which is what
// the label patterns expect.
func extractXLSX(path string) (string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: open xlsx %s", path)
	}

	var sb strings.Builder
	for _, sheet := range f.Sheets {
		for _, row := range sheet.Rows {
			cells := make([]string, len(row.Cells))
			for j, cell := range row.Cells {
				cells[j] = cell.String()
			}
			sb.WriteString(strings.Join(cells, "\t"))
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
