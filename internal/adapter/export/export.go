// Package export renders customer spreadsheets for download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/comings/prepaid-api/internal/core/domain"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	CSVContentType  = "text/csv; charset=utf-8"

	sheetName = "고객 데이터"
	utf8BOM   = "\ufeff"
)

var (
	header = []any{"고객명", "연락처", "잔액"}

	exampleRows = [][]any{
		{"홍길동", "01012341234", 50000},
		{"김철수", "01056785678", 30000},
		{"이영희", "01090129012", 0},
	}
)

// CustomerTemplate returns the import template workbook.
func CustomerTemplate() ([]byte, error) {
	return workbook(exampleRows)
}

// Customers returns a workbook with one row per customer in the given order.
// Customers without a stored phone show the masked suffix instead.
func Customers(customers []domain.Customer) ([]byte, error) {
	rows := make([][]any, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, []any{c.Name, c.MaskedPhone(), c.CurrentBalance})
	}
	return workbook(rows)
}

func workbook(rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for col, width := range map[string]float64{"A": 15, "B": 15, "C": 12} {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// CustomerTemplateCSV returns the onboarding template as CSV prefixed with a
// UTF-8 BOM so spreadsheet apps detect the Korean headers.
func CustomerTemplateCSV() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)

	w := csv.NewWriter(&buf)
	records := [][]string{{"고객명", "연락처", "잔액"}}
	for _, row := range exampleRows {
		records = append(records, []string{fmt.Sprint(row[0]), fmt.Sprint(row[1]), fmt.Sprint(row[2])})
	}
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
