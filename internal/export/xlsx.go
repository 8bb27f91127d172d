// Package export renders session totals as spreadsheets.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/mmynk/splitlive/internal/calculator"
	"github.com/mmynk/splitlive/internal/models"
)

const (
	totalsSheet = "Totals"
	itemsSheet  = "Items"
)

// TotalsXLSX returns an XLSX workbook (as bytes) with one row per participant
// and one column per charge, plus an item sheet. Amounts are rounded to the
// session's decimal places and stored as numbers.
func TotalsXLSX(s *models.Session, totals []models.ParticipantTotal) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// The default sheet becomes the totals sheet.
	if err := f.SetSheetName("Sheet1", totalsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}
	index, _ := f.GetSheetIndex(totalsSheet)
	f.SetActiveSheet(index)

	places := s.Currency.DecimalPlaces
	write := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	headers := []string{"Participant", "Items"}
	for _, c := range s.Charges {
		headers = append(headers, c.Name)
	}
	headers = append(headers, "Total")
	for i, h := range headers {
		write(totalsSheet, i+1, 1, h)
	}

	row := 2
	var grand float64
	for _, t := range totals {
		write(totalsSheet, 1, row, t.Name)
		write(totalsSheet, 2, row, calculator.Round(t.Subtotal, places))
		byID := make(map[string]float64, len(t.Charges))
		for _, c := range t.Charges {
			byID[c.ChargeID] = c.Amount
		}
		for i, c := range s.Charges {
			write(totalsSheet, 3+i, row, calculator.Round(byID[c.ID], places))
		}
		write(totalsSheet, len(headers), row, calculator.Round(t.Total, places))
		grand += t.Total
		row++
	}
	write(totalsSheet, 1, row, "Total")
	write(totalsSheet, len(headers), row, calculator.Round(grand, places))

	for i, h := range []string{"Item", "Unit price", "Quantity", "Line total", "Mode"} {
		write(itemsSheet, i+1, 1, h)
	}
	for i, it := range s.Items {
		r := i + 2
		write(itemsSheet, 1, r, it.Name)
		write(itemsSheet, 2, r, it.UnitPrice)
		write(itemsSheet, 3, r, it.Quantity)
		write(itemsSheet, 4, r, calculator.Round(it.LineTotal(), places))
		write(itemsSheet, 5, r, string(it.SplitMode()))
	}

	// Widen a few columns
	_ = f.SetColWidth(totalsSheet, "A", "A", 24)
	_ = f.SetColWidth(itemsSheet, "A", "A", 32)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
