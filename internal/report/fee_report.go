// Package report renders fee periods as spreadsheets.
package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/xuri/excelize/v2"
)

const feeSheet = "Fees"

// FeeRow is one class line of the monthly fee report.
type FeeRow struct {
	ClassTitle string
	Period     model.FeePeriod
}

var feeHeader = []interface{}{
	"Class", "Month", "Rate per student", "Enrolled", "Expected", "Paid", "Due", "Status",
}

// WriteMonthlyFees writes an xlsx workbook with one row per fee period and a
// totals row.
func WriteMonthlyFees(w io.Writer, monthKey string, rows []FeeRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), feeSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(feeSheet, "A1", &feeHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	expected, paid, due := decimal.Zero, decimal.Zero, decimal.Zero
	for i, r := range rows {
		p := r.Period
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{
			r.ClassTitle,
			p.MonthKey,
			p.RatePerStudent.InexactFloat64(),
			p.EnrolledCount,
			p.ExpectedAmount.InexactFloat64(),
			p.AmountPaid.InexactFloat64(),
			p.DueAmount().InexactFloat64(),
			string(p.Status),
		}
		if err := f.SetSheetRow(feeSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
		expected = expected.Add(p.ExpectedAmount)
		paid = paid.Add(p.AmountPaid)
		due = due.Add(p.DueAmount())
	}

	totalRow := len(rows) + 2
	totalCell, _ := excelize.CoordinatesToCellName(1, totalRow)
	totals := []interface{}{
		"Total", monthKey, nil, nil,
		expected.InexactFloat64(), paid.InexactFloat64(), due.InexactFloat64(),
	}
	if err := f.SetSheetRow(feeSheet, totalCell, &totals); err != nil {
		return fmt.Errorf("write totals: %w", err)
	}

	lastRow := fmt.Sprint(totalRow)
	if err := f.SetCellStyle(feeSheet, "C2", "G"+lastRow, moneyStyle); err != nil {
		return fmt.Errorf("style amounts: %w", err)
	}
	if err := f.SetCellStyle(feeSheet, "A1", "H1", boldStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetCellStyle(feeSheet, "A"+lastRow, "H"+lastRow, boldStyle); err != nil {
		return fmt.Errorf("style totals: %w", err)
	}
	if err := f.SetColWidth(feeSheet, "A", "A", 32); err != nil {
		return fmt.Errorf("set width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
