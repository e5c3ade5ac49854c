package report

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/stemsi/classbook-backend/internal/model"
)

func period(rate, enrolled, paid int64) model.FeePeriod {
	p := model.FeePeriod{
		MonthKey:       "2024-03",
		RatePerStudent: decimal.NewFromInt(rate),
		EnrolledCount:  int(enrolled),
		AmountPaid:     decimal.NewFromInt(paid),
	}
	p.Recompute()
	return p
}

func TestWriteMonthlyFees(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMonthlyFees(&buf, "2024-03", []FeeRow{
		{ClassTitle: "Maths", Period: period(500, 10, 2000)},
		{ClassTitle: "Physics", Period: period(300, 4, 1500)},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(feeSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "Class", rows[0][0])
	assert.Equal(t, "Maths", rows[1][0])
	assert.Equal(t, "partial", rows[1][7])
	assert.Equal(t, "paid", rows[2][7])
	assert.Equal(t, "Total", rows[3][0])

	due, err := f.GetCellValue(feeSheet, "G4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "3000", due)
}

func TestWriteMonthlyFeesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMonthlyFees(&buf, "2024-03", nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(feeSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
