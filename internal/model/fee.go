package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeStatus enumerates payment states of a fee period.
type FeeStatus string

const (
	FeeStatusPending FeeStatus = "pending"
	FeeStatusPartial FeeStatus = "partial"
	FeeStatusPaid    FeeStatus = "paid"
)

// Payment methods accepted when recording a payment.
const (
	PaymentMethodCash         = "cash"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCard         = "card"
	PaymentMethodOther        = "other"
)

// FeePeriod is the monthly billing aggregate of one class.
type FeePeriod struct {
	ID             string          `json:"id"`
	ClassID        string          `json:"class_id"`
	OwnerID        string          `json:"owner_id"`
	MonthKey       string          `json:"month_key"`
	RatePerStudent decimal.Decimal `json:"rate_per_student"`
	EnrolledCount  int             `json:"enrolled_count"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	Status         FeeStatus       `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Money columns are NUMERIC(14, 2): two fractional digits and an absolute
// value below MaxMoney.
const MoneyScale = 2

var MaxMoney = decimal.New(1, 12)

// MoneyFits reports whether d is stored without rounding or overflow.
func MoneyFits(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale)) && d.Abs().LessThan(MaxMoney)
}

// FeePeriodID is the deterministic document key of a fee period.
func FeePeriodID(classID, monthKey string) string {
	return classID + "_" + monthKey
}

// FeeStatusFor derives the status from the two amounts alone.
//
//	paid    amountPaid >= expected, unless both are zero
//	pending amountPaid == 0
//	partial otherwise
func FeeStatusFor(amountPaid, expected decimal.Decimal) FeeStatus {
	switch {
	case amountPaid.GreaterThanOrEqual(expected) && (expected.IsPositive() || amountPaid.IsPositive()):
		return FeeStatusPaid
	case !amountPaid.IsPositive():
		return FeeStatusPending
	default:
		return FeeStatusPartial
	}
}

// Recompute refreshes ExpectedAmount and Status from rate, enrollment and
// AmountPaid. It is the only place either derived field is written.
func (p *FeePeriod) Recompute() {
	p.ExpectedAmount = p.RatePerStudent.Mul(decimal.NewFromInt(int64(p.EnrolledCount)))
	p.Status = FeeStatusFor(p.AmountPaid, p.ExpectedAmount)
}

// ApplyPayment adds amount to the running total and recomputes.
func (p *FeePeriod) ApplyPayment(amount decimal.Decimal) {
	p.AmountPaid = p.AmountPaid.Add(amount)
	p.Recompute()
}

// DueAmount is max(0, expected - paid).
func (p *FeePeriod) DueAmount() decimal.Decimal {
	due := p.ExpectedAmount.Sub(p.AmountPaid)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// Payment is an immutable payment recorded against a fee period.
type Payment struct {
	ID          string          `json:"id"`
	FeePeriodID string          `json:"fee_period_id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	PaidAt      time.Time       `json:"paid_at"`
	RecordedBy  string          `json:"recorded_by"`
}

// SavePlanRequest is the payload for editing a fee period's plan.
type SavePlanRequest struct {
	RatePerStudent decimal.Decimal `json:"rate_per_student"`
	EnrolledCount  *int            `json:"enrolled_count" binding:"required,gte=0"`
}

// RecordPaymentRequest is the payload for recording a payment.
type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method" binding:"omitempty,oneof=cash bank_transfer card other"`
}
