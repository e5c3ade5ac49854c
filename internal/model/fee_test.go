package model

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestFeeStatusFor(t *testing.T) {
	tests := []struct {
		paid, expected int64
		want           FeeStatus
	}{
		{0, 0, FeeStatusPending},
		{0, 5000, FeeStatusPending},
		{2000, 5000, FeeStatusPartial},
		{5000, 5000, FeeStatusPaid},
		{6000, 5000, FeeStatusPaid},
		{100, 0, FeeStatusPaid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FeeStatusFor(dec(tt.paid), dec(tt.expected)), "paid=%d expected=%d", tt.paid, tt.expected)
	}
}

func TestFeePeriodPaymentSequence(t *testing.T) {
	p := &FeePeriod{RatePerStudent: dec(500), EnrolledCount: 10}
	p.Recompute()

	assert.True(t, p.ExpectedAmount.Equal(dec(5000)))
	assert.True(t, p.DueAmount().Equal(dec(5000)))
	assert.Equal(t, FeeStatusPending, p.Status)

	p.ApplyPayment(dec(2000))
	assert.True(t, p.AmountPaid.Equal(dec(2000)))
	assert.True(t, p.DueAmount().Equal(dec(3000)))
	assert.Equal(t, FeeStatusPartial, p.Status)

	p.ApplyPayment(dec(3000))
	assert.True(t, p.DueAmount().IsZero())
	assert.Equal(t, FeeStatusPaid, p.Status)

	p.ApplyPayment(dec(1000))
	assert.True(t, p.AmountPaid.Equal(dec(6000)))
	assert.True(t, p.DueAmount().IsZero(), "due is never negative")
	assert.Equal(t, FeeStatusPaid, p.Status)
}

func TestRecomputeKeepsAmountPaid(t *testing.T) {
	p := &FeePeriod{RatePerStudent: dec(500), EnrolledCount: 10, AmountPaid: dec(5000)}
	p.Recompute()
	assert.Equal(t, FeeStatusPaid, p.Status)

	p.EnrolledCount = 12
	p.Recompute()
	assert.True(t, p.AmountPaid.Equal(dec(5000)))
	assert.Equal(t, FeeStatusPartial, p.Status)
	assert.True(t, p.DueAmount().Equal(dec(1000)))
}

func TestFeeStatusProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("status matches the amounts", prop.ForAll(
		func(paid, expected int64) bool {
			s := FeeStatusFor(dec(paid), dec(expected))
			switch {
			case paid >= expected && (paid > 0 || expected > 0):
				return s == FeeStatusPaid
			case paid == 0:
				return s == FeeStatusPending
			default:
				return s == FeeStatusPartial
			}
		},
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(0, 1_000_000),
	))

	properties.Property("due is never negative", prop.ForAll(
		func(paid, expected int64) bool {
			p := FeePeriod{ExpectedAmount: dec(expected), AmountPaid: dec(paid)}
			return !p.DueAmount().IsNegative()
		},
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}

func TestMoneyFits(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"10", true},
		{"10.5", true},
		{"10.50", true},
		{"10.000", true},
		{"10.004", false},
		{"0.001", false},
		{"999999999999.99", true},
		{"1000000000000", false},
		{"-999999999999.99", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MoneyFits(decimal.RequireFromString(tt.in)), tt.in)
	}
}
