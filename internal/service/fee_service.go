package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/config"
	"github.com/stemsi/classbook-backend/internal/live"
	"github.com/stemsi/classbook-backend/internal/metrics"
	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/repository"
)

// FeeService reconciles monthly fees per class: rate × enrolled against the
// payments recorded so far.
type FeeService struct {
	fees     FeeStore
	classes  *ClassService
	cal      *calendar.Calendar
	notifier live.Notifier
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewFeeService creates a new FeeService. m may be nil.
func NewFeeService(
	fees FeeStore,
	classes *ClassService,
	cal *calendar.Calendar,
	notifier live.Notifier,
	m *metrics.Metrics,
	log zerolog.Logger,
) *FeeService {
	return &FeeService{
		fees:     fees,
		classes:  classes,
		cal:      cal,
		notifier: notifier,
		metrics:  m,
		log:      log.With().Str("component", "fee_service").Logger(),
	}
}

// MonthSummary totals an owner's fee periods for one month.
type MonthSummary struct {
	MonthKey      string            `json:"month_key"`
	Periods       []model.FeePeriod `json:"periods"`
	TotalExpected decimal.Decimal   `json:"total_expected"`
	TotalPaid     decimal.Decimal   `json:"total_paid"`
	TotalDue      decimal.Decimal   `json:"total_due"`
}

func moneyMessage(field string) string {
	return fmt.Sprintf("%s must have at most %d decimal places and be below %s", field, model.MoneyScale, model.MaxMoney)
}

func validMonth(monthKey string) error {
	if !calendar.ValidMonthKey(monthKey) {
		return fieldError("month", "month must be formatted as YYYY-MM")
	}
	return nil
}

// EnsurePeriod returns the class's period for monthKey, creating it from the
// class's current rate when absent. Repeated and concurrent calls converge on
// one period.
func (s *FeeService) EnsurePeriod(ctx context.Context, classID, ownerID, monthKey string) (*model.FeePeriod, error) {
	if err := validMonth(monthKey); err != nil {
		return nil, err
	}
	c, err := s.classes.GetOwned(ctx, classID, ownerID)
	if err != nil {
		return nil, err
	}

	seed := &model.FeePeriod{
		ID:             model.FeePeriodID(classID, monthKey),
		ClassID:        classID,
		OwnerID:        c.OwnerID,
		MonthKey:       monthKey,
		RatePerStudent: c.RatePerStudent,
		AmountPaid:     decimal.Zero,
	}
	seed.Recompute()

	p, err := s.fees.CreateIfAbsent(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("ensure fee period: %w", err)
	}
	return p, nil
}

// SavePlan sets the period's rate and enrollment and recomputes expected
// and status against the existing amount paid.
func (s *FeeService) SavePlan(ctx context.Context, classID, ownerID, monthKey string, rate decimal.Decimal, enrolled int) (*model.FeePeriod, error) {
	verr := newValidationError()
	switch {
	case rate.IsNegative():
		verr.add("rate_per_student", "rate_per_student must be 0 or greater")
	case !model.MoneyFits(rate):
		verr.add("rate_per_student", moneyMessage("rate_per_student"))
	case enrolled > 0 && !model.MoneyFits(rate.Mul(decimal.NewFromInt(int64(enrolled)))):
		verr.add("enrolled_count", "rate_per_student times enrolled_count exceeds the largest storable amount")
	}
	if enrolled < 0 {
		verr.add("enrolled_count", "enrolled_count must be 0 or greater")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	if _, err := s.EnsurePeriod(ctx, classID, ownerID, monthKey); err != nil {
		return nil, err
	}

	p, err := s.fees.Mutate(ctx, classID, monthKey, func(p *model.FeePeriod) error {
		p.RatePerStudent = rate
		p.EnrolledCount = enrolled
		p.Recompute()
		return nil
	})
	if err != nil {
		return nil, s.storeErr("save plan", err)
	}

	s.publish(ctx, ownerID)
	return p, nil
}

// RecordPayment appends a payment and adds it to the period's amount paid
// in one transaction. An empty method means cash.
func (s *FeeService) RecordPayment(ctx context.Context, classID, ownerID, monthKey string, amount decimal.Decimal, method string) (*model.FeePeriod, *model.Payment, error) {
	if !amount.IsPositive() {
		return nil, nil, fieldError("amount", "amount must be greater than 0")
	}
	if !model.MoneyFits(amount) {
		return nil, nil, fieldError("amount", moneyMessage("amount"))
	}
	if method == "" {
		method = model.PaymentMethodCash
	}
	if _, err := s.EnsurePeriod(ctx, classID, ownerID, monthKey); err != nil {
		return nil, nil, err
	}

	pay := &model.Payment{
		ID:         uuid.New().String(),
		Amount:     amount,
		Method:     method,
		PaidAt:     s.cal.Now(),
		RecordedBy: ownerID,
	}
	p, err := s.fees.AddPayment(ctx, classID, monthKey, pay, func(p *model.FeePeriod) error {
		if !model.MoneyFits(p.AmountPaid.Add(amount)) {
			return fieldError("amount", "amount would take the total paid past the largest storable amount")
		}
		p.ApplyPayment(amount)
		return nil
	})
	if err != nil {
		return nil, nil, s.storeErr("record payment", err)
	}
	if s.metrics != nil {
		s.metrics.Payments.Inc()
	}

	s.log.Info().
		Str("class_id", classID).
		Str("month", monthKey).
		Str("amount", amount.String()).
		Str("status", string(p.Status)).
		Msg("Payment recorded")

	s.publish(ctx, ownerID)
	return p, pay, nil
}

// ListPayments returns the period's payments, oldest first.
func (s *FeeService) ListPayments(ctx context.Context, classID, ownerID, monthKey string) ([]model.Payment, error) {
	if err := validMonth(monthKey); err != nil {
		return nil, err
	}
	if _, err := s.classes.GetOwned(ctx, classID, ownerID); err != nil {
		return nil, err
	}
	payments, err := s.fees.ListPayments(ctx, classID, monthKey)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// MonthSummary lists the owner's existing periods for monthKey with totals.
func (s *FeeService) MonthSummary(ctx context.Context, ownerID, monthKey string) (*MonthSummary, error) {
	if err := validMonth(monthKey); err != nil {
		return nil, err
	}
	periods, err := s.fees.ListByOwnerMonth(ctx, ownerID, monthKey)
	if err != nil {
		return nil, fmt.Errorf("list fee periods: %w", err)
	}

	sum := &MonthSummary{
		MonthKey:      monthKey,
		Periods:       periods,
		TotalExpected: decimal.Zero,
		TotalPaid:     decimal.Zero,
		TotalDue:      decimal.Zero,
	}
	for i := range periods {
		sum.TotalExpected = sum.TotalExpected.Add(periods[i].ExpectedAmount)
		sum.TotalPaid = sum.TotalPaid.Add(periods[i].AmountPaid)
		sum.TotalDue = sum.TotalDue.Add(periods[i].DueAmount())
	}
	return sum, nil
}

func (s *FeeService) storeErr(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *FeeService) publish(ctx context.Context, ownerID string) {
	if err := s.notifier.Publish(ctx, config.CacheKey.OwnerFeesChannel(ownerID)); err != nil {
		s.log.Warn().Err(err).Str("owner_id", ownerID).Msg("Failed to publish fee change")
	}
}

// WatchMonthSummary streams MonthSummary snapshots, re-queried whenever one
// of the owner's fee periods changes.
func (s *FeeService) WatchMonthSummary(ctx context.Context, ownerID, monthKey string) (*live.Subscription[*MonthSummary], error) {
	if err := validMonth(monthKey); err != nil {
		return nil, err
	}
	return live.Watch(ctx, s.notifier, []string{config.CacheKey.OwnerFeesChannel(ownerID)},
		func(ctx context.Context) (*MonthSummary, error) {
			return s.MonthSummary(ctx, ownerID, monthKey)
		})
}
