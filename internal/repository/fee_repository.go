package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classbook-backend/internal/model"
)

// FeeRepository handles fee periods and their payments.
type FeeRepository struct {
	pool *pgxpool.Pool
}

// NewFeeRepository creates a new FeeRepository.
func NewFeeRepository(pool *pgxpool.Pool) *FeeRepository {
	return &FeeRepository{pool: pool}
}

const feeColumns = `id, class_id, owner_id, month_key, rate_per_student::text, enrolled_count,
	expected_amount::text, amount_paid::text, status, created_at, updated_at`

func scanFeePeriod(row pgx.Row) (*model.FeePeriod, error) {
	var (
		p                    model.FeePeriod
		rate, expected, paid string
	)
	err := row.Scan(&p.ID, &p.ClassID, &p.OwnerID, &p.MonthKey, &rate, &p.EnrolledCount,
		&expected, &paid, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.RatePerStudent, err = parseDecimal("rate_per_student", rate); err != nil {
		return nil, err
	}
	if p.ExpectedAmount, err = parseDecimal("expected_amount", expected); err != nil {
		return nil, err
	}
	if p.AmountPaid, err = parseDecimal("amount_paid", paid); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateIfAbsent inserts the period unless its key exists, then returns the
// stored row. Concurrent callers all observe the same row.
func (r *FeeRepository) CreateIfAbsent(ctx context.Context, p *model.FeePeriod) (*model.FeePeriod, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO class_fees (id, class_id, owner_id, month_key, rate_per_student, enrolled_count,
		                         expected_amount, amount_paid, status)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7::numeric, $8::numeric, $9)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.ClassID, p.OwnerID, p.MonthKey, p.RatePerStudent.String(), p.EnrolledCount,
		p.ExpectedAmount.String(), p.AmountPaid.String(), p.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("insert fee period: %w", err)
	}
	return r.Get(ctx, p.ClassID, p.MonthKey)
}

// Get retrieves the period of a class for a month.
func (r *FeeRepository) Get(ctx context.Context, classID, monthKey string) (*model.FeePeriod, error) {
	p, err := scanFeePeriod(r.pool.QueryRow(ctx,
		`SELECT `+feeColumns+` FROM class_fees WHERE id = $1`, model.FeePeriodID(classID, monthKey)))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// Mutate locks the period row, applies fn and writes the result back.
func (r *FeeRepository) Mutate(ctx context.Context, classID, monthKey string, fn func(*model.FeePeriod) error) (*model.FeePeriod, error) {
	var out *model.FeePeriod
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		p, err := r.lock(ctx, tx, classID, monthKey)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := r.save(ctx, tx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// AddPayment inserts the payment and applies fn to the locked period in the
// same transaction, so the running total never disagrees with the payments.
func (r *FeeRepository) AddPayment(ctx context.Context, classID, monthKey string, pay *model.Payment, fn func(*model.FeePeriod) error) (*model.FeePeriod, error) {
	var out *model.FeePeriod
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		p, err := r.lock(ctx, tx, classID, monthKey)
		if err != nil {
			return err
		}
		pay.FeePeriodID = p.ID
		if _, err := tx.Exec(ctx,
			`INSERT INTO fee_payments (id, fee_period_id, amount, method, paid_at, recorded_by)
			 VALUES ($1, $2, $3::numeric, $4, $5, $6)`,
			pay.ID, pay.FeePeriodID, pay.Amount.String(), pay.Method, pay.PaidAt, pay.RecordedBy,
		); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := r.save(ctx, tx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// ListPayments returns a period's payments, oldest first.
func (r *FeeRepository) ListPayments(ctx context.Context, classID, monthKey string) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, fee_period_id, amount::text, method, paid_at, recorded_by
		 FROM fee_payments WHERE fee_period_id = $1 ORDER BY paid_at, id`,
		model.FeePeriodID(classID, monthKey))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []model.Payment{}
	for rows.Next() {
		var (
			p      model.Payment
			amount string
		)
		if err := rows.Scan(&p.ID, &p.FeePeriodID, &amount, &p.Method, &p.PaidAt, &p.RecordedBy); err != nil {
			return nil, err
		}
		if p.Amount, err = parseDecimal("amount", amount); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ListByOwnerMonth returns every period of the owner for one month.
func (r *FeeRepository) ListByOwnerMonth(ctx context.Context, ownerID, monthKey string) ([]model.FeePeriod, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+feeColumns+` FROM class_fees WHERE owner_id = $1 AND month_key = $2 ORDER BY class_id`,
		ownerID, monthKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	periods := []model.FeePeriod{}
	for rows.Next() {
		p, err := scanFeePeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, *p)
	}
	return periods, rows.Err()
}

func (r *FeeRepository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *FeeRepository) lock(ctx context.Context, tx pgx.Tx, classID, monthKey string) (*model.FeePeriod, error) {
	p, err := scanFeePeriod(tx.QueryRow(ctx,
		`SELECT `+feeColumns+` FROM class_fees WHERE id = $1 FOR UPDATE`, model.FeePeriodID(classID, monthKey)))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *FeeRepository) save(ctx context.Context, tx pgx.Tx, p *model.FeePeriod) error {
	return tx.QueryRow(ctx,
		`UPDATE class_fees
		 SET rate_per_student = $1::numeric, enrolled_count = $2, expected_amount = $3::numeric,
		     amount_paid = $4::numeric, status = $5, updated_at = NOW()
		 WHERE id = $6
		 RETURNING updated_at`,
		p.RatePerStudent.String(), p.EnrolledCount, p.ExpectedAmount.String(),
		p.AmountPaid.String(), p.Status, p.ID,
	).Scan(&p.UpdatedAt)
}
