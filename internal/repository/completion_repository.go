package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classbook-backend/internal/model"
)

// CompletionRepository handles the completion ledger.
type CompletionRepository struct {
	pool *pgxpool.Pool
}

// NewCompletionRepository creates a new CompletionRepository.
func NewCompletionRepository(pool *pgxpool.Pool) *CompletionRepository {
	return &CompletionRepository{pool: pool}
}

const completionColumns = `id, class_id, owner_id, to_char(date, 'YYYY-MM-DD'), month_key, completed_at`

func scanCompletion(row pgx.Row) (*model.CompletionRecord, error) {
	var c model.CompletionRecord
	if err := row.Scan(&c.ID, &c.ClassID, &c.OwnerID, &c.Date, &c.MonthKey, &c.CompletedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCompletions(rows pgx.Rows) ([]model.CompletionRecord, error) {
	defer rows.Close()
	records := []model.CompletionRecord{}
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *c)
	}
	return records, rows.Err()
}

// Upsert writes the record, overwriting any record with the same key.
func (r *CompletionRepository) Upsert(ctx context.Context, c *model.CompletionRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO class_completions (id, class_id, owner_id, date, month_key, completed_at)
		 VALUES ($1, $2, $3, $4::date, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET owner_id = EXCLUDED.owner_id, completed_at = EXCLUDED.completed_at`,
		c.ID, c.ClassID, c.OwnerID, c.Date, c.MonthKey, c.CompletedAt,
	)
	return err
}

// Get retrieves a record by its composite id.
func (r *CompletionRepository) Get(ctx context.Context, id string) (*model.CompletionRecord, error) {
	c, err := scanCompletion(r.pool.QueryRow(ctx,
		`SELECT `+completionColumns+` FROM class_completions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// ListByOwnerDate returns the owner's records for one date.
func (r *CompletionRepository) ListByOwnerDate(ctx context.Context, ownerID, date string) ([]model.CompletionRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+completionColumns+` FROM class_completions
		 WHERE owner_id = $1 AND date = $2::date ORDER BY class_id`, ownerID, date)
	if err != nil {
		return nil, err
	}
	return collectCompletions(rows)
}

// CountByOwnerMonth counts the owner's records in one month.
func (r *CompletionRepository) CountByOwnerMonth(ctx context.Context, ownerID, monthKey string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM class_completions WHERE owner_id = $1 AND month_key = $2`,
		ownerID, monthKey,
	).Scan(&n)
	return n, err
}

// CountByOwnerMonths counts the owner's records per month for the given keys.
// Months without records are absent from the result.
func (r *CompletionRepository) CountByOwnerMonths(ctx context.Context, ownerID string, monthKeys []string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT month_key, COUNT(*) FROM class_completions
		 WHERE owner_id = $1 AND month_key = ANY($2)
		 GROUP BY month_key`, ownerID, monthKeys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int, len(monthKeys))
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// ListByClass returns every record of a class, oldest date first.
func (r *CompletionRepository) ListByClass(ctx context.Context, classID string) ([]model.CompletionRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+completionColumns+` FROM class_completions WHERE class_id = $1 ORDER BY date`, classID)
	if err != nil {
		return nil, err
	}
	return collectCompletions(rows)
}
