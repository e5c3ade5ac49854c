package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classbook-backend/internal/model"
)

// ClassRepository handles class data access.
type ClassRepository struct {
	pool *pgxpool.Pool
}

// NewClassRepository creates a new ClassRepository.
func NewClassRepository(pool *pgxpool.Pool) *ClassRepository {
	return &ClassRepository{pool: pool}
}

const classColumns = `id, owner_id, title, description, location, capacity,
	rate_per_student::text, schedule, active, created_at, updated_at`

func scanClass(row pgx.Row) (*model.Class, error) {
	var (
		c        model.Class
		rate     string
		schedule []byte
	)
	err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Description, &c.Location, &c.Capacity,
		&rate, &schedule, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if c.RatePerStudent, err = parseDecimal("rate_per_student", rate); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(schedule, &c.Schedule); err != nil {
		return nil, fmt.Errorf("decode schedule of class %s: %w", c.ID, err)
	}
	return &c, nil
}

// Create inserts a new class. The caller assigns the id.
func (r *ClassRepository) Create(ctx context.Context, c *model.Class) error {
	schedule, err := json.Marshal(c.Schedule)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO classes (id, owner_id, title, description, location, capacity, rate_per_student, schedule, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)
		 RETURNING created_at, updated_at`,
		c.ID, c.OwnerID, c.Title, c.Description, c.Location, c.Capacity,
		c.RatePerStudent.String(), schedule, c.Active,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// Get retrieves a class by its ID.
func (r *ClassRepository) Get(ctx context.Context, id string) (*model.Class, error) {
	c, err := scanClass(r.pool.QueryRow(ctx,
		`SELECT `+classColumns+` FROM classes WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// Update overwrites every mutable field. Ownership never changes.
func (r *ClassRepository) Update(ctx context.Context, c *model.Class) error {
	schedule, err := json.Marshal(c.Schedule)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	err = r.pool.QueryRow(ctx,
		`UPDATE classes
		 SET title = $1, description = $2, location = $3, capacity = $4,
		     rate_per_student = $5::numeric, schedule = $6, active = $7, updated_at = NOW()
		 WHERE id = $8
		 RETURNING updated_at`,
		c.Title, c.Description, c.Location, c.Capacity,
		c.RatePerStudent.String(), schedule, c.Active, c.ID,
	).Scan(&c.UpdatedAt)
	return notFound(err)
}

// Delete removes a class by its ID.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByOwner returns the owner's classes, oldest first.
func (r *ClassRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Class, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+classColumns+` FROM classes WHERE owner_id = $1 ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	classes := []model.Class{}
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, *c)
	}
	return classes, rows.Err()
}

// ListOwnerIDs returns every distinct owner that has at least one class.
func (r *ClassRepository) ListOwnerIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT owner_id FROM classes ORDER BY owner_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
