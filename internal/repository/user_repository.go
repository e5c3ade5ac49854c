package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classbook-backend/internal/model"
)

// UserRepository handles user profiles and the owned-class index.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Upsert creates or refreshes the profile fields of a user.
func (r *UserRepository) Upsert(ctx context.Context, u *model.User) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO users (id, display_name, email)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE
		 SET display_name = EXCLUDED.display_name, email = EXCLUDED.email, updated_at = NOW()
		 RETURNING owned_class_ids, created_at, updated_at`,
		u.ID, u.DisplayName, u.Email,
	).Scan(&u.OwnedClassIDs, &u.CreatedAt, &u.UpdatedAt)
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, display_name, email, owned_class_ids, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.DisplayName, &u.Email, &u.OwnedClassIDs, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// ListIDs returns every user id.
func (r *UserRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// AddOwnedClass appends classID to the index once. A missing user row is
// created so the index never depends on the profile having been saved.
func (r *UserRepository) AddOwnedClass(ctx context.Context, userID, classID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, owned_class_ids)
		 VALUES ($1, ARRAY[$2::text])
		 ON CONFLICT (id) DO UPDATE
		 SET owned_class_ids = array_append(array_remove(users.owned_class_ids, $2::text), $2::text),
		     updated_at = NOW()`,
		userID, classID,
	)
	return err
}

// RemoveOwnedClass drops classID from the index. Removing an absent id is a no-op.
func (r *UserRepository) RemoveOwnedClass(ctx context.Context, userID, classID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET owned_class_ids = array_remove(owned_class_ids, $2::text), updated_at = NOW()
		 WHERE id = $1`,
		userID, classID,
	)
	return err
}

// SetOwnedClasses replaces the whole index.
func (r *UserRepository) SetOwnedClasses(ctx context.Context, userID string, classIDs []string) error {
	if classIDs == nil {
		classIDs = []string{}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, owned_class_ids)
		 VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE
		 SET owned_class_ids = EXCLUDED.owned_class_ids, updated_at = NOW()`,
		userID, classIDs,
	)
	return err
}
