package service

import (
	"context"

	"github.com/stemsi/classbook-backend/internal/model"
)

// ClassStore persists classes. Owner is the source of truth for listings.
type ClassStore interface {
	Create(ctx context.Context, c *model.Class) error
	Get(ctx context.Context, id string) (*model.Class, error)
	Update(ctx context.Context, c *model.Class) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]model.Class, error)
	ListOwnerIDs(ctx context.Context) ([]string, error)
}

// UserStore persists users and the denormalized owned-class index.
type UserStore interface {
	// Upsert writes profile fields and leaves the index untouched.
	Upsert(ctx context.Context, u *model.User) error
	Get(ctx context.Context, id string) (*model.User, error)
	ListIDs(ctx context.Context) ([]string, error)
	AddOwnedClass(ctx context.Context, userID, classID string) error
	RemoveOwnedClass(ctx context.Context, userID, classID string) error
	SetOwnedClasses(ctx context.Context, userID string, classIDs []string) error
}

// CompletionStore persists completion records keyed by (class, date).
type CompletionStore interface {
	// Upsert inserts or overwrites the record with the same ID.
	Upsert(ctx context.Context, r *model.CompletionRecord) error
	Get(ctx context.Context, id string) (*model.CompletionRecord, error)
	ListByOwnerDate(ctx context.Context, ownerID, date string) ([]model.CompletionRecord, error)
	CountByOwnerMonth(ctx context.Context, ownerID, monthKey string) (int, error)
	// CountByOwnerMonths returns counts for the months that have records.
	CountByOwnerMonths(ctx context.Context, ownerID string, monthKeys []string) (map[string]int, error)
	ListByClass(ctx context.Context, classID string) ([]model.CompletionRecord, error)
}

// FeeStore persists fee periods and their payments.
type FeeStore interface {
	// CreateIfAbsent inserts p unless a period with the same key exists, and
	// returns the stored period either way.
	CreateIfAbsent(ctx context.Context, p *model.FeePeriod) (*model.FeePeriod, error)
	Get(ctx context.Context, classID, monthKey string) (*model.FeePeriod, error)
	// Mutate applies fn to the current period and persists the result
	// atomically with respect to other mutations.
	Mutate(ctx context.Context, classID, monthKey string, fn func(*model.FeePeriod) error) (*model.FeePeriod, error)
	// AddPayment inserts pay and applies fn to the period in one transaction.
	AddPayment(ctx context.Context, classID, monthKey string, pay *model.Payment, fn func(*model.FeePeriod) error) (*model.FeePeriod, error)
	ListPayments(ctx context.Context, classID, monthKey string) ([]model.Payment, error)
	ListByOwnerMonth(ctx context.Context, ownerID, monthKey string) ([]model.FeePeriod, error)
}
