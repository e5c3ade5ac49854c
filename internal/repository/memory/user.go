package memory

import (
	"context"
	"sort"

	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/repository"
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// row returns the user, creating an empty one. Callers hold the write lock.
func (repo *UserRepository) row(id string) *model.User {
	u, ok := repo.db.users[id]
	if !ok {
		now := repo.db.now()
		u = &model.User{ID: id, OwnedClassIDs: []string{}, CreatedAt: now, UpdatedAt: now}
		repo.db.users[id] = u
	}
	return u
}

func (repo *UserRepository) Upsert(_ context.Context, u *model.User) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := repo.row(u.ID)
	stored.DisplayName, stored.Email = u.DisplayName, u.Email
	stored.UpdatedAt = repo.db.now()
	*u = copyUser(stored)
	return nil
}

func (repo *UserRepository) Get(_ context.Context, id string) (*model.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	u, ok := repo.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := copyUser(u)
	return &out, nil
}

func (repo *UserRepository) ListIDs(_ context.Context) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]string, 0, len(repo.db.users))
	for id := range repo.db.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *UserRepository) AddOwnedClass(ctx context.Context, userID, classID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	u := repo.row(userID)
	u.OwnedClassIDs = append(without(u.OwnedClassIDs, classID), classID)
	u.UpdatedAt = repo.db.now()
	return nil
}

func (repo *UserRepository) RemoveOwnedClass(_ context.Context, userID, classID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if u, ok := repo.db.users[userID]; ok {
		u.OwnedClassIDs = without(u.OwnedClassIDs, classID)
		u.UpdatedAt = repo.db.now()
	}
	return nil
}

func (repo *UserRepository) SetOwnedClasses(_ context.Context, userID string, classIDs []string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	u := repo.row(userID)
	u.OwnedClassIDs = append([]string{}, classIDs...)
	u.UpdatedAt = repo.db.now()
	return nil
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
