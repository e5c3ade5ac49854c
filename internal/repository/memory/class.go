package memory

import (
	"context"
	"sort"

	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/repository"
)

type ClassRepository struct {
	db *DB
}

func NewClassRepository(db *DB) *ClassRepository {
	return &ClassRepository{db: db}
}

func (repo *ClassRepository) Create(_ context.Context, c *model.Class) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := repo.db.now()
	c.CreatedAt, c.UpdatedAt = now, now
	stored := copyClass(c)
	repo.db.classes[c.ID] = &stored
	repo.db.nextSeq++
	repo.db.classSeq[c.ID] = repo.db.nextSeq
	return nil
}

func (repo *ClassRepository) Get(_ context.Context, id string) (*model.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	c, ok := repo.db.classes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := copyClass(c)
	return &out, nil
}

func (repo *ClassRepository) Update(_ context.Context, c *model.Class) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	old, ok := repo.db.classes[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	c.OwnerID, c.CreatedAt = old.OwnerID, old.CreatedAt
	c.UpdatedAt = repo.db.now()
	stored := copyClass(c)
	repo.db.classes[c.ID] = &stored
	return nil
}

func (repo *ClassRepository) Delete(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(repo.db.classes, id)
	delete(repo.db.classSeq, id)
	return nil
}

func (repo *ClassRepository) ListByOwner(_ context.Context, ownerID string) ([]model.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := []model.Class{}
	for _, c := range repo.db.classes {
		if c.OwnerID == ownerID {
			classes = append(classes, copyClass(c))
		}
	}
	// Insertion order stands in for created_at, which can tie.
	sort.Slice(classes, func(i, j int) bool {
		return repo.db.classSeq[classes[i].ID] < repo.db.classSeq[classes[j].ID]
	})
	return classes, nil
}

func (repo *ClassRepository) ListOwnerIDs(_ context.Context) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[string]bool)
	ids := []string{}
	for _, c := range repo.db.classes {
		if !seen[c.OwnerID] {
			seen[c.OwnerID] = true
			ids = append(ids, c.OwnerID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
