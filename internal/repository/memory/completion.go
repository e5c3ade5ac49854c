package memory

import (
	"context"
	"sort"

	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/repository"
)

type CompletionRepository struct {
	db *DB
}

func NewCompletionRepository(db *DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

func (repo *CompletionRepository) Upsert(_ context.Context, c *model.CompletionRecord) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := *c
	repo.db.completions[c.ID] = &stored
	return nil
}

func (repo *CompletionRepository) Get(_ context.Context, id string) (*model.CompletionRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	c, ok := repo.db.completions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (repo *CompletionRepository) filter(keep func(*model.CompletionRecord) bool) []model.CompletionRecord {
	records := []model.CompletionRecord{}
	for _, c := range repo.db.completions {
		if keep(c) {
			records = append(records, *c)
		}
	}
	return records
}

func (repo *CompletionRepository) ListByOwnerDate(_ context.Context, ownerID, date string) ([]model.CompletionRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := repo.filter(func(c *model.CompletionRecord) bool {
		return c.OwnerID == ownerID && c.Date == date
	})
	sort.Slice(records, func(i, j int) bool { return records[i].ClassID < records[j].ClassID })
	return records, nil
}

func (repo *CompletionRepository) CountByOwnerMonth(_ context.Context, ownerID, monthKey string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return len(repo.filter(func(c *model.CompletionRecord) bool {
		return c.OwnerID == ownerID && c.MonthKey == monthKey
	})), nil
}

func (repo *CompletionRepository) CountByOwnerMonths(_ context.Context, ownerID string, monthKeys []string) (map[string]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]bool, len(monthKeys))
	for _, k := range monthKeys {
		wanted[k] = true
	}
	counts := make(map[string]int)
	for _, c := range repo.db.completions {
		if c.OwnerID == ownerID && wanted[c.MonthKey] {
			counts[c.MonthKey]++
		}
	}
	return counts, nil
}

func (repo *CompletionRepository) ListByClass(_ context.Context, classID string) ([]model.CompletionRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := repo.filter(func(c *model.CompletionRecord) bool { return c.ClassID == classID })
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })
	return records, nil
}
