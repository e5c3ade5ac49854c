package memory

import (
	"context"
	"sort"

	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/repository"
)

type FeeRepository struct {
	db *DB
}

func NewFeeRepository(db *DB) *FeeRepository {
	return &FeeRepository{db: db}
}

func (repo *FeeRepository) CreateIfAbsent(_ context.Context, p *model.FeePeriod) (*model.FeePeriod, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.fees[p.ID]
	if !ok {
		now := repo.db.now()
		created := *p
		created.CreatedAt, created.UpdatedAt = now, now
		stored = &created
		repo.db.fees[p.ID] = stored
	}
	out := *stored
	return &out, nil
}

func (repo *FeeRepository) Get(_ context.Context, classID, monthKey string) (*model.FeePeriod, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	p, ok := repo.db.fees[model.FeePeriodID(classID, monthKey)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *p
	return &out, nil
}

// mutate runs fn on a copy and only stores it when fn succeeds. Callers hold
// the write lock.
func (repo *FeeRepository) mutate(id string, fn func(*model.FeePeriod) error) (*model.FeePeriod, error) {
	stored, ok := repo.db.fees[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	working := *stored
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.UpdatedAt = repo.db.now()
	*stored = working
	out := working
	return &out, nil
}

func (repo *FeeRepository) Mutate(_ context.Context, classID, monthKey string, fn func(*model.FeePeriod) error) (*model.FeePeriod, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	return repo.mutate(model.FeePeriodID(classID, monthKey), fn)
}

func (repo *FeeRepository) AddPayment(_ context.Context, classID, monthKey string, pay *model.Payment, fn func(*model.FeePeriod) error) (*model.FeePeriod, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	id := model.FeePeriodID(classID, monthKey)
	p, err := repo.mutate(id, fn)
	if err != nil {
		return nil, err
	}
	pay.FeePeriodID = id
	repo.db.payments[id] = append(repo.db.payments[id], *pay)
	return p, nil
}

func (repo *FeeRepository) ListPayments(_ context.Context, classID, monthKey string) ([]model.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return append([]model.Payment{}, repo.db.payments[model.FeePeriodID(classID, monthKey)]...), nil
}

func (repo *FeeRepository) ListByOwnerMonth(_ context.Context, ownerID, monthKey string) ([]model.FeePeriod, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	periods := []model.FeePeriod{}
	for _, p := range repo.db.fees {
		if p.OwnerID == ownerID && p.MonthKey == monthKey {
			periods = append(periods, *p)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].ClassID < periods[j].ClassID })
	return periods, nil
}
