package usecase

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/orderflow/internal/saga/domain"
)

// memoryRepository stores copies of sagas and enforces optimistic versioning like the SQL
// repositories do.
type memoryRepository struct {
	mu    sync.Mutex
	sagas map[uuid.UUID]*domain.SagaTransaction
}

func newMemoryRepository(sagas ...*domain.SagaTransaction) *memoryRepository {
	r := &memoryRepository{sagas: make(map[uuid.UUID]*domain.SagaTransaction)}
	for _, saga := range sagas {
		r.sagas[saga.ID] = copySaga(saga)
	}
	return r
}

func copySaga(s *domain.SagaTransaction) *domain.SagaTransaction {
	copied := *s
	copied.StepNames = slices.Clone(s.StepNames)
	copied.ExecutedSteps = slices.Clone(s.ExecutedSteps)
	copied.CompensatedSteps = slices.Clone(s.CompensatedSteps)
	copied.Data = s.Data.Clone()
	if s.ErrorMessage != nil {
		msg := *s.ErrorMessage
		copied.ErrorMessage = &msg
	}
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		copied.CompletedAt = &at
	}
	return &copied
}

func (r *memoryRepository) snapshot(id uuid.UUID) *domain.SagaTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copySaga(r.sagas[id])
}

func (r *memoryRepository) Create(_ context.Context, saga *domain.SagaTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sagas[saga.ID] = copySaga(saga)
	return nil
}

func (r *memoryRepository) Update(_ context.Context, saga *domain.SagaTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sagas[saga.ID]
	if !ok || stored.Version != saga.Version {
		return domain.ErrSagaConflict
	}
	saga.Version++
	r.sagas[saga.ID] = copySaga(saga)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id uuid.UUID) (*domain.SagaTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	saga, ok := r.sagas[id]
	if !ok {
		return nil, domain.ErrSagaNotFound
	}
	return copySaga(saga), nil
}

func (r *memoryRepository) GetByBusinessID(_ context.Context, businessID string) (*domain.SagaTransaction, error) {
	matches := r.filter(func(s *domain.SagaTransaction) bool { return s.BusinessID == businessID }, 0)
	if len(matches) == 0 {
		return nil, domain.ErrSagaNotFound
	}
	return matches[len(matches)-1], nil
}

func (r *memoryRepository) ListByStatus(
	_ context.Context,
	status domain.SagaStatus,
	limit int,
) ([]*domain.SagaTransaction, error) {
	return r.filter(func(s *domain.SagaTransaction) bool { return s.Status == status }, limit), nil
}

func (r *memoryRepository) ListBySagaTypeAndStatus(
	_ context.Context,
	sagaType string,
	status domain.SagaStatus,
	limit int,
) ([]*domain.SagaTransaction, error) {
	return r.filter(func(s *domain.SagaTransaction) bool {
		return s.SagaType == sagaType && s.Status == status
	}, limit), nil
}

func (r *memoryRepository) ListStale(
	_ context.Context,
	statuses []domain.SagaStatus,
	updatedBefore time.Time,
	limit int,
) ([]*domain.SagaTransaction, error) {
	return r.filter(func(s *domain.SagaTransaction) bool {
		return slices.Contains(statuses, s.Status) && s.UpdatedAt.Before(updatedBefore)
	}, limit), nil
}

func (r *memoryRepository) CountByStatus(_ context.Context) (map[domain.SagaStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.SagaStatus]int64)
	for _, saga := range r.sagas {
		counts[saga.Status]++
	}
	return counts, nil
}

func (r *memoryRepository) DeleteFinishedBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	victims := r.filter(func(s *domain.SagaTransaction) bool {
		finished := s.Status == domain.SagaStatusCompleted || s.Status == domain.SagaStatusCompensated
		return finished && s.CompletedAt != nil && s.CompletedAt.Before(cutoff)
	}, limit)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, saga := range victims {
		delete(r.sagas, saga.ID)
	}
	return int64(len(victims)), nil
}

func (r *memoryRepository) filter(match func(*domain.SagaTransaction) bool, limit int) []*domain.SagaTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.SagaTransaction, 0)
	for _, saga := range r.sagas {
		if match(saga) {
			out = append(out, copySaga(saga))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// failingUpdateRepository rejects every Update after the first n.
type failingUpdateRepository struct {
	*memoryRepository
	allowed int
	err     error
	calls   int
}

func (r *failingUpdateRepository) Update(ctx context.Context, saga *domain.SagaTransaction) error {
	r.calls++
	if r.calls > r.allowed {
		return r.err
	}
	return r.memoryRepository.Update(ctx, saga)
}

// hookRepository calls onUpdate after every successful Update.
type hookRepository struct {
	*memoryRepository
	onUpdate func(saga *domain.SagaTransaction)
}

func (r *hookRepository) Update(ctx context.Context, saga *domain.SagaTransaction) error {
	if err := r.memoryRepository.Update(ctx, saga); err != nil {
		return err
	}
	if r.onUpdate != nil {
		r.onUpdate(saga)
	}
	return nil
}
