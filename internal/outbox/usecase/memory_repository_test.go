package usecase

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/orderflow/internal/outbox/domain"
)

// memoryRepository keeps events in memory. Find* return every match oldest first;
// Claim* apply the same rules as the SQL claim queries: oldest first, and only the
// oldest unfinished event of each aggregate.
type memoryRepository struct {
	mu     sync.Mutex
	events map[uuid.UUID]*domain.OutboxEvent
}

func newMemoryRepository(events ...*domain.OutboxEvent) *memoryRepository {
	r := &memoryRepository{events: make(map[uuid.UUID]*domain.OutboxEvent)}
	for _, event := range events {
		copied := *event
		r.events[event.ID] = &copied
	}
	return r
}

func (r *memoryRepository) snapshot(id uuid.UUID) domain.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.events[id]
}

func (r *memoryRepository) Create(_ context.Context, event *domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *event
	r.events[event.ID] = &copied
	return nil
}

func (r *memoryRepository) Update(_ context.Context, event *domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[event.ID]; !ok {
		return domain.ErrOutboxEventNotFound
	}
	copied := *event
	r.events[event.ID] = &copied
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, domain.ErrOutboxEventNotFound
	}
	copied := *event
	return &copied, nil
}

func before(a, b *domain.OutboxEvent) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

func (r *memoryRepository) isHead(event *domain.OutboxEvent) bool {
	for _, other := range r.events {
		if other.ID == event.ID || other.Status.IsTerminal() {
			continue
		}
		if other.AggregateType == event.AggregateType && other.AggregateID == event.AggregateID &&
			before(other, event) {
			return false
		}
	}
	return true
}

func (r *memoryRepository) claim(limit int, match func(e *domain.OutboxEvent) bool) []*domain.OutboxEvent {
	return r.find(limit, func(e *domain.OutboxEvent) bool { return match(e) && r.isHead(e) })
}

func (r *memoryRepository) find(limit int, match func(e *domain.OutboxEvent) bool) []*domain.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found []*domain.OutboxEvent
	for _, event := range r.events {
		if match(event) {
			copied := *event
			found = append(found, &copied)
		}
	}
	sort.Slice(found, func(i, j int) bool { return before(found[i], found[j]) })
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found
}

func (r *memoryRepository) FindPending(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	return r.find(limit, func(e *domain.OutboxEvent) bool {
		return e.Status == domain.OutboxEventStatusPending
	}), nil
}

func (r *memoryRepository) FindRetryable(
	_ context.Context,
	maxRetries int,
	notBefore time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	return r.find(limit, func(e *domain.OutboxEvent) bool {
		return e.Status == domain.OutboxEventStatusFailed && e.RetryCount < maxRetries &&
			!e.UpdatedAt.After(notBefore)
	}), nil
}

func (r *memoryRepository) ClaimPending(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	return r.claim(limit, func(e *domain.OutboxEvent) bool {
		return e.Status == domain.OutboxEventStatusPending
	}), nil
}

func (r *memoryRepository) ClaimRetryable(
	_ context.Context,
	maxRetries int,
	notBefore time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	return r.claim(limit, func(e *domain.OutboxEvent) bool {
		return e.Status == domain.OutboxEventStatusFailed && e.RetryCount < maxRetries &&
			!e.UpdatedAt.After(notBefore)
	}), nil
}

func (r *memoryRepository) ClaimStaleProcessing(
	_ context.Context,
	staleBefore time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	return r.claim(limit, func(e *domain.OutboxEvent) bool {
		return e.Status == domain.OutboxEventStatusProcessing && e.UpdatedAt.Before(staleBefore)
	}), nil
}

func (r *memoryRepository) FindByAggregate(
	_ context.Context,
	aggregateType, aggregateID string,
) ([]*domain.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []*domain.OutboxEvent
	for _, event := range r.events {
		if event.AggregateType == aggregateType && event.AggregateID == aggregateID {
			copied := *event
			found = append(found, &copied)
		}
	}
	sort.Slice(found, func(i, j int) bool { return before(found[i], found[j]) })
	return found, nil
}

func (r *memoryRepository) FindByEventType(
	_ context.Context,
	eventType string,
	limit int,
) ([]*domain.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []*domain.OutboxEvent
	for _, event := range r.events {
		if event.EventType == eventType {
			copied := *event
			found = append(found, &copied)
		}
	}
	sort.Slice(found, func(i, j int) bool { return before(found[j], found[i]) })
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (r *memoryRepository) CountByStatus(_ context.Context) (map[domain.OutboxEventStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.OutboxEventStatus]int64)
	for _, event := range r.events {
		counts[event.Status]++
	}
	return counts, nil
}

func (r *memoryRepository) DeleteProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, event := range r.events {
		if event.Status == domain.OutboxEventStatusProcessed && event.ProcessedAt != nil && event.ProcessedAt.Before(cutoff) {
			delete(r.events, id)
			deleted++
		}
	}
	return deleted, nil
}

// passthroughTxManager runs fn without a transaction.
type passthroughTxManager struct{}

func (passthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
