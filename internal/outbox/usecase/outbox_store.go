package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/allisson/orderflow/internal/outbox/domain"
	customValidation "github.com/allisson/orderflow/internal/validation"
)

// Store writes and queries outbox events. CreateEvent joins the transaction carried by
// ctx, so callers wrap it together with their entity write in one TxManager.WithTx.
type Store struct {
	repo OutboxEventRepository
	now  func() time.Time
}

// NewStore creates a Store backed by repo.
func NewStore(repo OutboxEventRepository) *Store {
	return &Store{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateEvent serializes data as JSON and persists a PENDING event. A serialization failure
// is returned as *domain.SerializationError so the enclosing transaction rolls back.
func (s *Store) CreateEvent(
	ctx context.Context,
	aggregateType, aggregateID, eventType string,
	data any,
) (*domain.OutboxEvent, error) {
	err := validation.Errors{
		"aggregate_type": validation.Validate(aggregateType, validation.Required, customValidation.NotBlank),
		"aggregate_id":   validation.Validate(aggregateID, validation.Required, customValidation.NotBlank),
		"event_type":     validation.Validate(eventType, validation.Required, customValidation.NotBlank),
	}.Filter()
	if err != nil {
		return nil, customValidation.WrapValidationError(err)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, &domain.SerializationError{EventType: eventType, Err: err}
	}

	now := s.now()
	event := &domain.OutboxEvent{
		ID:            uuid.Must(uuid.NewV7()),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       string(payload),
		Status:        domain.OutboxEventStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// Get returns a single event.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	return s.repo.Get(ctx, id)
}

// FindPending returns up to limit PENDING events, oldest first.
func (s *Store) FindPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	return s.repo.FindPending(ctx, limit)
}

// FindRetryable returns FAILED events below maxRetries whose last attempt is older than notBefore.
func (s *Store) FindRetryable(
	ctx context.Context,
	maxRetries int,
	notBefore time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	return s.repo.FindRetryable(ctx, maxRetries, notBefore, limit)
}

// FindByAggregate returns the full event history of one aggregate in creation order.
func (s *Store) FindByAggregate(
	ctx context.Context,
	aggregateType, aggregateID string,
) ([]*domain.OutboxEvent, error) {
	return s.repo.FindByAggregate(ctx, aggregateType, aggregateID)
}

// FindByEventType returns up to limit events of one type, newest first.
func (s *Store) FindByEventType(ctx context.Context, eventType string, limit int) ([]*domain.OutboxEvent, error) {
	return s.repo.FindByEventType(ctx, eventType, limit)
}

// CountByStatus returns the number of events in every status, including empty ones.
func (s *Store) CountByStatus(ctx context.Context) (map[domain.OutboxEventStatus]int64, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, status := range domain.AllStatuses {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return counts, nil
}

// DeleteProcessedBefore removes PROCESSED events delivered before cutoff.
func (s *Store) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteProcessedBefore(ctx, cutoff)
}

// Cleanup removes PROCESSED events older than retention.
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, customValidation.WrapValidationError(validation.NewError(
			"validation_retention", "retention must be positive",
		))
	}
	return s.repo.DeleteProcessedBefore(ctx, s.now().Add(-retention))
}
