package usecase

import (
	"slices"
	"strings"
	"sync"

	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/saga/domain"
)

// Definitions maps saga types to their ordered steps.
type Definitions struct {
	mu    sync.RWMutex
	steps map[string][]domain.Step
}

// NewDefinitions creates an empty registry.
func NewDefinitions() *Definitions {
	return &Definitions{steps: make(map[string][]domain.Step)}
}

// Register binds sagaType to steps. The step list must be valid and the type unused.
func (d *Definitions) Register(sagaType string, steps ...domain.Step) error {
	if strings.TrimSpace(sagaType) == "" {
		return apperrors.Wrap(domain.ErrInvalidSagaDefinition, "saga type is required")
	}
	if err := validateSteps(steps); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.steps[sagaType]; exists {
		return apperrors.Wrapf(apperrors.ErrConflict, "saga type %s already registered", sagaType)
	}
	d.steps[sagaType] = slices.Clone(steps)
	return nil
}

// Steps returns the steps registered for sagaType.
func (d *Definitions) Steps(sagaType string) ([]domain.Step, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	steps, ok := d.steps[sagaType]
	if !ok {
		return nil, apperrors.Wrap(domain.ErrUnknownSagaType, sagaType)
	}
	return slices.Clone(steps), nil
}

func validateSteps(steps []domain.Step) error {
	if len(steps) == 0 {
		return apperrors.Wrap(domain.ErrInvalidSagaDefinition, "at least one step is required")
	}
	seen := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		if step == nil || strings.TrimSpace(step.Name()) == "" {
			return apperrors.Wrap(domain.ErrInvalidSagaDefinition, "steps must be named")
		}
		if _, dup := seen[step.Name()]; dup {
			return apperrors.Wrapf(domain.ErrInvalidSagaDefinition, "duplicate step %s", step.Name())
		}
		seen[step.Name()] = struct{}{}
	}
	return nil
}

func stepNames(steps []domain.Step) []string {
	names := make([]string, len(steps))
	for i, step := range steps {
		names[i] = step.Name()
	}
	return names
}
