package domain

import (
	"context"
	"time"
)

// Step is one unit of a saga. Execute receives a copy of the saga data and returns the
// entries it wants merged back. Compensate undoes a successful Execute and is only called
// for steps recorded as executed; it may run more than once after a crash, so it must
// tolerate an effect that is already undone.
type Step interface {
	Name() string
	Execute(ctx context.Context, data *Data) (*Data, error)
	Compensate(ctx context.Context, data *Data) error
}

// StepTimeout can be implemented by a Step to override the default step timeout.
type StepTimeout interface {
	Timeout() time.Duration
}
