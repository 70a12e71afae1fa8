package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allisson/orderflow/internal/saga/domain"
)

// journal records step calls in order across steps.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) count(entry string) int {
	n := 0
	for _, e := range j.all() {
		if e == entry {
			n++
		}
	}
	return n
}

var errStepFailed = errors.New("boom")

// fakeStep writes "<name>.done" into the saga data and records every call.
type fakeStep struct {
	name           string
	journal        *journal
	failExecute    bool
	failCompensate bool
	panicExecute   bool
	block          bool
	timeout        time.Duration
}

func (s *fakeStep) Name() string { return s.name }

func (s *fakeStep) Execute(ctx context.Context, data *domain.Data) (*domain.Data, error) {
	s.journal.add("execute:" + s.name)
	if s.panicExecute {
		panic("step exploded")
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.failExecute {
		return nil, errStepFailed
	}
	out := domain.NewData()
	if err := domain.NewKey[bool](s.name + ".done").Set(out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *fakeStep) Compensate(_ context.Context, data *domain.Data) error {
	s.journal.add("compensate:" + s.name)
	if !data.Has(s.name + ".done") {
		return fmt.Errorf("step %s compensated without its output", s.name)
	}
	if s.failCompensate {
		return errStepFailed
	}
	return nil
}

// timedStep overrides the default step timeout.
type timedStep struct {
	*fakeStep
}

func (s *timedStep) Timeout() time.Duration { return s.timeout }

func newSteps(j *journal, names ...string) []*fakeStep {
	steps := make([]*fakeStep, len(names))
	for i, name := range names {
		steps[i] = &fakeStep{name: name, journal: j}
	}
	return steps
}

func asSteps(steps []*fakeStep) []domain.Step {
	out := make([]domain.Step, len(steps))
	for i, step := range steps {
		out[i] = step
	}
	return out
}
