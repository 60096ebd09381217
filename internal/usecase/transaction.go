package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Transaction runs ordered steps across calls that cannot share one database
// transaction. When a step fails, the compensations of the steps that already
// succeeded run in reverse order.
type Transaction struct {
	steps  []step
	logger *zap.Logger
}

type step struct {
	name       string
	run        func(context.Context) error
	compensate func(context.Context) error
}

func NewTransaction(logger *zap.Logger) *Transaction {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transaction{logger: logger}
}

// AddStep appends a step. compensate may be nil.
func (t *Transaction) AddStep(name string, run, compensate func(context.Context) error) {
	t.steps = append(t.steps, step{name: name, run: run, compensate: compensate})
}

func (t *Transaction) Execute(ctx context.Context) error {
	for i, s := range t.steps {
		if err := s.run(ctx); err != nil {
			t.rollback(ctx, i)
			return fmt.Errorf("step %q failed: %w", s.name, err)
		}
	}
	return nil
}

func (t *Transaction) rollback(ctx context.Context, failedAt int) {
	// compensations must run even if the caller's context is already done
	ctx = context.WithoutCancel(ctx)
	for i := failedAt - 1; i >= 0; i-- {
		s := t.steps[i]
		if s.compensate == nil {
			continue
		}
		if err := s.compensate(ctx); err != nil {
			t.logger.Error("compensation failed, manual check required",
				zap.String("step", s.name), zap.Error(err))
		}
	}
}
