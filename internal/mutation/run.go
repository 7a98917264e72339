package mutation

import (
	"context"
	"fmt"

	"storefront/internal/domain"

	"go.uber.org/zap"
)

var errRolledBack = domain.ErrRolledBack

// step describes one mutation. apply changes local state and returns the undo
// func; a nil apply makes the mutation non-optimistic. reconcile stores the
// server reply and returns the value the caller sees.
type step[T any] struct {
	entity    string
	op        string
	apply     func() (undo func())
	dispatch  func(ctx context.Context) (T, error)
	reconcile func(T) T
}

// execute drives a step through the state machine:
// IDLE -> APPLYING -> PENDING -> COMMITTED | ROLLED_BACK -> IDLE.
// Callers hold the entity lock for the whole run.
func execute[T any](ctx context.Context, logger *zap.Logger, s step[T]) (T, error) {
	var zero T
	m := newMutation(s.entity, s.op)

	var undo func()
	if s.apply != nil {
		must(m.transition(StateApplying))
		undo = s.apply()
	}
	must(m.transition(StatePending))

	value, err := s.dispatch(ctx)
	if err != nil {
		if undo != nil {
			undo()
			must(m.transition(StateRolledBack))
			logger.Warn("Mutation rolled back",
				zap.String("op", s.op),
				zap.String("entity", s.entity),
				zap.Stringers("states", m.history),
				zap.Error(err),
			)
			must(m.transition(StateIdle))
			return zero, fmt.Errorf("%w: %s %s: %w", errRolledBack, s.op, s.entity, err)
		}
		must(m.transition(StateFailed))
		logger.Warn("Mutation failed",
			zap.String("op", s.op),
			zap.String("entity", s.entity),
			zap.Stringers("states", m.history),
			zap.Error(err),
		)
		must(m.transition(StateIdle))
		return zero, fmt.Errorf("failed to %s %s: %w", s.op, s.entity, err)
	}

	if s.reconcile != nil {
		value = s.reconcile(value)
	}
	must(m.transition(StateCommitted))
	logger.Info("Mutation committed", zap.String("op", s.op), zap.String("entity", s.entity))
	must(m.transition(StateIdle))
	return value, nil
}

// must panics on a transition the code itself got wrong
func must(err error) {
	if err != nil {
		panic(err)
	}
}
