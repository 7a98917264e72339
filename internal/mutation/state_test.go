package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateApplying, true},
		{StateIdle, StatePending, true},
		{StateIdle, StateCommitted, false},
		{StateApplying, StatePending, true},
		{StateApplying, StateCommitted, false},
		{StatePending, StateCommitted, true},
		{StatePending, StateRolledBack, true},
		{StatePending, StateFailed, true},
		{StatePending, StateIdle, false},
		{StateCommitted, StateIdle, true},
		{StateCommitted, StateRolledBack, false},
		{StateRolledBack, StateIdle, true},
		{StateFailed, StateIdle, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s to %s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestMutationTransition(t *testing.T) {
	m := newMutation("cart:P", "add to cart")

	require.NoError(t, m.transition(StateApplying))
	require.NoError(t, m.transition(StatePending))
	require.NoError(t, m.transition(StateRolledBack))
	require.NoError(t, m.transition(StateIdle))

	err := m.transition(StateCommitted)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, []State{StateIdle, StateApplying, StatePending, StateRolledBack, StateIdle}, m.history)
}

func TestOutcome(t *testing.T) {
	network := &domain.NetworkError{Op: "x", Status: 502}

	assert.Equal(t, StateCommitted, Outcome(nil))
	assert.Equal(t, StateRolledBack, Outcome(fmt.Errorf("%w: x: %w", domain.ErrRolledBack, network)))
	assert.Equal(t, StateFailed, Outcome(fmt.Errorf("failed to x: %w", network)))
	assert.Equal(t, StateFailed, Outcome(errors.New("boom")))
}

func TestKeyedMutex(t *testing.T) {
	var k keyedMutex

	t.Run("same key excludes", func(t *testing.T) {
		var inside, peak int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := k.Lock("a")
				defer unlock()
				n := atomic.AddInt32(&inside, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), peak)
	})

	t.Run("different keys proceed", func(t *testing.T) {
		unlockA := k.Lock("a")
		defer unlockA()

		done := make(chan struct{})
		go func() {
			unlock := k.Lock("b")
			unlock()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock on b waited for a")
		}
	})

	t.Run("released keys are forgotten", func(t *testing.T) {
		k.Lock("c")()
		k.mu.Lock()
		defer k.mu.Unlock()
		assert.NotContains(t, k.locks, "c")
	})
}

func TestExecute_LogsStatesWhenNotCommitted(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)
	boom := errors.New("boom")

	_, err := execute(context.Background(), logger, step[int]{
		entity:   "cart:P",
		op:       "update cart quantity",
		apply:    func() func() { return func() {} },
		dispatch: func(context.Context) (int, error) { return 0, boom },
	})
	require.ErrorIs(t, err, boom)

	_, err = execute(context.Background(), logger, step[int]{
		entity:   "product:P",
		op:       "save product",
		dispatch: func(context.Context) (int, error) { return 0, boom },
	})
	require.ErrorIs(t, err, boom)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "Mutation rolled back", entries[0].Message)
	assert.Equal(t, []interface{}{"IDLE", "APPLYING", "PENDING", "ROLLED_BACK"}, entries[0].ContextMap()["states"])
	assert.Equal(t, "Mutation failed", entries[1].Message)
	assert.Equal(t, []interface{}{"IDLE", "PENDING", "FAILED"}, entries[1].ContextMap()["states"])
}

func TestExecute_ReturnsReconciledValue(t *testing.T) {
	got, err := execute(context.Background(), zap.NewNop(), step[int]{
		entity:    "cart:P",
		op:        "add to cart",
		dispatch:  func(context.Context) (int, error) { return 1, nil },
		reconcile: func(v int) int { return v + 41 },
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
