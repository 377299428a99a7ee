package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "PeriodLedger", uuid.New())}
}

type recordingHandler struct {
	mu     sync.Mutex
	types  []string
	seen   []string
	err    error
	panics bool
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	if h.panics {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, evt.EventType())
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func TestInMemoryEventBus_Routing(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()

	updates := &recordingHandler{types: []string{"ledger.line_items_updated"}}
	all := &recordingHandler{}
	bus.Subscribe(updates)
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(ctx,
		newTestEvent("ledger.created"),
		newTestEvent("ledger.line_items_updated"),
	))

	assert.Equal(t, 1, updates.count())
	assert.Equal(t, 2, all.count())

	bus.Unsubscribe(updates)
	require.NoError(t, bus.Publish(ctx, newTestEvent("ledger.line_items_updated")))
	assert.Equal(t, 1, updates.count())
}

func TestInMemoryEventBus_HandlerFailuresAreIsolated(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := &recordingHandler{types: []string{"ledger.deleted"}, err: errors.New("s3 down")}
	panicking := &recordingHandler{types: []string{"ledger.deleted"}, panics: true}
	ok := &recordingHandler{types: []string{"ledger.deleted"}}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(ok)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ledger.deleted")))
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, int64(2), bus.Failures())
}

func TestInMemoryEventBus_Stop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()
	require.NoError(t, bus.Stop(ctx))
	assert.Error(t, bus.Publish(ctx, newTestEvent("ledger.created")))
	require.NoError(t, bus.Start(ctx))
	assert.NoError(t, bus.Publish(ctx, newTestEvent("ledger.created")))
}

type stubStore struct {
	marked map[string]bool
	err    error
}

func (s *stubStore) MarkProcessed(_ context.Context, id string, _ time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.marked[id] {
		return false, nil
	}
	s.marked[id] = true
	return true, nil
}

func (s *stubStore) IsProcessed(_ context.Context, id string) (bool, error) { return s.marked[id], nil }
func (s *stubStore) Close() error                                          { return nil }

func TestIdempotentHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("processes each event once", func(t *testing.T) {
		inner := &recordingHandler{types: []string{"ledger.line_items_updated"}}
		h := NewIdempotentHandler(inner, &stubStore{marked: map[string]bool{}}, shared.DefaultIdempotencyConfig(), zap.NewNop())
		evt := newTestEvent("ledger.line_items_updated")

		require.NoError(t, h.Handle(ctx, evt))
		require.NoError(t, h.Handle(ctx, evt))

		assert.Equal(t, 1, inner.count())
		assert.Equal(t, IdempotencyStats{Processed: 1, Duplicate: 1}, h.Stats())
		assert.Equal(t, inner.types, h.EventTypes())
	})

	t.Run("store failure still processes", func(t *testing.T) {
		inner := &recordingHandler{}
		h := NewIdempotentHandler(inner, &stubStore{err: errors.New("redis down")}, shared.DefaultIdempotencyConfig(), zap.NewNop())

		require.NoError(t, h.Handle(ctx, newTestEvent("x")))
		assert.Equal(t, 1, inner.count())
	})

	t.Run("handler failure is counted and returned", func(t *testing.T) {
		inner := &recordingHandler{err: errors.New("unit missing")}
		h := NewIdempotentHandler(inner, &stubStore{marked: map[string]bool{}}, shared.DefaultIdempotencyConfig(), zap.NewNop())

		assert.Error(t, h.Handle(ctx, newTestEvent("x")))
		assert.Equal(t, int64(1), h.Stats().Failed)
	})

	t.Run("disabled bypasses the store", func(t *testing.T) {
		inner := &recordingHandler{}
		store := &stubStore{marked: map[string]bool{}}
		h := NewIdempotentHandler(inner, store, shared.IdempotencyConfig{Enabled: false}, zap.NewNop())
		evt := newTestEvent("x")

		require.NoError(t, h.Handle(ctx, evt))
		require.NoError(t, h.Handle(ctx, evt))
		assert.Equal(t, 2, inner.count())
		assert.Empty(t, store.marked)
	})
}
