package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakit/internal/service"
	"mediakit/internal/state"
)

// ─────────────────────────────────────────────────────────────
// MockEmitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsInOrder(t *testing.T) {
	em := &service.MockEmitter{}
	ctx := context.Background()

	em.Emit(ctx, service.EventComponentAdded, "a")
	em.Emit(ctx, service.EventStateChanged, nil)
	em.Emit(ctx, service.EventComponentAdded, "b")

	require.Len(t, em.Events, 3)
	added := em.Named(service.EventComponentAdded)
	require.Len(t, added, 2)
	assert.Equal(t, "a", added[0].Data)
	assert.Equal(t, "b", added[1].Data)
	assert.Empty(t, em.Named(service.EventSaveError))

	em.Reset()
	assert.Empty(t, em.Events)
}

func TestMockEmitter_ConcurrentEmit(t *testing.T) {
	em := &service.MockEmitter{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			em.Emit(context.Background(), service.EventSaveRequested, nil)
		}()
	}
	wg.Wait()
	assert.Len(t, em.Named(service.EventSaveRequested), 20)
}

func TestForwardStateChanges(t *testing.T) {
	store := state.New(nil, state.Options{})
	em := &service.MockEmitter{}
	stop := service.ForwardStateChanges(context.Background(), store, em)

	store.Dispatch(state.UpdateTheme{Theme: map[string]any{"accent": "#f60"}})
	assert.Eventually(t, func() bool {
		return len(em.Named(service.EventStateChanged)) == 1
	}, time.Second, 5*time.Millisecond)

	stop()
	store.Dispatch(state.UpdateTheme{Theme: map[string]any{"accent": "#000"}})
	assert.Len(t, em.Named(service.EventStateChanged), 1)
}
