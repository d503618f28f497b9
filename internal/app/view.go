package app

import (
	"context"
	"sync"

	"mediakit/internal/render"
	"mediakit/internal/service"
)

// Render events consumed by the WebView.
const (
	EventRenderMount   = "render:mount"
	EventRenderUpdate  = "render:update"
	EventRenderUnmount = "render:unmount"
	EventRenderPrune   = "render:prune"
)

// PruneEvent asks the frontend to keep only the first element for ID.
type PruneEvent struct {
	ID      string `json:"id"`
	Removed int    `json:"removed"`
}

// eventView is the render.View of the desktop shell: it mirrors which
// elements the WebView holds and forwards every change as an event.
type eventView struct {
	ctx     context.Context
	emitter service.EventEmitter

	mu     sync.Mutex
	counts map[string]int
	order  []string
}

func newEventView(ctx context.Context, emitter service.EventEmitter) *eventView {
	return &eventView{ctx: ctx, emitter: emitter, counts: make(map[string]int)}
}

func (v *eventView) Mount(el render.Element) error {
	v.mu.Lock()
	if v.counts[el.ID] == 0 {
		v.order = append(v.order, el.ID)
	}
	v.counts[el.ID]++
	v.mu.Unlock()
	v.emitter.Emit(v.ctx, EventRenderMount, el)
	return nil
}

func (v *eventView) Update(el render.Element) error {
	v.emitter.Emit(v.ctx, EventRenderUpdate, el)
	return nil
}

func (v *eventView) Unmount(id string) error {
	v.mu.Lock()
	_, had := v.counts[id]
	v.forget(id)
	v.mu.Unlock()
	if had {
		v.emitter.Emit(v.ctx, EventRenderUnmount, map[string]string{"id": id})
	}
	return nil
}

func (v *eventView) Rendered() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []string
	for _, id := range v.order {
		for i := 0; i < v.counts[id]; i++ {
			out = append(out, id)
		}
	}
	return out
}

func (v *eventView) Prune(id string) int {
	v.mu.Lock()
	n := v.counts[id] - 1
	if n <= 0 {
		v.mu.Unlock()
		return 0
	}
	v.counts[id] = 1
	v.mu.Unlock()
	v.emitter.Emit(v.ctx, EventRenderPrune, PruneEvent{ID: id, Removed: n})
	return n
}

// Reported replaces the mirror with the ids the WebView says it holds. The
// frontend calls this after a reload so stray or duplicate elements are
// healed on the next reconcile.
func (v *eventView) Reported(ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.counts = make(map[string]int, len(ids))
	v.order = v.order[:0]
	for _, id := range ids {
		if v.counts[id] == 0 {
			v.order = append(v.order, id)
		}
		v.counts[id]++
	}
}

func (v *eventView) forget(id string) {
	if _, ok := v.counts[id]; !ok {
		return
	}
	delete(v.counts, id)
	for i, x := range v.order {
		if x == id {
			v.order = append(v.order[:i], v.order[i+1:]...)
			return
		}
	}
}
