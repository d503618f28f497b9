// Package render keeps the rendered element tree in line with the state
// store. Rendering is keyed by component id: a component never has more
// than one element.
package render

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"mediakit/internal/clock"
	"mediakit/internal/domain"
	"mediakit/internal/logging"
	"mediakit/internal/state"
)

// FallbackTemplate is used for component types without a registered
// template.
const FallbackTemplate = "fallback"

// DefaultDelay coalesces bursts of notifications into one reconcile.
const DefaultDelay = 16 * time.Millisecond

// Templates resolves a component type to its template name.
type Templates interface {
	Template(componentType string) (string, bool)
}

// Options configures a Reconciler.
type Options struct {
	Templates Templates
	Logger    *log.Logger
	Clock     clock.Clock
	// Delay before a coalesced reconcile runs. Zero means DefaultDelay.
	Delay time.Duration
}

// Reconciler renders components into a View.
type Reconciler struct {
	store     *state.Store
	view      View
	templates Templates
	logger    *log.Logger
	clock     clock.Clock
	delay     time.Duration

	mu       sync.Mutex
	bindings map[string][]func()
	lastFP   string
	pending  *domain.Document
	timer    clock.Timer
	repair   clock.Timer
	unsub    func()
	skipped  int
}

func NewReconciler(store *state.Store, view View, opts Options) *Reconciler {
	r := &Reconciler{
		store:     store,
		view:      view,
		templates: opts.Templates,
		logger:    logging.OrDiscard(opts.Logger).WithPrefix("render"),
		clock:     opts.Clock,
		delay:     opts.Delay,
		bindings:  make(map[string][]func()),
	}
	if r.clock == nil {
		r.clock = clock.Real{}
	}
	if r.delay <= 0 {
		r.delay = DefaultDelay
	}
	return r
}

// Attach subscribes the reconciler to the store.
func (r *Reconciler) Attach() {
	unsub := r.store.Subscribe(func(c state.Change) {
		switch c.Action.(type) {
		case state.Undo, state.Redo, state.SetState, state.Hydrate:
			// Replacements can revert props the fingerprint cannot see.
			r.schedule(c.State, Fingerprint(c.State))
		default:
			if ids := propsChanged(c.Action); len(ids) > 0 {
				r.redraw(c.State, ids)
			}
			r.OnStateChanged(c.State)
		}
	})
	r.mu.Lock()
	r.unsub = unsub
	r.mu.Unlock()
}

// Close unsubscribes, cancels pending work and detaches every binding.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.repair != nil {
		r.repair.Stop()
		r.repair = nil
	}
	for id := range r.bindings {
		r.detach(id)
	}
}

// ─────────────────────────────────────────────────────────────
// Direct rendering
// ─────────────────────────────────────────────────────────────

// RenderComponent draws the component, updating its element in place when
// one already exists. A nil data renders the stored props.
func (r *Reconciler) RenderComponent(id string, data map[string]any) error {
	var el Element
	var found bool
	r.store.View(func(doc *domain.Document) {
		el, found = r.element(doc, id)
	})
	if !found {
		return domain.Validationf("component %s does not exist", id)
	}
	if data != nil {
		el.Props = domain.CloneMap(data)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draw(el, r.view.Rendered())
}

// RenderAllComponents reconciles the whole view against the current state.
// Used on initial load and after hydration.
func (r *Reconciler) RenderAllComponents() error {
	doc := r.store.State()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFP = Fingerprint(doc)
	return r.reconcile(doc)
}

// RenderSection draws every component listed in the section.
func (r *Reconciler) RenderSection(sectionID string) error {
	var els []Element
	missing := false
	r.store.View(func(doc *domain.Document) {
		s := doc.Section(sectionID)
		if s == nil {
			missing = true
			return
		}
		for _, col := range s.Columns {
			for _, id := range col {
				if el, ok := r.element(doc, id); ok {
					els = append(els, el)
				}
			}
		}
	})
	if missing {
		return domain.Validationf("section %s does not exist", sectionID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, el := range els {
		if err := r.draw(el, r.view.Rendered()); err != nil {
			return err
		}
	}
	return nil
}

// Unmount removes the component's element and detaches its bindings.
func (r *Reconciler) Unmount(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unmount(id)
}

// Bind registers a detach function to run when id is unmounted.
func (r *Reconciler) Bind(id string, detach func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[id] = append(r.bindings[id], detach)
}

// Bindings returns the number of live bindings for id.
func (r *Reconciler) Bindings(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings[id])
}

// ─────────────────────────────────────────────────────────────
// State-driven reconciliation
// ─────────────────────────────────────────────────────────────

// propsChanged returns the ids whose props a (or any action batched in it)
// edited.
func propsChanged(a state.Action) []string {
	switch a := a.(type) {
	case state.UpdateComponent:
		return []string{a.ID}
	case state.Batch:
		var ids []string
		for _, inner := range a.Actions {
			ids = append(ids, propsChanged(inner)...)
		}
		return ids
	}
	return nil
}

// redraw draws ids from doc right away, outside the coalesced reconcile.
func (r *Reconciler) redraw(doc *domain.Document, ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		el, ok := r.element(doc, id)
		if !ok {
			continue
		}
		if err := r.draw(el, r.view.Rendered()); err != nil {
			r.logger.Error("redraw failed", "id", id, "err", err)
		}
	}
}

// Fingerprint is the cheap equality key used to short-circuit
// notifications: the section count, each section's serialized columns, the
// orphan order and the component count. Props are not part of it; the
// reconciler redraws the targets of UpdateComponent directly.
func Fingerprint(doc *domain.Document) string {
	type sectionKey struct {
		ID      string     `json:"i"`
		Type    string     `json:"t"`
		Columns [][]string `json:"c"`
	}
	keys := make([]sectionKey, len(doc.Sections))
	for i, s := range doc.Sections {
		keys[i] = sectionKey{ID: s.ID, Type: string(s.Type), Columns: s.Columns}
	}
	b, _ := json.Marshal(keys)
	orphans, _ := json.Marshal(doc.Layout)
	return strconv.Itoa(len(doc.Sections)) + "|" + string(b) + "|" + string(orphans) + "|" + strconv.Itoa(len(doc.Components))
}

// OnStateChanged schedules a reconcile against doc unless its fingerprint
// matches the last one seen. Bursts are coalesced: only the latest document
// is reconciled.
func (r *Reconciler) OnStateChanged(doc *domain.Document) {
	fp := Fingerprint(doc)

	r.mu.Lock()
	defer r.mu.Unlock()
	if fp == r.lastFP {
		r.skipped++
		r.logger.Debug("state unchanged by fingerprint, skipping render")
		return
	}
	r.lastFP = fp
	r.pending = doc
	if r.timer == nil {
		r.timer = r.clock.AfterFunc(r.delay, r.flush)
	}
}

// schedule queues a reconcile against doc regardless of the fingerprint.
func (r *Reconciler) schedule(doc *domain.Document, fp string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFP = fp
	r.pending = doc
	if r.timer == nil {
		r.timer = r.clock.AfterFunc(r.delay, r.flush)
	}
}

// Skipped returns how many notifications the fingerprint short-circuited.
func (r *Reconciler) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped
}

func (r *Reconciler) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.pending
	r.pending = nil
	r.timer = nil
	if doc == nil {
		return
	}
	if err := r.reconcile(doc); err != nil {
		r.logger.Error("reconcile failed", "err", err)
	}
}

// reconcile applies Plan to the view. Callers hold r.mu.
func (r *Reconciler) reconcile(doc *domain.Document) error {
	if violations := doc.Check(); len(violations) > 0 {
		for _, v := range violations {
			r.logger.Warn("consistency violation", "kind", v.Kind, "detail", v.Detail)
		}
		r.scheduleRepair()
	}

	diff := Plan(r.view.Rendered(), doc)
	if diff.Empty() {
		return nil
	}
	for _, id := range diff.Duplicates {
		n := r.view.Prune(id)
		r.logger.Warn("consistency violation", "kind", "duplicate_element", "id", id, "removed", n)
	}
	for _, id := range diff.Unmount {
		r.unmount(id)
	}
	for _, id := range diff.Mount {
		el, _ := r.element(doc, id)
		if err := r.view.Mount(el); err != nil {
			return fmt.Errorf("mount %s: %w", id, err)
		}
	}
	for _, id := range diff.Update {
		el, _ := r.element(doc, id)
		if err := r.view.Update(el); err != nil {
			return fmt.Errorf("update %s: %w", id, err)
		}
	}
	r.logger.Debug("reconciled",
		"mount", len(diff.Mount), "update", len(diff.Update),
		"unmount", len(diff.Unmount), "duplicates", len(diff.Duplicates))
	return nil
}

// scheduleRepair dispatches RepairState off the notification path.
// Callers hold r.mu.
func (r *Reconciler) scheduleRepair() {
	if r.repair != nil {
		return
	}
	r.repair = r.clock.AfterFunc(0, func() {
		r.mu.Lock()
		r.repair = nil
		r.mu.Unlock()
		r.store.Dispatch(state.RepairState{})
	})
}

// draw mounts or updates el, pruning stray duplicates. Callers hold r.mu.
func (r *Reconciler) draw(el Element, rendered []string) error {
	n := 0
	for _, id := range rendered {
		if id == el.ID {
			n++
		}
	}
	switch {
	case n == 0:
		if err := r.view.Mount(el); err != nil {
			return fmt.Errorf("mount %s: %w", el.ID, err)
		}
		return nil
	case n > 1:
		removed := r.view.Prune(el.ID)
		r.logger.Warn("consistency violation", "kind", "duplicate_element", "id", el.ID, "removed", removed)
	}
	if err := r.view.Update(el); err != nil {
		return fmt.Errorf("update %s: %w", el.ID, err)
	}
	return nil
}

// unmount removes id from the view and runs its detach functions. Callers
// hold r.mu.
func (r *Reconciler) unmount(id string) {
	if err := r.view.Unmount(id); err != nil {
		r.logger.Warn("unmount failed", "id", id, "err", err)
	}
	r.detach(id)
}

func (r *Reconciler) detach(id string) {
	for _, fn := range r.bindings[id] {
		fn()
	}
	delete(r.bindings, id)
}

// element builds the Element for id from doc. A component that references a
// missing section is drawn as an orphan.
func (r *Reconciler) element(doc *domain.Document, id string) (Element, bool) {
	c, ok := doc.Components[id]
	if !ok {
		return Element{}, false
	}
	el := Element{
		ID:       c.ID,
		Type:     c.Type,
		Template: FallbackTemplate,
		Props:    domain.CloneMap(c.Props),
	}
	if r.templates != nil {
		if name, ok := r.templates.Template(c.Type); ok {
			el.Template = name
		} else {
			r.logger.Debug("no template, using fallback", "type", c.Type)
		}
	}
	if places := doc.Locate(id); len(places) > 0 {
		p := places[0]
		el.SectionID, el.Column, el.Index = p.SectionID, p.Column, p.Index
	}
	return el, true
}
