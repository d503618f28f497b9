// Package state holds the canonical document. Every mutation goes through
// Store.Dispatch; subscribers are notified synchronously, in dispatch order,
// after each mutation that changed the document.
package state

import (
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"mediakit/internal/domain"
	"mediakit/internal/logging"
)

// Change is delivered to subscribers after a mutation.
type Change struct {
	Action   Action
	State    *domain.Document // read-only snapshot shared by all subscribers
	Revision uint64
}

// Listener receives changes. Listeners must not call Dispatch synchronously;
// schedule follow-up mutations instead.
type Listener func(Change)

// Store is the single owner of the mutable document.
type Store struct {
	logger *log.Logger

	// dispatchMu serializes apply + notify so notifications are never
	// reordered relative to mutations.
	dispatchMu sync.Mutex

	mu       sync.RWMutex
	doc      *domain.Document
	revision uint64
	retired  map[string]bool
	history  *history
	closed   bool

	subsMu  sync.Mutex
	subs    []subscription
	nextSub int
}

type subscription struct {
	id int
	fn Listener
}

// Options configures a Store.
type Options struct {
	Logger       *log.Logger
	HistoryLimit int
}

// New creates a store over doc. A nil doc starts empty. The initial document
// is repaired if it violates an invariant.
func New(doc *domain.Document, opts Options) *Store {
	logger := logging.OrDiscard(opts.Logger)
	if doc == nil {
		doc = domain.NewDocument()
	} else {
		doc = doc.Clone()
		if n := doc.Repair(); n > 0 {
			logger.Warn("initial document repaired", "fixes", n)
		}
	}
	return &Store{
		logger:  logger,
		doc:     doc,
		retired: make(map[string]bool),
		history: newHistory(opts.HistoryLimit),
	}
}

// State returns a deep copy of the current document.
func (s *Store) State() *domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Revision returns the number of applied mutations.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// View calls fn with the canonical document under a read lock. fn must not
// retain or modify doc.
func (s *Store) View(fn func(doc *domain.Document)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.doc)
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Dispatch applies a synchronously and notifies subscribers. Invalid and
// unrecognized actions are logged and skipped.
func (s *Store) Dispatch(a Action) {
	_ = s.Commit(a)
}

// Commit is Dispatch that also returns the validation error, for callers
// that surface it. No-op mutations return nil and notify nobody.
func (s *Store) Commit(a Action) error {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	switch a.(type) {
	case Undo, Redo:
		s.step(a)
		return nil
	}
	change, err := s.apply(a)
	if err != nil || change == nil {
		return err
	}
	s.notify(*change)
	return nil
}

// Batch applies every action fn dispatches with one notification at the end.
// Failed actions inside the batch are skipped; the rest still apply.
func (s *Store) Batch(fn func(d Dispatcher)) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	b := &batcher{store: s}
	fn(b)
	if len(b.applied) == 0 {
		return
	}
	s.mu.RLock()
	snap := s.doc.Clone()
	rev := s.revision
	s.mu.RUnlock()
	s.notify(Change{Action: Batch{Actions: b.applied}, State: snap, Revision: rev})
}

// Dispatcher is the dispatch surface handed to Batch callbacks.
type Dispatcher interface {
	Dispatch(a Action)
	Commit(a Action) error
}

type batcher struct {
	store   *Store
	applied []Action
}

func (b *batcher) Dispatch(a Action) { _ = b.Commit(a) }

func (b *batcher) Commit(a Action) error {
	change, err := b.store.apply(a)
	if change != nil {
		b.applied = append(b.applied, a)
	}
	return err
}

// CanUndo reports whether an undo step exists.
func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.canUndo()
}

// CanRedo reports whether a redo step exists.
func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.canRedo()
}

// Undo restores the previous snapshot. Returns false when there is none.
func (s *Store) Undo() bool {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	return s.step(Undo{})
}

// Redo re-applies the last undone snapshot.
func (s *Store) Redo() bool {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	return s.step(Redo{})
}

// Close ends the session: subscribers are dropped and later dispatches are
// ignored.
func (s *Store) Close() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.subsMu.Lock()
	s.subs = nil
	s.subsMu.Unlock()
}

// apply runs the reducer on a working copy and swaps it in. Callers hold
// dispatchMu. A nil change means nothing happened.
func (s *Store) apply(a Action) (*Change, error) {
	if a == nil {
		s.logger.Warn("dispatch of nil action ignored")
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("dispatch after close ignored", "kind", a.Kind())
		return nil, nil
	}

	var next *domain.Document
	record := true
	switch a := a.(type) {
	case SetState:
		next = s.replacement(a.Document)
	case Hydrate:
		next = s.replacement(a.Document)
		s.history.reset()
		record = false
	case Undo, Redo:
		// Not allowed inside a batch.
		s.logger.Warn("history actions cannot be batched", "kind", a.Kind())
		return nil, nil
	case Batch:
		s.logger.Warn("batch actions must go through Batch", "kind", a.Kind())
		return nil, nil
	default:
		next = s.doc.Clone()
		retired := make(map[string]bool)
		changed, err := reduce(next, a, s.retiredScratch(retired))
		if errors.Is(err, errUnknownAction) {
			s.logger.Warn("unrecognized action ignored", "kind", a.Kind())
			return nil, nil
		}
		if err != nil {
			s.logger.Warn("action rejected", "kind", a.Kind(), "err", err)
			return nil, err
		}
		if !changed {
			s.logger.Debug("action changed nothing", "kind", a.Kind())
			return nil, nil
		}
		for id := range retired {
			s.retired[id] = true
		}
	}

	if record {
		s.history.push(s.doc)
	}
	s.doc = next
	s.revision++
	s.logger.Debug("dispatched", "kind", a.Kind(), "revision", s.revision)
	return &Change{Action: a, State: next.Clone(), Revision: s.revision}, nil
}

// retiredScratch copies the session's retired ids into scratch so the
// reducer can extend them without touching s.retired on failure.
func (s *Store) retiredScratch(scratch map[string]bool) map[string]bool {
	for id := range s.retired {
		scratch[id] = true
	}
	return scratch
}

// replacement prepares a whole-document replacement. Ids present in the new
// document are no longer considered retired (undo may bring them back).
func (s *Store) replacement(doc *domain.Document) *domain.Document {
	var next *domain.Document
	if doc == nil {
		next = domain.NewDocument()
	} else {
		next = doc.Clone()
	}
	if n := next.Repair(); n > 0 {
		s.logger.Warn("replacement document repaired", "fixes", n)
	}
	s.swapRetired(next)
	return next
}

// swapRetired retires the component and section ids that next drops from
// the current document and releases those it brings back.
func (s *Store) swapRetired(next *domain.Document) {
	for id := range s.doc.Components {
		if _, kept := next.Components[id]; !kept {
			s.retired[id] = true
		}
	}
	for _, sec := range s.doc.Sections {
		if next.Section(sec.ID) == nil {
			s.retired["section:"+sec.ID] = true
		}
	}
	for id := range next.Components {
		delete(s.retired, id)
	}
	for _, sec := range next.Sections {
		delete(s.retired, "section:"+sec.ID)
	}
}

func (s *Store) step(a Action) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	var prev *domain.Document
	if _, undo := a.(Undo); undo {
		prev = s.history.undo(s.doc)
	} else {
		prev = s.history.redo(s.doc)
	}
	if prev == nil {
		s.mu.Unlock()
		return false
	}
	s.swapRetired(prev)
	s.doc = prev
	s.revision++
	change := Change{Action: a, State: prev.Clone(), Revision: s.revision}
	s.mu.Unlock()

	s.notify(change)
	return true
}

func (s *Store) notify(c Change) {
	s.subsMu.Lock()
	subs := append([]subscription(nil), s.subs...)
	s.subsMu.Unlock()

	for _, sub := range subs {
		s.call(sub.fn, c)
	}
}

func (s *Store) call(fn Listener, c Change) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panicked", "kind", c.Action.Kind(), "panic", r)
		}
	}()
	fn(c)
}
