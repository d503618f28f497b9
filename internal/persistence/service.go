// Package persistence saves the document to the backend endpoint: debounced
// after edits, periodically via autosave, and on demand. Every save attempt
// also writes a local draft that Load falls back to.
package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"mediakit/internal/clock"
	"mediakit/internal/domain"
	"mediakit/internal/logging"
	"mediakit/internal/service"
	"mediakit/internal/state"
)

// Status is the save state machine:
//
//	idle → unsaved → saving → saved | error
//	saved | error → unsaved   (on the next mutation)
type Status string

const (
	StatusIdle    Status = "idle"
	StatusUnsaved Status = "unsaved"
	StatusSaving  Status = "saving"
	StatusSaved   Status = "saved"
	StatusError   Status = "error"
)

// Defaults for Options.
const (
	DefaultDebounce       = time.Second
	DefaultAutosave       = "@every 30s"
	DefaultRequestTimeout = 30 * time.Second
)

// Snapshot is a point-in-time view of the service state.
type Snapshot struct {
	Status    Status    `json:"status"`
	Unsaved   bool      `json:"unsaved"`
	Saving    bool      `json:"saving"`
	LastSaved time.Time `json:"lastSaved,omitempty"`
	LastError string    `json:"lastError,omitempty"`
}

// SaveSuccessEvent is the payload of save-success.
type SaveSuccessEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	ComponentCount int       `json:"componentCount"`
}

// SaveErrorEvent is the payload of save-error.
type SaveErrorEvent struct {
	Message string `json:"message"`
}

// Options configures a Service.
type Options struct {
	Logger   *log.Logger
	Clock    clock.Clock
	Debounce time.Duration
	// Autosave is a cron spec. "-" disables autosave.
	Autosave       string
	RequestTimeout time.Duration
	// Drafts keeps local copies of the document. Nil disables drafts.
	Drafts Drafts
}

// Service owns the unsaved flag and the saving guard.
type Service struct {
	store   *state.Store
	backend Backend
	drafts  Drafts
	emitter service.EventEmitter
	logger  *log.Logger
	clock   clock.Clock
	timeout time.Duration
	spec    string

	debounce *Debouncer
	cron     *cron.Cron
	unsub    func()

	mu        sync.Mutex
	status    Status
	unsaved   bool
	saving    bool
	inflight  chan struct{}
	lastSaved time.Time
	lastErr   string
}

func NewService(store *state.Store, backend Backend, emitter service.EventEmitter, opts Options) *Service {
	s := &Service{
		store:   store,
		backend: backend,
		drafts:  opts.Drafts,
		emitter: emitter,
		logger:  logging.OrDiscard(opts.Logger).WithPrefix("persistence"),
		clock:   opts.Clock,
		timeout: opts.RequestTimeout,
		spec:    opts.Autosave,
		status:  StatusIdle,
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.timeout <= 0 {
		s.timeout = DefaultRequestTimeout
	}
	if s.spec == "" {
		s.spec = DefaultAutosave
	}
	wait := opts.Debounce
	if wait <= 0 {
		wait = DefaultDebounce
	}
	s.debounce = NewDebouncer(s.clock, wait, s.debounced)
	return s
}

// Start subscribes to the store and starts the autosave schedule.
func (s *Service) Start() error {
	s.unsub = s.store.Subscribe(s.onChange)
	if s.spec == "-" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.spec, s.Autosave); err != nil {
		s.unsub()
		return domain.WrapError(domain.ErrCodeValidation, err, "autosave schedule %q", s.spec)
	}
	c.Start()
	s.cron = c
	s.logger.Debug("autosave scheduled", "spec", s.spec)
	return nil
}

// Stop ends scheduling and writes a draft of pending changes. An in-flight
// save is allowed to finish.
func (s *Service) Stop() {
	if s.unsub != nil {
		s.unsub()
	}
	s.debounce.Cancel()
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.HasUnsavedChanges() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.writeDraft(ctx, s.store.State())
	}
}

// State returns the current status snapshot.
func (s *Service) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Status:    s.status,
		Unsaved:   s.unsaved,
		Saving:    s.saving,
		LastSaved: s.lastSaved,
		LastError: s.lastErr,
	}
}

// HasUnsavedChanges drives the warning shown before the session closes.
func (s *Service) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsaved
}

func (s *Service) onChange(c state.Change) {
	if _, ok := c.Action.(state.Hydrate); ok {
		return
	}
	s.mu.Lock()
	s.unsaved = true
	if !s.saving {
		s.status = StatusUnsaved
	}
	s.mu.Unlock()
	s.debounce.Trigger()
}

// Autosave saves when there are unsaved changes and no save is running.
// Invoked by the cron schedule.
func (s *Service) Autosave() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.trySave(ctx); err != nil {
		s.logger.Warn("autosave failed", "err", err)
	}
}

func (s *Service) debounced() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.trySave(ctx); err != nil {
		s.logger.Warn("save after edit failed", "err", err)
	}
}

// Save is the manual save. It waits for an in-flight save to resolve and
// then saves if changes are still pending.
func (s *Service) Save(ctx context.Context) error {
	for {
		s.mu.Lock()
		if !s.saving {
			s.mu.Unlock()
			break
		}
		done := s.inflight
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	_, err := s.trySave(ctx)
	return err
}

// trySave runs one save if unsaved and not saving. The check and the set of
// the saving flag happen under one lock, so concurrent triggers cannot both
// proceed. Reports whether a save was attempted.
func (s *Service) trySave(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.saving || !s.unsaved {
		s.mu.Unlock()
		return false, nil
	}
	s.saving = true
	s.status = StatusSaving
	s.inflight = make(chan struct{})
	done := s.inflight
	rev := s.store.Revision()
	doc := s.store.State()
	s.mu.Unlock()

	s.emitter.Emit(ctx, service.EventSaveRequested, nil)
	s.writeDraft(ctx, doc)
	s.logger.Debug("saving", "revision", rev, "components", len(doc.Components))
	res, err := s.backend.Save(ctx, doc)

	s.mu.Lock()
	s.saving = false
	close(done)
	if err != nil {
		s.status = StatusError
		s.lastErr = domain.UserMessage(err)
		s.mu.Unlock()
		s.logger.Error("save failed", "err", err)
		s.emitter.Emit(ctx, service.EventSaveError, SaveErrorEvent{Message: domain.UserMessage(err)})
		return true, err
	}

	ts := s.clock.Now()
	if res != nil && !res.Timestamp.IsZero() {
		ts = res.Timestamp
	}
	s.lastSaved = ts
	s.lastErr = ""
	// Edits made while the request was in flight keep the document unsaved.
	stale := s.store.Revision() != rev
	if stale {
		s.status = StatusUnsaved
	} else {
		s.unsaved = false
		s.status = StatusSaved
	}
	s.mu.Unlock()

	s.logger.Info("saved", "components", len(doc.Components), "stale", stale)
	s.emitter.Emit(ctx, service.EventSaveSuccess, SaveSuccessEvent{Timestamp: ts, ComponentCount: len(doc.Components)})
	if stale {
		s.debounce.Trigger()
	}
	return true, nil
}

// Load hydrates the store from the newest stored document. The local draft
// is used instead when the backend fails, has nothing stored, or holds an
// older copy; a restored draft counts as unsaved. Nothing stored anywhere
// leaves the store untouched.
func (s *Service) Load(ctx context.Context) error {
	res, err := s.backend.Load(ctx)
	if err != nil {
		s.logger.Error("load failed", "err", err)
	}
	if draft := s.loadDraft(ctx); draft != nil {
		if err != nil || res == nil || res.State == nil || draft.SavedAt.After(res.UpdatedAt) {
			return s.restore(draft, res)
		}
	}
	if err != nil {
		return err
	}
	if res == nil || res.State == nil {
		s.logger.Info("no stored document, starting empty")
		return nil
	}
	if err := s.store.Commit(state.Hydrate{Document: res.State}); err != nil {
		return err
	}
	s.mu.Lock()
	s.unsaved = false
	s.status = StatusIdle
	if !res.UpdatedAt.IsZero() {
		s.lastSaved = res.UpdatedAt
	}
	s.mu.Unlock()
	s.logger.Info("document loaded", "revision", res.Revision, "components", len(res.State.Components))
	return nil
}

func (s *Service) restore(draft *Draft, res *LoadResult) error {
	if err := s.store.Commit(state.Hydrate{Document: draft.State}); err != nil {
		return err
	}
	s.mu.Lock()
	s.unsaved = true
	s.status = StatusUnsaved
	if res != nil && !res.UpdatedAt.IsZero() {
		s.lastSaved = res.UpdatedAt
	}
	s.mu.Unlock()
	s.logger.Warn("restored local draft", "saved_at", draft.SavedAt, "components", len(draft.State.Components))
	s.debounce.Trigger()
	return nil
}

func (s *Service) writeDraft(ctx context.Context, doc *domain.Document) {
	if s.drafts == nil {
		return
	}
	if err := s.drafts.SaveDraft(ctx, doc); err != nil {
		s.logger.Warn("draft not written", "err", err)
	}
}

func (s *Service) loadDraft(ctx context.Context) *Draft {
	if s.drafts == nil {
		return nil
	}
	draft, err := s.drafts.LoadDraft(ctx)
	if err != nil {
		s.logger.Warn("draft unreadable", "err", err)
		return nil
	}
	if draft == nil || draft.State == nil {
		return nil
	}
	return draft
}
