package app

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/charmbracelet/log"

	"mediakit/internal/backend"
	"mediakit/internal/config"
	"mediakit/internal/domain"
	"mediakit/internal/dragdrop"
	"mediakit/internal/logging"
	"mediakit/internal/persistence"
	"mediakit/internal/ready"
	"mediakit/internal/registry"
	"mediakit/internal/render"
	"mediakit/internal/secret"
	"mediakit/internal/service"
	"mediakit/internal/state"
)

// Engine is the composition root shared by the desktop shell, the MCP
// server and the tests. Every collaborator is built here and injected; none
// of them look each other up.
type Engine struct {
	Config     config.Config
	Logger     *log.Logger
	Store      *state.Store
	Templates  *registry.Registry
	Sections   *service.SectionService
	Components *service.ComponentService
	Reconciler *render.Reconciler
	Persist    *persistence.Service
	DragDrop   *dragdrop.Coordinator
	// Ready resolves once the saved document has been loaded (or loading
	// has failed and the editor continues with an empty kit).
	Ready *ready.Gate

	emitter    service.EventEmitter
	unforward  func()
	docs       domain.DocumentStore
	drafts     *persistence.DraftStore
	stopServer context.CancelFunc
	serverDone chan error
}

// NewEngine wires the engine. view receives rendered elements; emitter
// receives collaborator events. Neither may be nil.
func NewEngine(ctx context.Context, cfg config.Config, view render.View, emitter service.EventEmitter, logger *log.Logger) (*Engine, error) {
	logger = logging.OrDiscard(logger)
	if err := resolveSecrets(&cfg, secret.NewKeychainStore()); err != nil {
		return nil, err
	}
	e := &Engine{
		Config:  cfg,
		Logger:  logger,
		emitter: emitter,
		Ready:   ready.NewGate("engine", cfg.Editor.ReadyTimeout.Duration),
	}

	e.Templates = registry.New(cfg.Registry.Dir, logger)
	if err := e.Templates.Load(); err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	e.Store = state.New(nil, state.Options{Logger: logger.WithPrefix("state"), HistoryLimit: cfg.Editor.HistoryLimit})
	e.Reconciler = render.NewReconciler(e.Store, view, render.Options{
		Templates: e.Templates,
		Logger:    logger,
		Delay:     cfg.Editor.RenderDelay.Duration,
	})
	e.Sections = service.NewSectionService(e.Store, emitter, logger)
	e.Components = service.NewComponentService(e.Store, e.Sections, e.Reconciler, e.Templates, emitter, logger)
	e.DragDrop = dragdrop.New(e.Components, e.Sections, dragdrop.Options{
		Allowed: cfg.Editor.AllowedTypes,
		Emitter: emitter,
		Logger:  logger,
	})

	endpoint := cfg.Persistence.Endpoint
	token := cfg.Persistence.SecurityToken
	if endpoint == "" {
		addr, err := e.startLocalBackend(ctx)
		if err != nil {
			e.Close()
			return nil, err
		}
		endpoint = "http://" + addr
		if token == "" {
			token = cfg.Backend.Token
		}
	}
	opts := persistence.Options{
		Logger:         logger,
		Debounce:       cfg.Persistence.Debounce.Duration,
		Autosave:       cfg.Persistence.Autosave,
		RequestTimeout: cfg.Persistence.RequestTimeout.Duration,
	}
	if path := cfg.Persistence.Drafts; path != "" && path != "-" {
		drafts, err := openDrafts(path, cfg.Editor.DocumentID, logger)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.drafts = drafts
		opts.Drafts = drafts
	}
	client := persistence.NewClient(endpoint, cfg.Editor.DocumentID, token, cfg.Persistence.RequestTimeout.Duration)
	e.Persist = persistence.NewService(e.Store, client, emitter, opts)
	return e, nil
}

// startLocalBackend serves the reference endpoint on a loopback port.
func (e *Engine) startLocalBackend(ctx context.Context) (string, error) {
	docs, err := OpenDocumentStore(ctx, e.Config.Backend, e.Logger)
	if err != nil {
		return "", fmt.Errorf("open local backend: %w", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		docs.Close()
		return "", fmt.Errorf("listen local backend: %w", err)
	}
	e.docs = docs
	srvCtx, cancel := context.WithCancel(context.Background())
	e.stopServer = cancel
	e.serverDone = make(chan error, 1)
	h := backend.NewHandler(docs, e.Config.Backend.Token, e.Logger)
	go func() { e.serverDone <- backend.ServeListener(srvCtx, ln, h) }()
	e.Logger.Debug("local backend started", "addr", ln.Addr().String(), "driver", e.Config.Backend.Driver)
	return ln.Addr().String(), nil
}

// Start attaches the observers, loads the saved document and resolves Ready.
// A failed load is logged and the editor continues with an empty kit.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Persist.Start(); err != nil {
		e.Ready.Fail(err)
		return fmt.Errorf("start persistence: %w", err)
	}
	e.Reconciler.Attach()
	e.unforward = service.ForwardStateChanges(ctx, e.Store, e.emitter)

	if cfg := e.Config.Registry; cfg.Watch && cfg.Dir != "" {
		if err := e.Templates.Watch(0, func(types []string) {
			e.Logger.Info("component library changed", "types", len(types))
			if err := e.Reconciler.RenderAllComponents(); err != nil {
				e.Logger.Warn("re-render after template reload failed", "err", err)
			}
		}); err != nil {
			e.Logger.Warn("template watch disabled", "err", err)
		}
	}

	if err := e.Persist.Load(ctx); err != nil {
		e.Logger.Warn("could not load saved media kit, starting empty", "err", domain.UserMessage(err))
	}
	if err := e.Reconciler.RenderAllComponents(); err != nil {
		e.Logger.Warn("initial render incomplete", "err", err)
	}
	e.Ready.Resolve()
	e.Logger.Info("editor ready", "document", e.Config.Editor.DocumentID, "components", len(e.Store.State().Components))
	return nil
}

// Wait blocks until the engine is ready or the readiness timeout passes.
func (e *Engine) Wait(ctx context.Context) error {
	return e.Ready.Wait(ctx)
}

// Close tears down observers, timers and the local backend. Unsaved changes
// are not flushed; callers that care call Persist.Save first.
func (e *Engine) Close() error {
	if e.unforward != nil {
		e.unforward()
	}
	if e.Persist != nil {
		e.Persist.Stop()
	}
	if e.Reconciler != nil {
		e.Reconciler.Close()
	}
	if e.Templates != nil {
		e.Templates.Close()
	}
	if e.Store != nil {
		e.Store.Close()
	}
	var errs []error
	if e.stopServer != nil {
		e.stopServer()
		if err := <-e.serverDone; err != nil {
			errs = append(errs, err)
		}
	}
	if e.docs != nil {
		if err := e.docs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.drafts != nil {
		if err := e.drafts.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
