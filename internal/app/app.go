package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"mediakit/internal/config"
	"mediakit/internal/domain"
	"mediakit/internal/dragdrop"
	"mediakit/internal/logging"
	mcpserver "mediakit/internal/mcp"
	"mediakit/internal/persistence"
	"mediakit/internal/registry"
	"mediakit/internal/service"
	"mediakit/internal/state"
)

// wailsEmitter delivers collaborator events to the WebView.
type wailsEmitter struct{}

func (wailsEmitter) Emit(ctx context.Context, event string, data any) {
	wailsRuntime.EventsEmit(ctx, event, data)
}

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx        context.Context
	configPath string
	logger     *log.Logger

	engine *Engine
	view   *eventView

	// agents is the MCP endpoint, nil unless mcp.listen is set.
	agentsMu   sync.Mutex
	agents     *mcpserver.Server
	stopAgents context.CancelFunc
}

// New creates a new App. An empty configPath uses the default lookup.
func New(configPath string) *App {
	return &App{configPath: configPath}
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx

	cfg, err := config.Load(a.configPath)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to load config: %v", err)
		return
	}
	a.logger = logging.Stderr(cfg.Editor.Debug)
	ctx = logging.WithLogger(ctx, a.logger)
	a.ctx = ctx

	emitter := wailsEmitter{}
	a.view = newEventView(ctx, emitter)
	engine, err := NewEngine(ctx, cfg, a.view, emitter, a.logger)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to start editor: %v", err)
		return
	}
	a.engine = engine

	// Loading talks to the backend; bound methods wait on the gate.
	go func() {
		if err := engine.Start(ctx); err != nil {
			a.logger.Error("editor failed to start", "err", err)
			return
		}
		if cfg.MCP.Listen != "" {
			a.startAgents(ctx, cfg.MCP, emitter)
		}
	}()
}

// startAgents serves the MCP endpoint. Destructive tools wait for the user
// to answer the approval prompt in the editor.
func (a *App) startAgents(ctx context.Context, cfg config.MCPConfig, emitter service.EventEmitter) {
	srv := mcpserver.New(mcpserver.Deps{
		Emitter:         emitter,
		Logger:          a.logger,
		Store:           a.engine.Store,
		Components:      a.engine.Components,
		Sections:        a.engine.Sections,
		Saver:           a.engine.Persist,
		Templates:       a.engine.Templates,
		ApprovalTimeout: cfg.ApprovalTimeout.Duration,
	})
	srvCtx, cancel := context.WithCancel(ctx)
	a.agentsMu.Lock()
	a.agents = srv
	a.stopAgents = cancel
	a.agentsMu.Unlock()
	go func() {
		if err := srv.ServeHTTP(srvCtx, cfg.Listen); err != nil {
			a.logger.Error("mcp endpoint stopped", "err", err)
		}
	}()
}

// BeforeClose warns when there are unsaved changes. Returning true keeps the
// window open.
func (a *App) BeforeClose(ctx context.Context) bool {
	if a.engine == nil || !a.engine.Persist.HasUnsavedChanges() {
		return false
	}
	choice, err := wailsRuntime.MessageDialog(ctx, wailsRuntime.MessageDialogOptions{
		Type:          wailsRuntime.QuestionDialog,
		Title:         "Unsaved changes",
		Message:       "Your media kit has unsaved changes. Save before closing?",
		Buttons:       []string{"Save", "Discard", "Cancel"},
		DefaultButton: "Save",
		CancelButton:  "Cancel",
	})
	if err != nil {
		a.logger.Warn("close dialog failed", "err", err)
		return true
	}
	switch choice {
	case "Discard":
		return false
	case "Save":
		saveCtx, cancel := context.WithTimeout(ctx, a.engine.Config.Persistence.RequestTimeout.Duration)
		defer cancel()
		if err := a.engine.Persist.Save(saveCtx); err != nil {
			wailsRuntime.MessageDialog(ctx, wailsRuntime.MessageDialogOptions{
				Type:    wailsRuntime.ErrorDialog,
				Title:   "Save failed",
				Message: domain.UserMessage(err),
			})
			return true
		}
		return false
	default:
		return true
	}
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if _, stop := a.agentServer(); stop != nil {
		stop()
	}
	if a.engine == nil {
		return
	}
	if err := a.engine.Close(); err != nil {
		a.logger.Warn("shutdown", "err", err)
	}
}

// ready blocks until the engine has loaded the document.
func (a *App) ready() (*Engine, error) {
	if a.engine == nil {
		return nil, domain.NewError(domain.ErrCodeDependencyUnavailable, "editor is not running")
	}
	if err := a.engine.Wait(a.ctx); err != nil {
		a.logger.Error("editor not ready", "err", err)
		return nil, err
	}
	return a.engine, nil
}

// ============================================================
// Document
// ============================================================

func (a *App) GetState() (*domain.Document, error) {
	e, err := a.ready()
	if err != nil {
		return nil, err
	}
	return e.Store.State(), nil
}

// Dispatch applies a raw action from the frontend.
func (a *App) Dispatch(kind string, payload string) error {
	e, err := a.ready()
	if err != nil {
		return err
	}
	var raw json.RawMessage
	if payload != "" {
		raw = json.RawMessage(payload)
	}
	action, err := state.DecodeAction(kind, raw)
	if err != nil {
		return err
	}
	return e.Store.Commit(action)
}

func (a *App) Undo() (bool, error) {
	e, err := a.ready()
	if err != nil {
		return false, err
	}
	return e.Store.Undo(), nil
}

func (a *App) Redo() (bool, error) {
	e, err := a.ready()
	if err != nil {
		return false, err
	}
	return e.Store.Redo(), nil
}

// HistoryState reports whether undo and redo are available.
func (a *App) HistoryState() (map[string]bool, error) {
	e, err := a.ready()
	if err != nil {
		return nil, err
	}
	return map[string]bool{"canUndo": e.Store.CanUndo(), "canRedo": e.Store.CanRedo()}, nil
}

func (a *App) UpdateTheme(theme map[string]any) error {
	e, err := a.ready()
	if err != nil {
		return err
	}
	return e.Store.Commit(state.UpdateTheme{Theme: theme})
}

// ============================================================
// Components
// ============================================================

func (a *App) AddComponent(componentType string, data map[string]any, targetSectionID string) (string, error) {
	e, err := a.ready()
	if err != nil {
		return "", err
	}
	return e.Components.AddComponent(a.ctx, componentType, data, targetSectionID)
}

func (a *App) RemoveComponent(id string) error {
	e, err := a.ready()
	if err != nil {
		return err
	}
	return e.Components.RemoveComponent(a.ctx, id)
}

func (a *App) UpdateComponent(id string, updates map[string]any) error {
	e, err := a.ready()
	if err != nil {
		return err
	}
	return e.Components.UpdateComponent(a.ctx, id, updates)
}

func (a *App) DuplicateComponent(id string) (string, error) {
	e, err := a.ready()
	if err != nil {
		return "", err
	}
	return e.Components.DuplicateComponent(a.ctx, id)
}

// MoveComponent moves id one slot "up" or "down" in its column.
func (a *App) MoveComponent(id, direction string) error {
	e, err := a.ready()
	if err != nil {
		return err
	}
	return e.Components.MoveComponent(a.ctx, id, state.Direction(direction))
}

func (a *App) ListComponentTypes() ([]registry.Schema, error) {
	e, err := a.ready()
	if err != nil {
		return nil, err
	}
	var out []registry.Schema
	for _, t := range e.Templates.Types() {
		if s, ok := e.Templates.Schema(t); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// ============================================================
// Sections
// ============================================================

func (a *App) RegisterSection(id, sectionType string, options map[string]any) (string, error) {
	e, err := a.ready()
	if err != nil {
		return "", err
	}
	return e.Sections.RegisterSection(a.ctx, id, domain.SectionType(sectionType), options)
}

func (a *App) RemoveSection(id string) error {
	e, err := a.ready()
	if err != nil {
		return err
	}
	return e.Sections.RemoveSection(a.ctx, id)
}

func (a *App) AssignComponentToSection(componentID, sectionID string, column int) error {
	e, err := a.ready()
	if err != nil {
		return err
	}
	return e.Sections.AssignComponentToSection(a.ctx, componentID, sectionID, column)
}

func (a *App) ReorderSections(order []string) error {
	e, err := a.ready()
	if err != nil {
		return err
	}
	return e.Sections.ReorderSections(a.ctx, order)
}

func (a *App) UpdateSectionOptions(id string, options map[string]any) error {
	e, err := a.ready()
	if err != nil {
		return err
	}
	return e.Sections.UpdateSectionOptions(a.ctx, id, options)
}

// ============================================================
// Rendering
// ============================================================

// ReportRendered tells the engine which element ids the WebView currently
// holds, one entry per element, and reconciles against it.
func (a *App) ReportRendered(ids []string) error {
	e, err := a.ready()
	if err != nil {
		return err
	}
	a.view.Reported(ids)
	return e.Reconciler.RenderAllComponents()
}

func (a *App) RenderSection(id string) error {
	e, err := a.ready()
	if err != nil {
		return err
	}
	return e.Reconciler.RenderSection(id)
}

// ============================================================
// Drag and drop
// ============================================================

func (a *App) DragStart(drag dragdrop.DragData) error {
	e, err := a.ready()
	if err != nil {
		return err
	}
	return e.DragDrop.Start(a.ctx, drag)
}

func (a *App) DragEnter(target string) {
	if e, err := a.ready(); err == nil {
		e.DragDrop.Enter(a.ctx, target)
	}
}

// DragOver returns the drop position for the pointer offset within target.
func (a *App) DragOver(target string, offsetY, height float64) dragdrop.Position {
	if e, err := a.ready(); err == nil {
		return e.DragDrop.Over(a.ctx, target, offsetY, height)
	}
	return dragdrop.PositionFor(offsetY, height)
}

func (a *App) DragLeave(target string) {
	if e, err := a.ready(); err == nil {
		e.DragDrop.Leave(a.ctx, target)
	}
}

func (a *App) DragCancel() {
	if e, err := a.ready(); err == nil {
		e.DragDrop.Cancel(a.ctx)
	}
}

func (a *App) Drop(drop dragdrop.DropData) (string, error) {
	e, err := a.ready()
	if err != nil {
		return "", err
	}
	return e.DragDrop.Drop(a.ctx, drop)
}

func (a *App) CanDrop(componentType string) bool {
	if e, err := a.ready(); err == nil {
		return e.DragDrop.CanDrop(componentType)
	}
	return false
}

// ============================================================
// Persistence
// ============================================================

// Save saves now, waiting for any save already in flight.
func (a *App) Save() (persistence.Snapshot, error) {
	e, err := a.ready()
	if err != nil {
		return persistence.Snapshot{}, err
	}
	err = e.Persist.Save(a.ctx)
	if err != nil {
		return e.Persist.State(), errors.New(domain.UserMessage(err))
	}
	return e.Persist.State(), nil
}

func (a *App) SaveStatus() persistence.Snapshot {
	if a.engine == nil {
		return persistence.Snapshot{Status: persistence.StatusIdle}
	}
	return a.engine.Persist.State()
}

func (a *App) HasUnsavedChanges() bool {
	return a.engine != nil && a.engine.Persist.HasUnsavedChanges()
}

// Reload replaces the document with the newest saved revision.
func (a *App) Reload() error {
	e, err := a.ready()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(a.ctx, e.Config.Persistence.RequestTimeout.Duration)
	defer cancel()
	if err := e.Persist.Load(ctx); err != nil {
		return err
	}
	return e.Reconciler.RenderAllComponents()
}

var _ service.EventEmitter = wailsEmitter{}

// ============================================================
// Agent approvals
// ============================================================

// PendingAgentActions lists destructive agent requests awaiting an answer.
func (a *App) PendingAgentActions() []mcpserver.PendingAction {
	srv, _ := a.agentServer()
	if srv == nil {
		return nil
	}
	return srv.Pending()
}

// ApproveAgentAction lets a waiting agent request proceed.
func (a *App) ApproveAgentAction(id string) bool {
	srv, _ := a.agentServer()
	return srv != nil && srv.Approve(id)
}

// RejectAgentAction refuses a waiting agent request.
func (a *App) RejectAgentAction(id string) bool {
	srv, _ := a.agentServer()
	return srv != nil && srv.Reject(id)
}

func (a *App) agentServer() (*mcpserver.Server, context.CancelFunc) {
	a.agentsMu.Lock()
	defer a.agentsMu.Unlock()
	return a.agents, a.stopAgents
}
