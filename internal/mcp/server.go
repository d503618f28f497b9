// Package mcpserver exposes the media kit engine to AI agents over MCP.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mediakit/internal/logging"
	"mediakit/internal/persistence"
	"mediakit/internal/registry"
	"mediakit/internal/service"
	"mediakit/internal/state"
)

// EventEmitter lets the server notify the editor frontend.
type EventEmitter = service.EventEmitter

// Saver is the persistence surface used by the save tools.
type Saver interface {
	Save(ctx context.Context) error
	State() persistence.Snapshot
}

// Server is the MCP server for the media kit editor.
// It exposes tools, resources, and prompts so agents can build a layout.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue
	logger   *log.Logger

	// Services (injected from app layer)
	store      *state.Store
	components *service.ComponentService
	sections   *service.SectionService
	saver      Saver
	templates  *registry.Registry
}

// Deps holds all dependencies passed from the App layer to the MCP server.
// Saver and Templates are optional.
type Deps struct {
	Emitter    EventEmitter
	Logger     *log.Logger
	Store      *state.Store
	Components *service.ComponentService
	Sections   *service.SectionService
	Saver      Saver
	Templates  *registry.Registry

	// AutoApprove skips the confirmation round trip for destructive tools.
	// Standalone mode has no frontend to confirm with.
	AutoApprove     bool
	ApprovalTimeout time.Duration
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	emitter := deps.Emitter
	if emitter == nil {
		emitter = service.NopEmitter{}
	}
	approval := NewApprovalQueue(emitter, deps.ApprovalTimeout)
	approval.SetAutoApprove(deps.AutoApprove)

	s := &Server{
		emitter:    emitter,
		approval:   approval,
		logger:     logging.OrDiscard(deps.Logger).WithPrefix("mcp"),
		store:      deps.Store,
		components: deps.Components,
		sections:   deps.Sections,
		saver:      deps.Saver,
		templates:  deps.Templates,
	}

	s.mcp = server.NewMCPServer(
		"mediakit-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerComponentTools()
	s.registerSectionTools()
	s.registerDocumentTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("starting stdio server")
	return server.ServeStdio(s.mcp)
}

// ServeHTTP serves the streamable HTTP transport on addr until ctx ends.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpSrv := server.NewStreamableHTTPServer(s.mcp)
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", addr)
		errc <- httpSrv.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve mcp: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}

// Pending lists the destructive actions waiting for the user.
func (s *Server) Pending() []PendingAction {
	return s.approval.Pending()
}

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) bool {
	return s.approval.Approve(actionID)
}

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) bool {
	return s.approval.Reject(actionID)
}

// ── Helpers ────────────────────────────────────────────────

// EventLayoutChanged tells the frontend an agent edited the document.
const EventLayoutChanged = "mcp:layout-changed"

func (s *Server) emitLayoutChanged(ctx context.Context, tool string) {
	s.emitter.Emit(ctx, EventLayoutChanged, map[string]any{
		"tool":     tool,
		"revision": s.store.Revision(),
	})
}

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}
