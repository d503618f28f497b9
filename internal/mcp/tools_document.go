package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"mediakit/internal/domain"
	"mediakit/internal/state"
)

func (s *Server) registerDocumentTools() {
	// ── get_state ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Get the full media kit document: components, sections, orphan layout and theme"),
	), s.handleGetState)

	// ── check_state ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("check_state",
		mcp.WithDescription("Report layout consistency problems (dangling sections, duplicate listings)"),
	), s.handleCheckState)

	// ── list_component_types ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_component_types",
		mcp.WithDescription("List component types from the template library with their default props"),
	), s.handleListComponentTypes)

	// ── update_theme ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_theme",
		mcp.WithDescription("Shallow-merge theme settings (colors, fonts)"),
		mcp.WithString("theme", mcp.Description("Theme settings as a JSON object"), mcp.Required()),
	), s.handleUpdateTheme)

	// ── dispatch_action ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("dispatch_action",
		mcp.WithDescription("Dispatch a raw state action, e.g. ADD_COMPONENT with {\"component\":{...},\"sectionId\":\"...\"}"),
		mcp.WithString("kind", mcp.Description("Action kind"), mcp.Required()),
		mcp.WithString("payload", mcp.Description("Action payload as JSON (optional)")),
	), s.handleDispatchAction)

	// ── undo / redo ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last change"),
	), s.handleUndo)
	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the last undone change"),
	), s.handleRedo)

	// ── save_document / save_status ────────────────────
	s.mcp.AddTool(mcp.NewTool("save_document",
		mcp.WithDescription("Save the media kit now"),
	), s.handleSaveDocument)
	s.mcp.AddTool(mcp.NewTool("save_status",
		mcp.WithDescription("Report whether there are unsaved changes and the last save result"),
	), s.handleSaveStatus)
}

func (s *Server) handleGetState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.store.State())
}

func (s *Server) handleCheckState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var violations []domain.Violation
	s.store.View(func(doc *domain.Document) {
		violations = doc.Check()
	})
	if len(violations) == 0 {
		return textResult("Document is consistent"), nil
	}
	return jsonResult(violations)
}

func (s *Server) handleListComponentTypes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.templates == nil {
		return nil, fmt.Errorf("no template library configured")
	}
	type typeSummary struct {
		Type     string         `json:"type"`
		Name     string         `json:"name"`
		Category string         `json:"category"`
		Defaults map[string]any `json:"defaults"`
	}
	var out []typeSummary
	for _, t := range s.templates.Types() {
		sc, _ := s.templates.Schema(t)
		out = append(out, typeSummary{Type: sc.Type, Name: sc.Name, Category: sc.Category, Defaults: sc.Defaults})
	}
	return jsonResult(out)
}

func (s *Server) handleUpdateTheme(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	theme, err := objectArg(req, "theme")
	if err != nil {
		return nil, err
	}
	if err := s.store.Commit(state.UpdateTheme{Theme: theme}); err != nil {
		return nil, fmt.Errorf("update theme: %w", err)
	}
	s.emitLayoutChanged(ctx, "update_theme")
	return jsonResult(s.store.State().Theme)
}

func (s *Server) handleDispatchAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := requireString(req, "kind")
	if err != nil {
		return nil, err
	}
	var payload json.RawMessage
	if raw := req.GetString("payload", ""); raw != "" {
		payload = json.RawMessage(raw)
	}
	a, err := state.DecodeAction(kind, payload)
	if err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	before := s.store.Revision()
	if err := s.store.Commit(a); err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", kind, err)
	}
	after := s.store.Revision()
	if after == before {
		return textResult(fmt.Sprintf("%s changed nothing", kind)), nil
	}
	s.emitLayoutChanged(ctx, "dispatch_action")
	return textResult(fmt.Sprintf("%s applied (revision %d)", kind, after)), nil
}

func (s *Server) handleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.store.Undo() {
		return textResult("Nothing to undo"), nil
	}
	s.emitLayoutChanged(ctx, "undo")
	return textResult("Undone"), nil
}

func (s *Server) handleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.store.Redo() {
		return textResult("Nothing to redo"), nil
	}
	s.emitLayoutChanged(ctx, "redo")
	return textResult("Redone"), nil
}

func (s *Server) handleSaveDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.saver == nil {
		return nil, fmt.Errorf("saving is not configured")
	}
	if err := s.saver.Save(ctx); err != nil {
		return nil, fmt.Errorf("save: %s", domain.UserMessage(err))
	}
	return jsonResult(s.saver.State())
}

func (s *Server) handleSaveStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.saver == nil {
		return nil, fmt.Errorf("saving is not configured")
	}
	return jsonResult(s.saver.State())
}
