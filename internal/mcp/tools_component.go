package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"mediakit/internal/service"
	"mediakit/internal/state"
)

func (s *Server) registerComponentTools() {
	// ── add_component ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_component",
		mcp.WithDescription("Add a component to the media kit. Without sectionId it goes to the first section, creating a full-width section on an empty kit."),
		mcp.WithString("type",
			mcp.Description("Component type (see list_component_types)"),
			mcp.Required(),
		),
		mcp.WithString("props", mcp.Description("Initial props as a JSON object (optional, merged over template defaults)")),
		mcp.WithString("sectionId", mcp.Description("Target section (optional)")),
		mcp.WithNumber("column", mcp.Description("Column index in the target section (optional, default 0)")),
		mcp.WithString("before", mcp.Description("Insert before this component id (optional)")),
		mcp.WithString("after", mcp.Description("Insert after this component id (optional)")),
	), s.handleAddComponent)

	// ── update_component ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_component",
		mcp.WithDescription("Shallow-merge props into an existing component"),
		mcp.WithString("componentId", mcp.Description("Component ID"), mcp.Required()),
		mcp.WithString("props", mcp.Description("Props to merge, as a JSON object"), mcp.Required()),
	), s.handleUpdateComponent)

	// ── duplicate_component ────────────────────────────
	s.mcp.AddTool(mcp.NewTool("duplicate_component",
		mcp.WithDescription("Copy a component; the copy is placed right after the original"),
		mcp.WithString("componentId", mcp.Description("Component ID"), mcp.Required()),
	), s.handleDuplicateComponent)

	// ── move_component ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_component",
		mcp.WithDescription("Move a component one slot up or down within its column"),
		mcp.WithString("componentId", mcp.Description("Component ID"), mcp.Required()),
		mcp.WithString("direction",
			mcp.Description("up or down"),
			mcp.Enum(string(state.Up), string(state.Down)),
			mcp.Required(),
		),
	), s.handleMoveComponent)

	// ── get_component ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_component",
		mcp.WithDescription("Get one component with its props and placement"),
		mcp.WithString("componentId", mcp.Description("Component ID"), mcp.Required()),
	), s.handleGetComponent)

	// ── remove_component (destructive) ─────────────────
	s.mcp.AddTool(mcp.NewTool("remove_component",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a component. Requires user approval."),
		mcp.WithString("componentId", mcp.Description("Component ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRemoveComponent)
}

func (s *Server) handleAddComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := requireString(req, "type")
	if err != nil {
		return nil, err
	}
	props, err := objectArg(req, "props")
	if err != nil {
		return nil, err
	}
	sectionID := req.GetString("sectionId", "")
	before, after := req.GetString("before", ""), req.GetString("after", "")

	var id string
	if sectionID == "" && before == "" && after == "" {
		id, err = s.components.AddComponent(ctx, typ, props, "")
	} else {
		id, err = s.components.AddComponentAt(ctx, typ, props, service.Placement{
			SectionID: sectionID,
			Column:    req.GetInt("column", 0),
			Anchor:    state.Anchor{Before: before, After: after},
		})
	}
	if err != nil {
		return nil, fmt.Errorf("add component: %w", err)
	}
	s.emitLayoutChanged(ctx, "add_component")
	return jsonResult(s.components.GetComponent(id))
}

func (s *Server) handleUpdateComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "componentId")
	if err != nil {
		return nil, err
	}
	props, err := objectArg(req, "props")
	if err != nil {
		return nil, err
	}
	if err := s.components.UpdateComponent(ctx, id, props); err != nil {
		return nil, fmt.Errorf("update component: %w", err)
	}
	s.emitLayoutChanged(ctx, "update_component")
	return jsonResult(s.components.GetComponent(id))
}

func (s *Server) handleDuplicateComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "componentId")
	if err != nil {
		return nil, err
	}
	copyID, err := s.components.DuplicateComponent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("duplicate component: %w", err)
	}
	s.emitLayoutChanged(ctx, "duplicate_component")
	return jsonResult(s.components.GetComponent(copyID))
}

func (s *Server) handleMoveComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "componentId")
	if err != nil {
		return nil, err
	}
	dir := state.Direction(req.GetString("direction", ""))
	if dir != state.Up && dir != state.Down {
		return nil, fmt.Errorf("direction must be up or down")
	}
	if err := s.components.MoveComponent(ctx, id, dir); err != nil {
		return nil, fmt.Errorf("move component: %w", err)
	}
	s.emitLayoutChanged(ctx, "move_component")
	return textResult(fmt.Sprintf("Moved %s %s", id, dir)), nil
}

func (s *Server) handleGetComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "componentId")
	if err != nil {
		return nil, err
	}
	c := s.components.GetComponent(id)
	if c == nil {
		return nil, fmt.Errorf("component %s not found", id)
	}
	return jsonResult(c)
}

func (s *Server) handleRemoveComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "componentId")
	if err != nil {
		return nil, err
	}
	c := s.components.GetComponent(id)
	if c == nil {
		return nil, fmt.Errorf("component %s not found", id)
	}
	if err := s.approval.Request(ctx, "remove_component", fmt.Sprintf("Delete %s component %s", c.Type, id), id); err != nil {
		return nil, err
	}
	if err := s.components.RemoveComponent(ctx, id); err != nil {
		return nil, fmt.Errorf("remove component: %w", err)
	}
	s.emitLayoutChanged(ctx, "remove_component")
	return textResult(fmt.Sprintf("Component %s deleted", id)), nil
}
