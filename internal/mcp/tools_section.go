package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"mediakit/internal/domain"
	"mediakit/internal/state"
)

func (s *Server) registerSectionTools() {
	// ── list_sections ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_sections",
		mcp.WithDescription("List sections in display order with their column contents"),
	), s.handleListSections)

	// ── register_section ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("register_section",
		mcp.WithDescription("Create a layout section"),
		mcp.WithString("type",
			mcp.Description("Section layout"),
			mcp.Enum(string(domain.SectionFullWidth), string(domain.SectionTwoColumn), string(domain.SectionThreeColumn)),
			mcp.Required(),
		),
		mcp.WithString("sectionId", mcp.Description("Section ID (optional, generated when omitted)")),
		mcp.WithString("options", mcp.Description("Section options as a JSON object (optional)")),
		mcp.WithString("before", mcp.Description("Insert before this section id (optional, default appends)")),
	), s.handleRegisterSection)

	// ── assign_component ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("assign_component",
		mcp.WithDescription("Move a component into a section column. An empty sectionId makes it an orphan."),
		mcp.WithString("componentId", mcp.Description("Component ID"), mcp.Required()),
		mcp.WithString("sectionId", mcp.Description("Target section ID")),
		mcp.WithNumber("column", mcp.Description("Column index (clamped to the section's columns)")),
		mcp.WithString("before", mcp.Description("Place before this component id (optional)")),
		mcp.WithString("after", mcp.Description("Place after this component id (optional)")),
	), s.handleAssignComponent)

	// ── reorder_sections ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("reorder_sections",
		mcp.WithDescription("Set the display order of all sections"),
		mcp.WithString("order", mcp.Description("Comma-separated section IDs, every section exactly once"), mcp.Required()),
	), s.handleReorderSections)

	// ── update_section_options ─────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_section_options",
		mcp.WithDescription("Shallow-merge options into a section"),
		mcp.WithString("sectionId", mcp.Description("Section ID"), mcp.Required()),
		mcp.WithString("options", mcp.Description("Options as a JSON object"), mcp.Required()),
	), s.handleUpdateSectionOptions)

	// ── remove_section (destructive) ───────────────────
	s.mcp.AddTool(mcp.NewTool("remove_section",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a section. Its components become orphans. Requires user approval."),
		mcp.WithString("sectionId", mcp.Description("Section ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRemoveSection)
}

func (s *Server) handleListSections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.sections.AllSections())
}

func (s *Server) handleRegisterSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := requireString(req, "type")
	if err != nil {
		return nil, err
	}
	opts, err := objectArg(req, "options")
	if err != nil {
		return nil, err
	}
	id, err := s.sections.RegisterSectionBefore(ctx, req.GetString("sectionId", ""), domain.SectionType(typ), opts, req.GetString("before", ""))
	if err != nil {
		return nil, fmt.Errorf("register section: %w", err)
	}
	s.emitLayoutChanged(ctx, "register_section")
	return jsonResult(s.sections.GetSection(id))
}

func (s *Server) handleAssignComponent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "componentId")
	if err != nil {
		return nil, err
	}
	at := state.Anchor{Before: req.GetString("before", ""), After: req.GetString("after", "")}
	if err := s.sections.AssignComponentAt(ctx, id, req.GetString("sectionId", ""), req.GetInt("column", 0), at); err != nil {
		return nil, fmt.Errorf("assign component: %w", err)
	}
	s.emitLayoutChanged(ctx, "assign_component")
	return jsonResult(s.components.GetComponent(id))
}

func (s *Server) handleReorderSections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := requireString(req, "order")
	if err != nil {
		return nil, err
	}
	var order []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			order = append(order, id)
		}
	}
	if err := s.sections.ReorderSections(ctx, order); err != nil {
		return nil, fmt.Errorf("reorder sections: %w", err)
	}
	s.emitLayoutChanged(ctx, "reorder_sections")
	return textResult(fmt.Sprintf("Sections ordered: %s", strings.Join(order, ", "))), nil
}

func (s *Server) handleUpdateSectionOptions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "sectionId")
	if err != nil {
		return nil, err
	}
	opts, err := objectArg(req, "options")
	if err != nil {
		return nil, err
	}
	if err := s.sections.UpdateSectionOptions(ctx, id, opts); err != nil {
		return nil, fmt.Errorf("update section options: %w", err)
	}
	s.emitLayoutChanged(ctx, "update_section_options")
	return jsonResult(s.sections.GetSection(id))
}

func (s *Server) handleRemoveSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "sectionId")
	if err != nil {
		return nil, err
	}
	sec := s.sections.GetSection(id)
	if sec == nil {
		return nil, fmt.Errorf("section %s not found", id)
	}
	desc := fmt.Sprintf("Delete %s section %s (%d components become orphans)", sec.Type, id, sec.ComponentCount())
	if err := s.approval.Request(ctx, "remove_section", desc, id); err != nil {
		return nil, err
	}
	if err := s.sections.RemoveSection(ctx, id); err != nil {
		return nil, fmt.Errorf("remove section: %w", err)
	}
	s.emitLayoutChanged(ctx, "remove_section")
	return textResult(fmt.Sprintf("Section %s deleted", id)), nil
}
