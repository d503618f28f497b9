package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("build_media_kit",
		mcp.WithPromptDescription("Guide through laying out a podcast guest media kit"),
		mcp.WithArgument("guest",
			mcp.ArgumentDescription("Name of the guest the kit is for"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("focus",
			mcp.ArgumentDescription("Topics or audience the kit should emphasize"),
		),
	), s.handleBuildMediaKitPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("tidy_layout",
		mcp.WithPromptDescription("Review the current layout and fix orphans and uneven columns"),
	), s.handleTidyLayoutPrompt)
}

func (s *Server) handleBuildMediaKitPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	guest := req.Params.Arguments["guest"]
	focus := req.Params.Arguments["focus"]
	if focus == "" {
		focus = "their main speaking topics"
	}
	types := "hero, biography, topics, questions, podcast-player, social, contact"
	if s.templates != nil {
		types = strings.Join(s.templates.Types(), ", ")
	}
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Build a media kit for: %s", guest),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a media kit for %s that emphasizes %s.

Steps:
1. Call get_state to see what already exists.
2. Add a hero component at the top with the guest's name and tagline.
3. Register a two_column section; put the biography in column 0 and topics in column 1.
4. Add questions, a podcast-player and contact details below.
5. Call check_state, then save_document.

Available component types: %s.
Use update_component to fill in props; never remove components you did not add.`, guest, focus, types),
				},
			},
		},
	}, nil
}

func (s *Server) handleTidyLayoutPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	doc := s.store.State()
	return &mcp.GetPromptResult{
		Description: "Tidy the media kit layout",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`The media kit has %d components in %d sections and %d orphans.

Move each orphan into the section where it fits best with assign_component,
balance multi-column sections so no column is empty, and run check_state when done.`,
						len(doc.Components), len(doc.Sections), len(doc.Layout)),
				},
			},
		},
	}, nil
}
