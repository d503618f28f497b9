package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	uriDocument      = "mediakit://document"
	uriTemplates     = "mediakit://templates"
	uriSectionPrefix = "mediakit://section/"
)

func (s *Server) registerResources() {
	// ── mediakit://document ────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		uriDocument,
		"Media Kit Document",
		mcp.WithMIMEType("application/json"),
	), s.handleDocumentResource)

	// ── mediakit://templates ───────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		uriTemplates,
		"Component Template Library",
		mcp.WithMIMEType("application/json"),
	), s.handleTemplatesResource)

	// ── mediakit://section/{sectionId} ─────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			uriSectionPrefix+"{sectionId}",
			"Section with its components",
		),
		s.handleSectionResource,
	)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleDocumentResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(uriDocument, s.store.State())
}

func (s *Server) handleTemplatesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if s.templates == nil {
		return jsonResource(uriTemplates, []string{})
	}
	return jsonResource(uriTemplates, s.templates.Types())
}

func (s *Server) handleSectionResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	id := sectionIDFromURI(uri)
	if id == "" {
		return nil, fmt.Errorf("could not extract sectionId from URI: %s", uri)
	}
	sec := s.sections.GetSection(id)
	if sec == nil {
		return nil, fmt.Errorf("section %s not found", id)
	}

	type column struct {
		Index      int   `json:"index"`
		Components []any `json:"components"`
	}
	out := struct {
		ID      string         `json:"id"`
		Type    string         `json:"type"`
		Options map[string]any `json:"options,omitempty"`
		Columns []column       `json:"columns"`
	}{ID: sec.ID, Type: string(sec.Type), Options: sec.Options}
	for i, ids := range sec.Columns {
		col := column{Index: i, Components: []any{}}
		for _, cid := range ids {
			if c := s.components.GetComponent(cid); c != nil {
				col.Components = append(col.Components, c)
			}
		}
		out.Columns = append(out.Columns, col)
	}
	return jsonResource(uri, out)
}

// sectionIDFromURI extracts the id from "mediakit://section/{id}".
func sectionIDFromURI(uri string) string {
	id, ok := strings.CutPrefix(uri, uriSectionPrefix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
