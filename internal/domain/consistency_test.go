package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakit/internal/domain"
)

func kinds(vs []domain.Violation) []domain.ViolationKind {
	out := make([]domain.ViolationKind, len(vs))
	for i, v := range vs {
		out[i] = v.Kind
	}
	return out
}

func TestCheck_Consistent(t *testing.T) {
	doc := domain.NewDocument()
	s := domain.NewSection("s1", domain.SectionTwoColumn, nil)
	s.Columns[1] = []string{"a"}
	doc.Sections = append(doc.Sections, s)
	doc.Components["a"] = &domain.Component{ID: "a", Type: "hero", SectionID: "s1", Column: 1}
	doc.Components["b"] = &domain.Component{ID: "b", Type: "bio"}
	doc.Layout = []string{"b"}

	assert.Empty(t, doc.Check())
}

func TestCheck_NullEntries(t *testing.T) {
	var doc domain.Document
	require.NoError(t, json.Unmarshal([]byte(`{"components":{"x":null,"y":{"id":"y","type":"hero"}},"sections":[null],"layout":["x","y"]}`), &doc))

	vs := doc.Check()
	assert.Contains(t, kinds(vs), domain.ViolationNilEntry)
	var nullComponent, nullSection bool
	for _, v := range vs {
		if v.Kind != domain.ViolationNilEntry {
			continue
		}
		if v.ComponentID == "x" {
			nullComponent = true
		} else {
			nullSection = true
		}
	}
	assert.True(t, nullComponent)
	assert.True(t, nullSection)

	assert.Positive(t, doc.Repair())
	assert.Empty(t, doc.Check())
	assert.Equal(t, []string{"y"}, doc.Layout)
}

func TestCheck_ReportsEachKind(t *testing.T) {
	doc := domain.NewDocument()
	s := domain.NewSection("s1", domain.SectionFullWidth, nil)
	s.Columns = append(s.Columns, []string{})
	s.Columns[0] = []string{"a", "ghost"}
	doc.Sections = append(doc.Sections, s, domain.NewSection("s1", domain.SectionFullWidth, nil))
	doc.Components["a"] = &domain.Component{ID: "a", Type: "hero", SectionID: "other"}
	doc.Components["b"] = &domain.Component{ID: "b", Type: "bio"}
	doc.Layout = []string{"a"}

	got := kinds(doc.Check())
	for _, want := range []domain.ViolationKind{
		domain.ViolationDuplicateSection,
		domain.ViolationColumnCount,
		domain.ViolationUnknownListing,
		domain.ViolationDuplicateListing,
		domain.ViolationDanglingSection,
		domain.ViolationUnlisted,
		domain.ViolationPlacementMismatch,
	} {
		assert.Contains(t, got, want)
	}

	doc.Repair()
	assert.Empty(t, doc.Check())
}
