package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakit/internal/domain"
	"mediakit/internal/service"
)

func TestSectionService_RegisterSection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.sections.RegisterSection(ctx, "", domain.SectionTwoColumn, map[string]any{"background": "#fff"})
	require.NoError(t, err)
	assert.Contains(t, id, "section-")

	sec := f.sections.GetSection(id)
	require.NotNil(t, sec)
	assert.Len(t, sec.Columns, 2)
	assert.Equal(t, "#fff", sec.Options["background"])

	_, err = f.sections.RegisterSection(ctx, id, domain.SectionFullWidth, nil)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
	assert.Len(t, f.emitter.Named(service.EventSectionRegistered), 1)
}

func TestSectionService_GetSectionReturnsCopy(t *testing.T) {
	f := newFixture(t)
	_, err := f.sections.RegisterSection(context.Background(), "s1", domain.SectionFullWidth, nil)
	require.NoError(t, err)

	sec := f.sections.GetSection("s1")
	sec.Columns[0] = append(sec.Columns[0], "bogus")
	assert.Empty(t, f.sections.GetSection("s1").Columns[0])
	assert.Nil(t, f.sections.GetSection("missing"))
}

// Removing a section with two components leaves no sections and both
// components as orphans.
func TestSectionService_RemoveSectionKeepsComponents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.components.AddComponent(ctx, "text", nil, "")
	require.NoError(t, err)
	b, err := f.components.AddComponent(ctx, "text", nil, "")
	require.NoError(t, err)
	sec := f.sections.AllSections()[0]

	require.NoError(t, f.sections.RemoveSection(ctx, sec.ID))

	doc := f.store.State()
	assert.Empty(t, doc.Sections)
	require.Len(t, doc.Components, 2)
	for _, id := range []string{a, b} {
		assert.Empty(t, doc.Components[id].SectionID)
	}
	assert.Equal(t, []string{a, b}, doc.Layout)
	assert.Empty(t, doc.Check())
	assert.Len(t, f.emitter.Named(service.EventSectionRemoved), 1)

	err = f.sections.RemoveSection(ctx, sec.ID)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestSectionService_AssignIsExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sections.RegisterSection(ctx, "A", domain.SectionFullWidth, nil)
	require.NoError(t, err)
	_, err = f.sections.RegisterSection(ctx, "B", domain.SectionTwoColumn, nil)
	require.NoError(t, err)
	x, err := f.components.AddComponent(ctx, "text", nil, "A")
	require.NoError(t, err)

	require.NoError(t, f.sections.AssignComponentToSection(ctx, x, "B", 1))

	doc := f.store.State()
	assert.Equal(t, "B", doc.Components[x].SectionID)
	assert.Equal(t, 1, doc.Components[x].Column)
	assert.NotContains(t, doc.Section("A").Columns[0], x)
	assert.Equal(t, []string{x}, doc.Section("B").Columns[1])
	assert.Empty(t, doc.Check())

	require.NoError(t, f.sections.AssignComponentToSection(ctx, x, "", 0))
	assert.Equal(t, []string{x}, f.store.State().Layout)
}

func TestSectionService_AssignUnknownIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sections.RegisterSection(ctx, "A", domain.SectionFullWidth, nil)
	require.NoError(t, err)

	err = f.sections.AssignComponentToSection(ctx, "ghost", "A", 0)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestSectionService_ReorderAndOptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		_, err := f.sections.RegisterSection(ctx, id, domain.SectionFullWidth, nil)
		require.NoError(t, err)
	}
	require.NoError(t, f.sections.ReorderSections(ctx, []string{"b", "a"}))
	all := f.sections.AllSections()
	assert.Equal(t, "b", all[0].ID)

	require.NoError(t, f.sections.UpdateSectionOptions(ctx, "a", map[string]any{"padding": 4}))
	assert.Equal(t, 4, f.sections.GetSection("a").Options["padding"])
}
