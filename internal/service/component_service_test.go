package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakit/internal/domain"
	"mediakit/internal/service"
	"mediakit/internal/state"
)

// ─────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────

type fakeRenderer struct {
	mu        sync.Mutex
	rendered  []string
	unmounted []string
}

func (r *fakeRenderer) RenderComponent(id string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = append(r.rendered, id)
	return nil
}

func (r *fakeRenderer) Unmount(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unmounted = append(r.unmounted, id)
}

type fakeTemplates map[string]map[string]any

func (f fakeTemplates) Defaults(t string) map[string]any { return f[t] }

type fixture struct {
	store      *state.Store
	emitter    *service.MockEmitter
	renderer   *fakeRenderer
	sections   *service.SectionService
	components *service.ComponentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := state.New(nil, state.Options{})
	t.Cleanup(store.Close)
	emitter := &service.MockEmitter{}
	renderer := &fakeRenderer{}
	sections := service.NewSectionService(store, emitter, nil)
	templates := fakeTemplates{"hero": {"title": "Untitled", "align": "center"}}
	return &fixture{
		store:      store,
		emitter:    emitter,
		renderer:   renderer,
		sections:   sections,
		components: service.NewComponentService(store, sections, renderer, templates, emitter, nil),
	}
}

// ─────────────────────────────────────────────────────────────
// AddComponent
// ─────────────────────────────────────────────────────────────

// An add on an empty document creates one full-width section and places the
// component in its first column.
func TestComponentService_AddToEmptyDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.components.AddComponent(ctx, "hero", map[string]any{"title": "A"}, "")
	require.NoError(t, err)

	doc := f.store.State()
	require.Len(t, doc.Sections, 1)
	sec := doc.Sections[0]
	assert.Equal(t, domain.SectionFullWidth, sec.Type)
	assert.Equal(t, []string{id}, sec.Columns[0])
	assert.Equal(t, sec.ID, doc.Components[id].SectionID)
	assert.Equal(t, 0, doc.Components[id].Column)
	assert.Empty(t, doc.Layout)

	assert.Len(t, f.emitter.Named(service.EventSectionRegistered), 1)
	assert.Len(t, f.emitter.Named(service.EventComponentAdded), 1)
	assert.Equal(t, []string{id}, f.renderer.rendered)
}

func TestComponentService_AddAppliesTemplateDefaults(t *testing.T) {
	f := newFixture(t)
	id, err := f.components.AddComponent(context.Background(), "hero", map[string]any{"title": "A"}, "")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"title": "A", "align": "center"}, f.store.State().Components[id].Props)
}

func TestComponentService_IDShape(t *testing.T) {
	f := newFixture(t)
	id, err := f.components.AddComponent(context.Background(), "biography", nil, "")
	require.NoError(t, err)

	parts := strings.Split(id, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "biography", parts[0])
	assert.NotEmpty(t, parts[1])
	assert.Len(t, parts[2], 9)
}

func TestComponentService_AddToExistingSectionReusesIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sections.RegisterSection(ctx, "s1", domain.SectionTwoColumn, nil)
	require.NoError(t, err)

	a, err := f.components.AddComponent(ctx, "text", nil, "")
	require.NoError(t, err)
	b, err := f.components.AddComponent(ctx, "text", nil, "s1")
	require.NoError(t, err)

	doc := f.store.State()
	assert.Len(t, doc.Sections, 1)
	assert.Equal(t, []string{a, b}, doc.Section("s1").Columns[0])
}

func TestComponentService_AddToMissingSectionFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.components.AddComponent(context.Background(), "text", nil, "nope")
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
	assert.Empty(t, f.store.State().Components)
}

func TestComponentService_ConcurrentAddsShareDefaultSection(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.components.AddComponent(context.Background(), "text", nil, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	doc := f.store.State()
	require.Len(t, doc.Sections, 1)
	assert.Len(t, doc.Sections[0].Columns[0], 10)
	assert.Len(t, doc.Components, 10)
}

func TestComponentService_AddComponentAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sections.RegisterSection(ctx, "s1", domain.SectionThreeColumn, nil)
	require.NoError(t, err)
	first, err := f.components.AddComponentAt(ctx, "text", nil, service.Placement{SectionID: "s1", Column: 2})
	require.NoError(t, err)

	second, err := f.components.AddComponentAt(ctx, "text", nil, service.Placement{
		SectionID: "s1", Column: 2, Anchor: state.Anchor{Before: first},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{second, first}, f.store.State().Section("s1").Columns[2])

	orphan, err := f.components.AddComponentAt(ctx, "text", nil, service.Placement{})
	require.NoError(t, err)
	assert.Equal(t, []string{orphan}, f.store.State().Layout)
}

// ─────────────────────────────────────────────────────────────
// Remove / Update / Duplicate / Move
// ─────────────────────────────────────────────────────────────

func TestComponentService_RemoveComponent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.components.AddComponent(ctx, "text", nil, "")
	require.NoError(t, err)

	require.NoError(t, f.components.RemoveComponent(ctx, id))
	assert.NotContains(t, f.store.State().Components, id)
	assert.Equal(t, []string{id}, f.renderer.unmounted)
	assert.Len(t, f.emitter.Named(service.EventComponentRemoved), 1)

	// Second remove is a silent no-op.
	require.NoError(t, f.components.RemoveComponent(ctx, id))
	assert.Len(t, f.renderer.unmounted, 1)
}

func TestComponentService_UpdateComponent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.components.AddComponent(ctx, "hero", map[string]any{"title": "A"}, "")
	require.NoError(t, err)

	require.NoError(t, f.components.UpdateComponent(ctx, id, map[string]any{"title": "B"}))
	assert.Equal(t, "B", f.store.State().Components[id].Props["title"])
	assert.Equal(t, "center", f.store.State().Components[id].Props["align"])

	updated := f.emitter.Named(service.EventComponentUpdated)
	require.Len(t, updated, 1)
	assert.Equal(t, "B", updated[0].Data.(service.ComponentEvent).Props["title"])

	err = f.components.UpdateComponent(ctx, "ghost", map[string]any{"x": 1})
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestComponentService_DuplicateComponent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.components.AddComponent(ctx, "hero", map[string]any{"title": "A"}, "")
	require.NoError(t, err)
	b, err := f.components.AddComponent(ctx, "text", nil, "")
	require.NoError(t, err)

	dup, err := f.components.DuplicateComponent(ctx, a)
	require.NoError(t, err)
	assert.NotEqual(t, a, dup)

	doc := f.store.State()
	assert.Equal(t, []string{a, dup, b}, doc.Sections[0].Columns[0])
	assert.Equal(t, doc.Components[a].Props, doc.Components[dup].Props)
	assert.Equal(t, "hero", doc.Components[dup].Type)

	_, err = f.components.DuplicateComponent(ctx, "ghost")
	assert.Error(t, err)
}

func TestComponentService_MoveComponentBoundaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.components.AddComponent(ctx, "text", nil, "")
	b, _ := f.components.AddComponent(ctx, "text", nil, "")
	rev := f.store.Revision()

	require.NoError(t, f.components.MoveComponent(ctx, a, state.Up))
	require.NoError(t, f.components.MoveComponent(ctx, b, state.Down))
	assert.Equal(t, rev, f.store.Revision())

	require.NoError(t, f.components.MoveComponent(ctx, a, state.Down))
	assert.Equal(t, []string{b, a}, f.store.State().Sections[0].Columns[0])
}
