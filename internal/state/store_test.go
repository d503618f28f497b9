package state_test

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakit/internal/domain"
	"mediakit/internal/state"
)

func newStore(t *testing.T) *state.Store {
	t.Helper()
	s := state.New(nil, state.Options{})
	t.Cleanup(s.Close)
	return s
}

func add(t *testing.T, s *state.Store, id, typ, section string, column int) {
	t.Helper()
	require.NoError(t, s.Commit(state.AddComponent{
		Component: domain.Component{ID: id, Type: typ},
		SectionID: section,
		Column:    column,
	}))
}

func assertConsistent(t *testing.T, s *state.Store) {
	t.Helper()
	assert.Empty(t, s.State().Check())
}

// ─────────────────────────────────────────────────────────────
// Components
// ─────────────────────────────────────────────────────────────

func TestStore_AddComponentOrphan(t *testing.T) {
	s := newStore(t)
	add(t, s, "bio-1", "biography", "", 0)

	doc := s.State()
	require.Contains(t, doc.Components, "bio-1")
	assert.Equal(t, []string{"bio-1"}, doc.Layout)
	assert.Empty(t, doc.Components["bio-1"].SectionID)
	assert.NotNil(t, doc.Components["bio-1"].Props)
	assertConsistent(t, s)
}

func TestStore_AddComponentDuplicateID(t *testing.T) {
	s := newStore(t)
	add(t, s, "a", "text", "", 0)

	err := s.Commit(state.AddComponent{Component: domain.Component{ID: "a", Type: "text"}})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
	assert.Equal(t, []string{"a"}, s.State().Layout)
}

func TestStore_RemovedIDIsNeverReused(t *testing.T) {
	s := newStore(t)
	add(t, s, "a", "text", "", 0)
	s.Dispatch(state.RemoveComponent{ID: "a"})

	err := s.Commit(state.AddComponent{Component: domain.Component{ID: "a", Type: "text"}})
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestStore_RemoveUnknownIsNoop(t *testing.T) {
	s := newStore(t)
	calls := 0
	s.Subscribe(func(state.Change) { calls++ })

	require.NoError(t, s.Commit(state.RemoveComponent{ID: "ghost"}))
	assert.Zero(t, calls)
	assert.Zero(t, s.Revision())
}

func TestStore_UpdateMergesProps(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Commit(state.AddComponent{
		Component: domain.Component{ID: "a", Type: "text", Props: map[string]any{"title": "x", "size": 1}},
	}))
	require.NoError(t, s.Commit(state.UpdateComponent{ID: "a", Updates: map[string]any{"title": "y"}}))

	assert.Equal(t, map[string]any{"title": "y", "size": 1}, s.State().Components["a"].Props)

	err := s.Commit(state.UpdateComponent{ID: "missing", Updates: map[string]any{"x": 1}})
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

func TestStore_DuplicatePlacesCopyAfterSource(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Commit(state.RegisterSection{ID: "s1", Type: domain.SectionTwoColumn}))
	add(t, s, "a", "text", "s1", 1)
	add(t, s, "b", "text", "s1", 1)

	require.NoError(t, s.Commit(state.DuplicateComponent{SourceID: "a", NewID: "a-copy"}))

	doc := s.State()
	assert.Equal(t, []string{"a", "a-copy", "b"}, doc.Section("s1").Columns[1])
	assert.Equal(t, "s1", doc.Components["a-copy"].SectionID)
	assert.Equal(t, 1, doc.Components["a-copy"].Column)
	assertConsistent(t, s)
}

func TestStore_MoveComponentBoundaries(t *testing.T) {
	s := newStore(t)
	add(t, s, "a", "text", "", 0)
	add(t, s, "b", "text", "", 0)
	add(t, s, "c", "text", "", 0)
	rev := s.Revision()

	s.Dispatch(state.MoveComponent{ID: "a", Direction: state.Up})
	s.Dispatch(state.MoveComponent{ID: "c", Direction: state.Down})
	assert.Equal(t, rev, s.Revision(), "boundary moves change nothing")
	assert.Equal(t, []string{"a", "b", "c"}, s.State().Layout)

	s.Dispatch(state.MoveComponent{ID: "c", Direction: state.Up})
	assert.Equal(t, []string{"a", "c", "b"}, s.State().Layout)
	s.Dispatch(state.MoveComponent{ID: "a", Direction: state.Down})
	assert.Equal(t, []string{"c", "a", "b"}, s.State().Layout)
}

// ─────────────────────────────────────────────────────────────
// Sections
// ─────────────────────────────────────────────────────────────

func TestStore_RegisterSectionColumns(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Commit(state.RegisterSection{ID: "s1", Type: domain.SectionThreeColumn}))
	require.NoError(t, s.Commit(state.RegisterSection{ID: "s0", Type: domain.SectionFullWidth, Before: "s1"}))

	doc := s.State()
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "s0", doc.Sections[0].ID)
	assert.Len(t, doc.Section("s1").Columns, 3)

	err := s.Commit(state.RegisterSection{ID: "s1", Type: domain.SectionFullWidth})
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
	err = s.Commit(state.RegisterSection{ID: "s2", Type: "four_column"})
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

// Removing a section demotes its components before the section disappears.
func TestStore_RemoveSectionOrphansComponents(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Commit(state.RegisterSection{ID: "s1", Type: domain.SectionTwoColumn}))
	add(t, s, "x", "text", "", 0)
	add(t, s, "a", "text", "s1", 0)
	add(t, s, "b", "text", "s1", 1)

	require.NoError(t, s.Commit(state.RemoveSection{ID: "s1"}))

	doc := s.State()
	assert.Empty(t, doc.Sections)
	assert.Equal(t, []string{"x", "a", "b"}, doc.Layout)
	for _, id := range []string{"a", "b"} {
		assert.Empty(t, doc.Components[id].SectionID)
		assert.Zero(t, doc.Components[id].Column)
	}
	assertConsistent(t, s)

	err := s.Commit(state.RegisterSection{ID: "s1", Type: domain.SectionFullWidth})
	assert.Error(t, err, "section ids are not reused")
}

func TestStore_AssignClampsColumn(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Commit(state.RegisterSection{ID: "s1", Type: domain.SectionTwoColumn}))
	add(t, s, "a", "text", "", 0)

	require.NoError(t, s.Commit(state.AssignComponent{ComponentID: "a", SectionID: "s1", Column: 7}))

	doc := s.State()
	assert.Equal(t, 1, doc.Components["a"].Column)
	assert.Equal(t, []string{"a"}, doc.Section("s1").Columns[1])
	assert.Empty(t, doc.Layout)
	assertConsistent(t, s)
}

func TestStore_AssignUnknownSectionRejected(t *testing.T) {
	s := newStore(t)
	add(t, s, "a", "text", "", 0)

	err := s.Commit(state.AssignComponent{ComponentID: "a", SectionID: "nope"})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
	assert.Equal(t, []string{"a"}, s.State().Layout)
}

func TestStore_AssignWithAnchor(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Commit(state.RegisterSection{ID: "s1", Type: domain.SectionFullWidth}))
	add(t, s, "a", "text", "s1", 0)
	add(t, s, "b", "text", "s1", 0)
	add(t, s, "c", "text", "", 0)

	require.NoError(t, s.Commit(state.AssignComponent{
		ComponentID: "c", SectionID: "s1", Anchor: state.Anchor{Before: "b"},
	}))
	assert.Equal(t, []string{"a", "c", "b"}, s.State().Section("s1").Columns[0])
}

func TestStore_ReorderSections(t *testing.T) {
	s := newStore(t)
	for _, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, s.Commit(state.RegisterSection{ID: id, Type: domain.SectionFullWidth}))
	}
	require.NoError(t, s.Commit(state.ReorderSections{Order: []string{"s3", "s1", "s2"}}))

	doc := s.State()
	assert.Equal(t, "s3", doc.Sections[0].ID)
	assert.Equal(t, "s2", doc.Sections[2].ID)

	assert.Error(t, s.Commit(state.ReorderSections{Order: []string{"s1", "s1", "s2"}}))
	assert.Error(t, s.Commit(state.ReorderSections{Order: []string{"s1"}}))
}

// ─────────────────────────────────────────────────────────────
// Dispatch semantics
// ─────────────────────────────────────────────────────────────

func TestStore_UnknownActionIsNoop(t *testing.T) {
	s := newStore(t)
	add(t, s, "a", "text", "", 0)
	before := s.State()
	calls := 0
	s.Subscribe(func(state.Change) { calls++ })

	s.Dispatch(state.Unknown{Name: "TELEPORT_COMPONENT"})

	assert.Equal(t, before, s.State())
	assert.Zero(t, calls)
}

func TestStore_SubscribersNotifiedInOrder(t *testing.T) {
	s := newStore(t)
	var got []string
	s.Subscribe(func(c state.Change) { got = append(got, "first:"+string(c.Action.Kind())) })
	s.Subscribe(func(c state.Change) { got = append(got, "second:"+string(c.Action.Kind())) })

	add(t, s, "a", "text", "", 0)
	s.Dispatch(state.RemoveComponent{ID: "a"})

	assert.Equal(t, []string{
		"first:ADD_COMPONENT", "second:ADD_COMPONENT",
		"first:REMOVE_COMPONENT", "second:REMOVE_COMPONENT",
	}, got)
}

func TestStore_PanickingSubscriberDoesNotStopOthers(t *testing.T) {
	s := newStore(t)
	reached := false
	s.Subscribe(func(state.Change) { panic("boom") })
	s.Subscribe(func(state.Change) { reached = true })

	add(t, s, "a", "text", "", 0)
	assert.True(t, reached)
}

func TestStore_Unsubscribe(t *testing.T) {
	s := newStore(t)
	calls := 0
	unsub := s.Subscribe(func(state.Change) { calls++ })
	add(t, s, "a", "text", "", 0)
	unsub()
	add(t, s, "b", "text", "", 0)
	assert.Equal(t, 1, calls)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := newStore(t)
	add(t, s, "a", "text", "", 0)

	doc := s.State()
	doc.Components["a"].Props["title"] = "mutated"
	doc.Layout = append(doc.Layout, "bogus")

	assert.NotContains(t, s.State().Components["a"].Props, "title")
	assert.Equal(t, []string{"a"}, s.State().Layout)
}

// Concurrent dispatches are applied one at a time and every change is seen
// exactly once, with strictly increasing revisions.
func TestStore_ConcurrentDispatchIsSerialized(t *testing.T) {
	s := newStore(t)
	var mu sync.Mutex
	var revs []uint64
	s.Subscribe(func(c state.Change) {
		mu.Lock()
		revs = append(revs, c.Revision)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Dispatch(state.AddComponent{Component: domain.Component{
				ID: "c" + string(rune('a'+i)), Type: "text",
			}})
		}(i)
	}
	wg.Wait()

	require.Len(t, revs, 20)
	for i := 1; i < len(revs); i++ {
		assert.Greater(t, revs[i], revs[i-1])
	}
	assert.Len(t, s.State().Layout, 20)
	assertConsistent(t, s)
}

func TestStore_BatchNotifiesOnce(t *testing.T) {
	s := newStore(t)
	var changes []state.Change
	s.Subscribe(func(c state.Change) { changes = append(changes, c) })

	s.Batch(func(d state.Dispatcher) {
		d.Dispatch(state.RegisterSection{ID: "s1", Type: domain.SectionFullWidth})
		d.Dispatch(state.AddComponent{Component: domain.Component{ID: "a", Type: "text"}, SectionID: "s1"})
		d.Dispatch(state.UpdateComponent{ID: "ghost", Updates: map[string]any{"x": 1}})
	})

	require.Len(t, changes, 1)
	batch, ok := changes[0].Action.(state.Batch)
	require.True(t, ok)
	assert.Len(t, batch.Actions, 2)
	assert.Equal(t, []string{"a"}, changes[0].State.Section("s1").Columns[0])
}

func TestStore_CloseDropsLaterDispatches(t *testing.T) {
	s := state.New(nil, state.Options{})
	calls := 0
	s.Subscribe(func(state.Change) { calls++ })
	s.Close()

	s.Dispatch(state.AddComponent{Component: domain.Component{ID: "a", Type: "text"}})
	assert.Zero(t, calls)
	assert.Empty(t, s.State().Components)
}

// ─────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────

func TestStore_UndoRedo(t *testing.T) {
	s := newStore(t)
	assert.False(t, s.CanUndo())
	add(t, s, "a", "text", "", 0)
	add(t, s, "b", "text", "", 0)

	require.True(t, s.Undo())
	assert.Equal(t, []string{"a"}, s.State().Layout)
	assert.True(t, s.CanRedo())

	require.True(t, s.Redo())
	assert.Equal(t, []string{"a", "b"}, s.State().Layout)
	assert.False(t, s.Redo())

	// A new mutation drops the redo branch.
	s.Dispatch(state.Undo{})
	add(t, s, "c", "text", "", 0)
	assert.False(t, s.CanRedo())
	assert.Equal(t, []string{"a", "c"}, s.State().Layout)
}

func TestStore_UndoRestoresRemovedComponent(t *testing.T) {
	s := newStore(t)
	add(t, s, "a", "text", "", 0)
	s.Dispatch(state.RemoveComponent{ID: "a"})
	require.True(t, s.Undo())

	assert.Contains(t, s.State().Components, "a")
	assertConsistent(t, s)
}

func TestStore_HistoryLimit(t *testing.T) {
	s := state.New(nil, state.Options{HistoryLimit: 3})
	defer s.Close()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		add(t, s, id, "text", "", 0)
	}
	undone := 0
	for s.Undo() {
		undone++
	}
	assert.Equal(t, 3, undone)
	assert.Equal(t, []string{"a", "b"}, s.State().Layout)
}

func TestStore_HydrateRepairsAndResetsHistory(t *testing.T) {
	s := newStore(t)
	add(t, s, "old", "text", "", 0)

	doc := domain.NewDocument()
	doc.Components["a"] = &domain.Component{ID: "a", Type: "text", SectionID: "gone"}
	doc.Components["b"] = &domain.Component{ID: "b", Type: "text"}
	doc.Layout = []string{"b", "b", "zombie"}

	require.NoError(t, s.Commit(state.Hydrate{Document: doc}))

	got := s.State()
	assert.Empty(t, got.Check())
	assert.ElementsMatch(t, []string{"a", "b"}, got.Layout)
	assert.Empty(t, got.Components["a"].SectionID)
	assert.False(t, s.CanUndo())
}

func TestStore_UndoneSectionIDIsNeverReused(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Commit(state.RegisterSection{ID: "s1", Type: domain.SectionFullWidth}))
	require.True(t, s.Undo())
	require.Nil(t, s.State().Section("s1"))

	err := s.Commit(state.RegisterSection{ID: "s1", Type: domain.SectionTwoColumn})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))

	// Redo brings the original back, so the id is live again.
	require.True(t, s.Redo())
	assert.Equal(t, domain.SectionFullWidth, s.State().Section("s1").Type)
	assertConsistent(t, s)
}

func TestStore_SetStateRetiresDroppedSections(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Commit(state.RegisterSection{ID: "s1", Type: domain.SectionFullWidth}))
	require.NoError(t, s.Commit(state.SetState{Document: domain.NewDocument()}))

	err := s.Commit(state.RegisterSection{ID: "s1", Type: domain.SectionFullWidth})
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
}

// A seeded run of mixed mutations never leaves the document inconsistent.
func TestStore_RandomSequenceStaysConsistent(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 1337} {
		t.Run(fmt.Sprint(seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			s := newStore(t)
			types := []domain.SectionType{domain.SectionFullWidth, domain.SectionTwoColumn, domain.SectionThreeColumn}
			next := 0
			fresh := func(prefix string) string {
				next++
				return fmt.Sprintf("%s%d", prefix, next)
			}
			pick := func(ids []string) string {
				if len(ids) == 0 {
					return "none"
				}
				return ids[rng.Intn(len(ids))]
			}
			sectionIDs := func() []string {
				var out []string
				for _, sec := range s.State().Sections {
					out = append(out, sec.ID)
				}
				return out
			}

			for step := 0; step < 300; step++ {
				doc := s.State()
				comps := doc.ComponentIDs()
				var a state.Action
				switch rng.Intn(10) {
				case 0, 1:
					a = state.AddComponent{
						Component: domain.Component{ID: fresh("c"), Type: "text"},
						SectionID: pick(append(sectionIDs(), "")),
						Column:    rng.Intn(4),
						Anchor:    state.Anchor{After: pick(comps)},
					}
				case 2:
					a = state.RemoveComponent{ID: pick(comps)}
				case 3:
					a = state.AssignComponent{
						ComponentID: pick(comps),
						SectionID:   pick(append(sectionIDs(), "")),
						Column:      rng.Intn(4),
						Anchor:      state.Anchor{Before: pick(comps)},
					}
				case 4:
					a = state.RegisterSection{ID: fresh("s"), Type: types[rng.Intn(len(types))], Before: pick(sectionIDs())}
				case 5:
					a = state.RemoveSection{ID: pick(sectionIDs())}
				case 6:
					a = state.DuplicateComponent{SourceID: pick(comps), NewID: fresh("c")}
				case 7:
					dir := state.Up
					if rng.Intn(2) == 0 {
						dir = state.Down
					}
					a = state.MoveComponent{ID: pick(comps), Direction: dir}
				case 8:
					a = state.Undo{}
				default:
					a = state.Redo{}
				}
				_ = s.Commit(a)
				require.Empty(t, s.State().Check(), "step %d after %s", step, a.Kind())
			}
		})
	}
}

// ─────────────────────────────────────────────────────────────
// Decoding
// ─────────────────────────────────────────────────────────────

func TestDecodeAction(t *testing.T) {
	a, err := state.DecodeAction("ADD_COMPONENT", json.RawMessage(
		`{"component":{"id":"a","type":"text","props":{"title":"hi"}},"sectionId":"s1","column":1,"after":"z"}`))
	require.NoError(t, err)
	assert.Equal(t, state.AddComponent{
		Component: domain.Component{ID: "a", Type: "text", Props: map[string]any{"title": "hi"}},
		SectionID: "s1",
		Column:    1,
		Anchor:    state.Anchor{After: "z"},
	}, a)

	a, err = state.DecodeAction("MOVE_COMPONENT", json.RawMessage(`{"id":"a","direction":"up"}`))
	require.NoError(t, err)
	assert.Equal(t, state.MoveComponent{ID: "a", Direction: state.Up}, a)

	a, err = state.DecodeAction("WHATEVER", nil)
	require.NoError(t, err)
	assert.Equal(t, state.Kind("WHATEVER"), a.Kind())

	_, err = state.DecodeAction("UPDATE_COMPONENT", json.RawMessage(`{"id":`))
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))

	_, err = state.DecodeAction("HYDRATE", json.RawMessage(`{}`))
	assert.Error(t, err)
}
