package state

import "mediakit/internal/domain"

// Kind names a mutation. Kinds match the wire names used by the frontend.
type Kind string

const (
	KindAddComponent         Kind = "ADD_COMPONENT"
	KindRemoveComponent      Kind = "REMOVE_COMPONENT"
	KindUpdateComponent      Kind = "UPDATE_COMPONENT"
	KindDuplicateComponent   Kind = "DUPLICATE_COMPONENT"
	KindMoveComponent        Kind = "MOVE_COMPONENT"
	KindRegisterSection      Kind = "REGISTER_SECTION"
	KindRemoveSection        Kind = "REMOVE_SECTION"
	KindAssignComponent      Kind = "ASSIGN_COMPONENT"
	KindReorderSections      Kind = "REORDER_SECTIONS"
	KindUpdateSectionOptions Kind = "UPDATE_SECTION_OPTIONS"
	KindUpdateTheme          Kind = "UPDATE_THEME"
	KindSetState             Kind = "SET_STATE"
	KindHydrate              Kind = "HYDRATE"
	KindRepairState          Kind = "REPAIR_STATE"
	KindUndo                 Kind = "UNDO"
	KindRedo                 Kind = "REDO"
	KindBatch                Kind = "BATCH"
)

// Action describes one mutation of the document.
type Action interface {
	Kind() Kind
}

// Direction is the reorder direction for MoveComponent.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Anchor positions an id within a list: before or after a sibling id. The
// zero Anchor, or one naming an id not in the target list, appends.
type Anchor struct {
	Before string
	After  string
}

// AddComponent inserts a new component. An empty SectionID lists it as an
// orphan.
type AddComponent struct {
	Component domain.Component
	SectionID string
	Column    int
	Anchor    Anchor
}

// RemoveComponent deletes a component. Unknown ids are a no-op.
type RemoveComponent struct {
	ID string
}

// UpdateComponent shallow-merges Updates into the component's props.
type UpdateComponent struct {
	ID      string
	Updates map[string]any
}

// DuplicateComponent clones SourceID under NewID, placed right after the
// source in the same list.
type DuplicateComponent struct {
	SourceID string
	NewID    string
}

// MoveComponent swaps a component with its neighbour in its current list.
// Moving past either end is a no-op.
type MoveComponent struct {
	ID        string
	Direction Direction
}

// RegisterSection appends a new section, or inserts it before the section
// named by Before.
type RegisterSection struct {
	ID      string
	Type    domain.SectionType
	Options map[string]any
	Before  string
}

// RemoveSection deletes a section after demoting its components to orphans.
type RemoveSection struct {
	ID string
}

// AssignComponent moves a component to SectionID/Column. An empty SectionID
// demotes it to the orphan list.
type AssignComponent struct {
	ComponentID string
	SectionID   string
	Column      int
	Anchor      Anchor
}

// ReorderSections sets the section order. Order must name every section.
type ReorderSections struct {
	Order []string
}

// UpdateSectionOptions shallow-merges Options into the section's options.
type UpdateSectionOptions struct {
	ID      string
	Options map[string]any
}

// UpdateTheme shallow-merges Theme into the document theme.
type UpdateTheme struct {
	Theme map[string]any
}

// SetState replaces the whole document (undoable).
type SetState struct {
	Document *domain.Document
}

// Hydrate replaces the whole document at session start and clears history.
type Hydrate struct {
	Document *domain.Document
}

// RepairState runs domain.Document.Repair on the current document.
type RepairState struct{}

// Undo and Redo step through the snapshot history.
type (
	Undo struct{}
	Redo struct{}
)

// Batch is delivered to subscribers after Store.Batch applied several actions
// with a single notification.
type Batch struct {
	Actions []Action
}

// Unknown is produced by DecodeAction for unrecognized kinds. Dispatching it
// logs a warning and changes nothing.
type Unknown struct {
	Name string
}

func (AddComponent) Kind() Kind         { return KindAddComponent }
func (RemoveComponent) Kind() Kind      { return KindRemoveComponent }
func (UpdateComponent) Kind() Kind      { return KindUpdateComponent }
func (DuplicateComponent) Kind() Kind   { return KindDuplicateComponent }
func (MoveComponent) Kind() Kind        { return KindMoveComponent }
func (RegisterSection) Kind() Kind      { return KindRegisterSection }
func (RemoveSection) Kind() Kind        { return KindRemoveSection }
func (AssignComponent) Kind() Kind      { return KindAssignComponent }
func (ReorderSections) Kind() Kind      { return KindReorderSections }
func (UpdateSectionOptions) Kind() Kind { return KindUpdateSectionOptions }
func (UpdateTheme) Kind() Kind          { return KindUpdateTheme }
func (SetState) Kind() Kind             { return KindSetState }
func (Hydrate) Kind() Kind              { return KindHydrate }
func (RepairState) Kind() Kind          { return KindRepairState }
func (Undo) Kind() Kind                 { return KindUndo }
func (Redo) Kind() Kind                 { return KindRedo }
func (Batch) Kind() Kind                { return KindBatch }
func (u Unknown) Kind() Kind            { return Kind(u.Name) }
