// Package dragdrop turns pointer gestures from the editor into placement
// calls on the component and section services.
package dragdrop

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"mediakit/internal/domain"
	"mediakit/internal/logging"
	"mediakit/internal/service"
	"mediakit/internal/state"
)

// EventHighlight tells the frontend which drop target to highlight. An empty
// target clears the highlight.
const EventHighlight = "drag:highlight"

// Position is where a drop lands relative to the target element.
type Position string

const (
	Before Position = "before"
	Inside Position = "inside"
	After  Position = "after"
)

// PositionFor splits the target's height into thirds. A non-positive height
// counts as After.
func PositionFor(offsetY, height float64) Position {
	if height <= 0 {
		return After
	}
	switch {
	case offsetY < height/3:
		return Before
	case offsetY > 2*height/3:
		return After
	default:
		return Inside
	}
}

// Phase is the drag state machine: idle → dragging → dragover* → dropped|cancelled.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseDragging  Phase = "dragging"
	PhaseDragOver  Phase = "dragover"
	PhaseDropped   Phase = "dropped"
	PhaseCancelled Phase = "cancelled"
)

// DragData describes what is being dragged: a library entry (Type, no ID) or
// an existing component (ID).
type DragData struct {
	Type string         `json:"type,omitempty"`
	ID   string         `json:"id,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// IsNew reports whether the drag inserts a new component.
func (d DragData) IsNew() bool { return d.ID == "" }

// DropData is the drop location. TargetComponentID is the element under the
// pointer, if any; Position is relative to it. An empty SectionID drops into
// the orphan layout.
type DropData struct {
	SectionID         string   `json:"sectionId,omitempty"`
	Column            int      `json:"column"`
	TargetComponentID string   `json:"targetComponentId,omitempty"`
	Position          Position `json:"position,omitempty"`
}

// HighlightEvent is the payload of EventHighlight.
type HighlightEvent struct {
	Target   string   `json:"target"`
	Position Position `json:"position,omitempty"`
}

// Adder inserts new components and looks up existing ones. Implemented by
// service.ComponentService.
type Adder interface {
	AddComponentAt(ctx context.Context, typ string, data map[string]any, at service.Placement) (string, error)
	GetComponent(id string) *domain.Component
}

// Assigner moves existing components. Implemented by service.SectionService.
type Assigner interface {
	AssignComponentAt(ctx context.Context, componentID, sectionID string, column int, at state.Anchor) error
}

// Options configures a Coordinator.
type Options struct {
	// Allowed restricts which component types may be dropped. Empty allows all.
	Allowed []string
	Emitter service.EventEmitter
	Logger  *log.Logger
}

// Coordinator tracks one drag gesture at a time.
type Coordinator struct {
	adder    Adder
	assigner Assigner
	emitter  service.EventEmitter
	logger   *log.Logger
	allowed  map[string]bool

	mu        sync.Mutex
	phase     Phase
	drag      DragData
	depth     map[string]int
	highlight HighlightEvent
}

// New creates a coordinator routing drops to adder and assigner.
func New(adder Adder, assigner Assigner, opts Options) *Coordinator {
	c := &Coordinator{
		adder:    adder,
		assigner: assigner,
		emitter:  opts.Emitter,
		logger:   logging.OrDiscard(opts.Logger).WithPrefix("dragdrop"),
		phase:    PhaseIdle,
		depth:    make(map[string]int),
	}
	if c.emitter == nil {
		c.emitter = service.NopEmitter{}
	}
	if len(opts.Allowed) > 0 {
		c.allowed = make(map[string]bool, len(opts.Allowed))
		for _, t := range opts.Allowed {
			c.allowed[t] = true
		}
	}
	return c
}

// CanDrop reports whether components of typ may be dropped.
func (c *Coordinator) CanDrop(typ string) bool {
	return c.allowed == nil || c.allowed[typ]
}

// Phase returns the current state of the gesture.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Highlighted returns the currently highlighted drop target, or "".
func (c *Coordinator) Highlighted() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.highlight.Target
}

// Start begins a drag. A drag already in progress is replaced.
func (c *Coordinator) Start(ctx context.Context, d DragData) error {
	if d.IsNew() && d.Type == "" {
		return domain.Validationf("drag needs a component type or id")
	}
	if !d.IsNew() {
		// The stored type wins over whatever the frontend sent.
		existing := c.adder.GetComponent(d.ID)
		if existing == nil {
			return domain.Validationf("component %s does not exist", d.ID)
		}
		d.Type = existing.Type
	}
	if !c.CanDrop(d.Type) {
		return domain.Validationf("component type %q cannot be dropped here", d.Type)
	}
	c.mu.Lock()
	if c.phase == PhaseDragging || c.phase == PhaseDragOver {
		c.logger.Debug("drag restarted", "previous", c.drag.ID+c.drag.Type)
	}
	c.phase = PhaseDragging
	c.drag = d
	c.depth = make(map[string]int)
	cleared := c.clearLocked()
	c.mu.Unlock()

	if cleared {
		c.emitter.Emit(ctx, EventHighlight, HighlightEvent{})
	}
	return nil
}

// Enter records the pointer entering target (or one of its children). The
// target is highlighted on the first enter.
func (c *Coordinator) Enter(ctx context.Context, target string) {
	c.mu.Lock()
	if !c.active() {
		c.mu.Unlock()
		return
	}
	c.depth[target]++
	c.phase = PhaseDragOver
	changed := c.highlight.Target != target
	if changed {
		c.highlight = HighlightEvent{Target: target}
	}
	ev := c.highlight
	c.mu.Unlock()

	if changed {
		c.emitter.Emit(ctx, EventHighlight, ev)
	}
}

// Over updates the drop position while the pointer moves within target.
func (c *Coordinator) Over(ctx context.Context, target string, offsetY, height float64) Position {
	pos := PositionFor(offsetY, height)
	c.mu.Lock()
	if !c.active() || c.highlight.Target != target || c.highlight.Position == pos {
		c.mu.Unlock()
		return pos
	}
	c.highlight.Position = pos
	ev := c.highlight
	c.mu.Unlock()

	c.emitter.Emit(ctx, EventHighlight, ev)
	return pos
}

// Leave records the pointer leaving target or one of its children. The
// highlight clears only when every enter has been matched.
func (c *Coordinator) Leave(ctx context.Context, target string) {
	c.mu.Lock()
	if !c.active() || c.depth[target] == 0 {
		c.mu.Unlock()
		return
	}
	c.depth[target]--
	if c.depth[target] > 0 {
		c.mu.Unlock()
		return
	}
	delete(c.depth, target)
	cleared := false
	if c.highlight.Target == target {
		cleared = c.clearLocked()
	}
	if len(c.depth) == 0 {
		c.phase = PhaseDragging
	}
	c.mu.Unlock()

	if cleared {
		c.emitter.Emit(ctx, EventHighlight, HighlightEvent{})
	}
}

// Depth returns the enter/leave balance for target.
func (c *Coordinator) Depth(target string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depth[target]
}

// Cancel aborts the gesture and clears any highlight.
func (c *Coordinator) Cancel(ctx context.Context) {
	c.mu.Lock()
	if !c.active() {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseCancelled
	c.drag = DragData{}
	c.depth = make(map[string]int)
	c.clearLocked()
	c.mu.Unlock()

	c.emitter.Emit(ctx, EventHighlight, HighlightEvent{})
	c.logger.Debug("drag cancelled")
}

// Drop completes the gesture at d. New components go through Adder, existing
// ones through Assigner. Returns the id of the placed component.
func (c *Coordinator) Drop(ctx context.Context, d DropData) (string, error) {
	c.mu.Lock()
	if !c.active() {
		c.mu.Unlock()
		return "", domain.Validationf("no drag in progress")
	}
	drag := c.drag
	c.phase = PhaseDropped
	c.drag = DragData{}
	c.depth = make(map[string]int)
	c.clearLocked()
	c.mu.Unlock()

	c.emitter.Emit(ctx, EventHighlight, HighlightEvent{})

	at := anchorFor(d, drag.ID)
	if drag.IsNew() {
		id, err := c.adder.AddComponentAt(ctx, drag.Type, drag.Data, service.Placement{
			SectionID: d.SectionID,
			Column:    d.Column,
			Anchor:    at,
		})
		if err != nil {
			c.logger.Warn("drop rejected", "type", drag.Type, "section", d.SectionID, "err", err)
			return "", err
		}
		c.logger.Debug("dropped new component", "id", id, "section", d.SectionID, "column", d.Column)
		return id, nil
	}

	if d.TargetComponentID == drag.ID {
		return drag.ID, nil
	}
	if err := c.assigner.AssignComponentAt(ctx, drag.ID, d.SectionID, d.Column, at); err != nil {
		c.logger.Warn("drop rejected", "id", drag.ID, "section", d.SectionID, "err", err)
		return "", err
	}
	c.logger.Debug("moved component", "id", drag.ID, "section", d.SectionID, "column", d.Column)
	return drag.ID, nil
}

// anchorFor maps a drop position onto a list anchor. Inside a component
// means directly after it.
func anchorFor(d DropData, dragged string) state.Anchor {
	if d.TargetComponentID == "" || d.TargetComponentID == dragged {
		return state.Anchor{}
	}
	if d.Position == Before {
		return state.Anchor{Before: d.TargetComponentID}
	}
	return state.Anchor{After: d.TargetComponentID}
}

func (c *Coordinator) active() bool {
	return c.phase == PhaseDragging || c.phase == PhaseDragOver
}

func (c *Coordinator) clearLocked() bool {
	had := c.highlight.Target != ""
	c.highlight = HighlightEvent{}
	return had
}
