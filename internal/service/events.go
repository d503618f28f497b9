package service

import (
	"context"

	"mediakit/internal/domain"
	"mediakit/internal/state"
)

// Events produced for the frontend and other collaborators.
const (
	EventStateChanged      = "state-changed"
	EventComponentAdded    = "component-added"
	EventComponentRemoved  = "component-removed"
	EventComponentUpdated  = "component-updated"
	EventSectionRegistered = "section-registered"
	EventSectionRemoved    = "section-removed"
	EventSaveRequested     = "save-requested"
	EventSaveSuccess       = "save-success"
	EventSaveError         = "save-error"
)

// ComponentEvent is the payload of the component-* events.
type ComponentEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type,omitempty"`
	Props     map[string]any `json:"props,omitempty"`
	SectionID string         `json:"sectionId,omitempty"`
	Column    int            `json:"column"`
}

// SectionEvent is the payload of the section-* events.
type SectionEvent struct {
	ID   string             `json:"id"`
	Type domain.SectionType `json:"type,omitempty"`
}

// StateChangedEvent carries the full snapshot; consumers diff it themselves.
type StateChangedEvent struct {
	Kind     state.Kind       `json:"kind"`
	Revision uint64           `json:"revision"`
	State    *domain.Document `json:"state"`
}

// ForwardStateChanges emits state-changed for every store notification and
// returns the unsubscribe function.
func ForwardStateChanges(ctx context.Context, store *state.Store, emitter EventEmitter) func() {
	return store.Subscribe(func(c state.Change) {
		emitter.Emit(ctx, EventStateChanged, StateChangedEvent{
			Kind:     c.Action.Kind(),
			Revision: c.Revision,
			State:    c.State,
		})
	})
}

func componentEvent(c *domain.Component) ComponentEvent {
	return ComponentEvent{
		ID:        c.ID,
		Type:      c.Type,
		Props:     domain.CloneMap(c.Props),
		SectionID: c.SectionID,
		Column:    c.Column,
	}
}
