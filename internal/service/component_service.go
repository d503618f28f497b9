package service

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"mediakit/internal/domain"
	"mediakit/internal/logging"
	"mediakit/internal/state"
)

// Renderer is the part of the render reconciler the component service drives
// directly after a mutation.
type Renderer interface {
	RenderComponent(id string, data map[string]any) error
	Unmount(id string)
}

// Templates supplies per-type schema defaults. Implemented by the template
// registry; the service never interprets props beyond merging defaults.
type Templates interface {
	Defaults(componentType string) map[string]any
}

// Placement is the drop target of AddComponentAt.
type Placement struct {
	SectionID string
	Column    int
	Anchor    state.Anchor
}

// ComponentService manages component lifecycle. Storage is delegated to the
// state store; section placement goes through the SectionService rules.
type ComponentService struct {
	store     *state.Store
	sections  *SectionService
	renderer  Renderer
	templates Templates
	emitter   EventEmitter
	logger    *log.Logger
	now       func() time.Time

	// addMu serializes the "no sections yet" check with the default-section
	// creation so concurrent adds create one section, not several.
	addMu sync.Mutex
}

// NewComponentService wires the service. renderer and templates may be nil.
func NewComponentService(store *state.Store, sections *SectionService, renderer Renderer, templates Templates, emitter EventEmitter, logger *log.Logger) *ComponentService {
	return &ComponentService{
		store:     store,
		sections:  sections,
		renderer:  renderer,
		templates: templates,
		emitter:   emitter,
		logger:    logging.OrDiscard(logger).WithPrefix("components"),
		now:       time.Now,
	}
}

// AddComponent creates a component of typ with data layered over the
// template defaults. Without a target it goes to column 0 of the first
// section; when no section exists a full-width one is created first.
// Returns the new id.
func (s *ComponentService) AddComponent(ctx context.Context, typ string, data map[string]any, targetSectionID string) (string, error) {
	s.addMu.Lock()
	defer s.addMu.Unlock()

	target := Placement{SectionID: targetSectionID}
	if target.SectionID == "" {
		var first string
		s.store.View(func(doc *domain.Document) {
			if len(doc.Sections) > 0 {
				first = doc.Sections[0].ID
			}
		})
		if first == "" {
			id, err := s.sections.RegisterSection(ctx, "", domain.SectionFullWidth, nil)
			if err != nil {
				return "", err
			}
			s.logger.Debug("created default section", "id", id)
			first = id
		}
		target.SectionID = first
	}
	return s.add(ctx, typ, data, target)
}

// AddComponentAt creates a component at an explicit drop target. An empty
// SectionID lists it as an orphan.
func (s *ComponentService) AddComponentAt(ctx context.Context, typ string, data map[string]any, at Placement) (string, error) {
	s.addMu.Lock()
	defer s.addMu.Unlock()
	return s.add(ctx, typ, data, at)
}

func (s *ComponentService) add(ctx context.Context, typ string, data map[string]any, at Placement) (string, error) {
	if typ == "" {
		err := domain.Validationf("component type is required")
		s.logger.Warn("add skipped", "err", err)
		return "", err
	}
	props := map[string]any{}
	if s.templates != nil {
		for k, v := range domain.CloneMap(s.templates.Defaults(typ)) {
			props[k] = v
		}
	}
	for k, v := range domain.CloneMap(data) {
		props[k] = v
	}

	id := newID(typ, s.now())
	err := s.store.Commit(state.AddComponent{
		Component: domain.Component{ID: id, Type: typ, Props: props},
		SectionID: at.SectionID,
		Column:    at.Column,
		Anchor:    at.Anchor,
	})
	if err != nil {
		s.logger.Warn("add skipped", "type", typ, "section", at.SectionID, "err", err)
		return "", err
	}
	s.rendered(ctx, id, EventComponentAdded)
	return id, nil
}

// RemoveComponent deletes a component and its rendered element. Unknown ids
// are a no-op.
func (s *ComponentService) RemoveComponent(ctx context.Context, id string) error {
	if !s.exists(id) {
		s.logger.Debug("remove of unknown component ignored", "id", id)
		return nil
	}
	if err := s.store.Commit(state.RemoveComponent{ID: id}); err != nil {
		return err
	}
	if s.renderer != nil {
		s.renderer.Unmount(id)
	}
	s.emitter.Emit(ctx, EventComponentRemoved, ComponentEvent{ID: id})
	return nil
}

// UpdateComponent shallow-merges updates into the component's props and
// re-renders it. Unknown ids are skipped with a warning.
func (s *ComponentService) UpdateComponent(ctx context.Context, id string, updates map[string]any) error {
	if err := s.store.Commit(state.UpdateComponent{ID: id, Updates: updates}); err != nil {
		s.logger.Warn("update skipped", "id", id, "err", err)
		return err
	}
	s.rendered(ctx, id, EventComponentUpdated)
	return nil
}

// DuplicateComponent clones the component's props under a new id placed
// right after the source. Returns the new id.
func (s *ComponentService) DuplicateComponent(ctx context.Context, id string) (string, error) {
	var typ string
	s.store.View(func(doc *domain.Document) {
		if c := doc.Components[id]; c != nil {
			typ = c.Type
		}
	})
	if typ == "" {
		err := domain.Validationf("component %s does not exist", id)
		s.logger.Warn("duplicate skipped", "id", id, "err", err)
		return "", err
	}
	copyID := newID(typ, s.now())
	if err := s.store.Commit(state.DuplicateComponent{SourceID: id, NewID: copyID}); err != nil {
		s.logger.Warn("duplicate skipped", "id", id, "err", err)
		return "", err
	}
	s.rendered(ctx, copyID, EventComponentAdded)
	return copyID, nil
}

// MoveComponent swaps the component with its neighbour in its column.
// Moving the first component up or the last one down changes nothing.
func (s *ComponentService) MoveComponent(ctx context.Context, id string, dir state.Direction) error {
	if err := s.store.Commit(state.MoveComponent{ID: id, Direction: dir}); err != nil {
		s.logger.Warn("move skipped", "id", id, "direction", dir, "err", err)
		return err
	}
	return nil
}

// GetComponent returns a copy of the component, or nil.
func (s *ComponentService) GetComponent(id string) *domain.Component {
	var out *domain.Component
	s.store.View(func(doc *domain.Document) {
		out = doc.Components[id].Clone()
	})
	return out
}

func (s *ComponentService) exists(id string) bool {
	ok := false
	s.store.View(func(doc *domain.Document) {
		_, ok = doc.Components[id]
	})
	return ok
}

// rendered renders the committed component and emits event with its
// payload.
func (s *ComponentService) rendered(ctx context.Context, id, event string) {
	c := s.GetComponent(id)
	if c == nil {
		return
	}
	if s.renderer != nil {
		if err := s.renderer.RenderComponent(id, c.Props); err != nil {
			s.logger.Warn("render failed", "id", id, "err", err)
		}
	}
	s.emitter.Emit(ctx, event, componentEvent(c))
}
