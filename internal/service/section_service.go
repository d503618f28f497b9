package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"mediakit/internal/domain"
	"mediakit/internal/logging"
	"mediakit/internal/state"
)

// SectionService owns section records and the rule that a component is
// listed in at most one section column.
type SectionService struct {
	store   *state.Store
	emitter EventEmitter
	logger  *log.Logger
	now     func() time.Time
}

func NewSectionService(store *state.Store, emitter EventEmitter, logger *log.Logger) *SectionService {
	return &SectionService{
		store:   store,
		emitter: emitter,
		logger:  logging.OrDiscard(logger).WithPrefix("sections"),
		now:     time.Now,
	}
}

// RegisterSection creates a section whose column count follows its type. An
// empty id generates one. Returns the section id.
func (s *SectionService) RegisterSection(ctx context.Context, id string, typ domain.SectionType, options map[string]any) (string, error) {
	return s.RegisterSectionBefore(ctx, id, typ, options, "")
}

// RegisterSectionBefore is RegisterSection inserting ahead of the section
// named by before (appending when before is empty or unknown).
func (s *SectionService) RegisterSectionBefore(ctx context.Context, id string, typ domain.SectionType, options map[string]any, before string) (string, error) {
	if id == "" {
		id = newID("section", s.now())
	}
	if err := s.store.Commit(state.RegisterSection{ID: id, Type: typ, Options: options, Before: before}); err != nil {
		s.logger.Warn("register section skipped", "id", id, "type", typ, "err", err)
		return "", err
	}
	s.emitter.Emit(ctx, EventSectionRegistered, SectionEvent{ID: id, Type: typ})
	return id, nil
}

// RemoveSection demotes the section's components to orphans and deletes it.
func (s *SectionService) RemoveSection(ctx context.Context, id string) error {
	if err := s.store.Commit(state.RemoveSection{ID: id}); err != nil {
		s.logger.Warn("remove section skipped", "id", id, "err", err)
		return err
	}
	s.emitter.Emit(ctx, EventSectionRemoved, SectionEvent{ID: id})
	return nil
}

// AssignComponentToSection moves a component to the end of sectionID/column.
// The previous listing is removed in the same mutation. An empty sectionID
// demotes the component to the orphan list.
func (s *SectionService) AssignComponentToSection(ctx context.Context, componentID, sectionID string, column int) error {
	return s.AssignComponentAt(ctx, componentID, sectionID, column, state.Anchor{})
}

// AssignComponentAt is AssignComponentToSection with a position relative to
// a sibling in the target column.
func (s *SectionService) AssignComponentAt(ctx context.Context, componentID, sectionID string, column int, at state.Anchor) error {
	if err := s.store.Commit(state.AssignComponent{
		ComponentID: componentID,
		SectionID:   sectionID,
		Column:      column,
		Anchor:      at,
	}); err != nil {
		s.logger.Warn("assign skipped", "component", componentID, "section", sectionID, "column", column, "err", err)
		return err
	}
	var placed *domain.Component
	s.store.View(func(doc *domain.Document) {
		placed = doc.Components[componentID].Clone()
	})
	if placed != nil {
		s.emitter.Emit(ctx, EventComponentUpdated, componentEvent(placed))
	}
	return nil
}

// GetSection returns a copy of the section, or nil.
func (s *SectionService) GetSection(id string) *domain.Section {
	var out *domain.Section
	s.store.View(func(doc *domain.Document) {
		out = doc.Section(id).Clone()
	})
	return out
}

// AllSections returns copies of every section in display order.
func (s *SectionService) AllSections() []*domain.Section {
	var out []*domain.Section
	s.store.View(func(doc *domain.Document) {
		out = make([]*domain.Section, 0, len(doc.Sections))
		for _, sec := range doc.Sections {
			out = append(out, sec.Clone())
		}
	})
	return out
}

// ReorderSections sets the display order. order must name every section.
func (s *SectionService) ReorderSections(ctx context.Context, order []string) error {
	if err := s.store.Commit(state.ReorderSections{Order: order}); err != nil {
		s.logger.Warn("reorder skipped", "err", err)
		return err
	}
	return nil
}

// UpdateSectionOptions shallow-merges options into the section's options.
func (s *SectionService) UpdateSectionOptions(ctx context.Context, id string, options map[string]any) error {
	if err := s.store.Commit(state.UpdateSectionOptions{ID: id, Options: options}); err != nil {
		s.logger.Warn("section options skipped", "id", id, "err", err)
		return err
	}
	return nil
}
