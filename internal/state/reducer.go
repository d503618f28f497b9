package state

import (
	"fmt"

	"mediakit/internal/domain"
)

// errUnknownAction marks a dispatch of an unrecognized kind.
var errUnknownAction = fmt.Errorf("unrecognized action")

// reduce applies a to doc in place. doc is a private working copy; on error
// the caller discards it, so reducers may fail after partial edits. retired
// holds ids that were deleted earlier in the session and may not be reused.
func reduce(doc *domain.Document, a Action, retired map[string]bool) (bool, error) {
	switch a := a.(type) {
	case AddComponent:
		return reduceAdd(doc, a, retired)
	case RemoveComponent:
		return reduceRemove(doc, a.ID, retired)
	case UpdateComponent:
		return reduceUpdate(doc, a)
	case DuplicateComponent:
		return reduceDuplicate(doc, a, retired)
	case MoveComponent:
		return reduceMove(doc, a)
	case RegisterSection:
		return reduceRegisterSection(doc, a, retired)
	case RemoveSection:
		return reduceRemoveSection(doc, a.ID, retired)
	case AssignComponent:
		return reduceAssign(doc, a)
	case ReorderSections:
		return reduceReorder(doc, a.Order)
	case UpdateSectionOptions:
		s := doc.Section(a.ID)
		if s == nil {
			return false, domain.Validationf("section %s does not exist", a.ID)
		}
		if len(a.Options) == 0 {
			return false, nil
		}
		s.Options = merge(s.Options, a.Options)
		return true, nil
	case UpdateTheme:
		if len(a.Theme) == 0 {
			return false, nil
		}
		doc.Theme = merge(doc.Theme, a.Theme)
		return true, nil
	case RepairState:
		return doc.Repair() > 0, nil
	default:
		return false, errUnknownAction
	}
}

func reduceAdd(doc *domain.Document, a AddComponent, retired map[string]bool) (bool, error) {
	c := a.Component
	if c.ID == "" || c.Type == "" {
		return false, domain.Validationf("component id and type are required")
	}
	if _, exists := doc.Components[c.ID]; exists || retired[c.ID] {
		return false, domain.Validationf("component id %s already used", c.ID)
	}
	comp := c.Clone()
	if comp.Props == nil {
		comp.Props = map[string]any{}
	}
	comp.SectionID, comp.Column = "", 0
	doc.Components[comp.ID] = comp
	if err := place(doc, comp, a.SectionID, a.Column, a.Anchor); err != nil {
		return false, err
	}
	return true, nil
}

func reduceRemove(doc *domain.Document, id string, retired map[string]bool) (bool, error) {
	if _, ok := doc.Components[id]; !ok {
		return false, nil
	}
	doc.Unlist(id)
	delete(doc.Components, id)
	retired[id] = true
	return true, nil
}

func reduceUpdate(doc *domain.Document, a UpdateComponent) (bool, error) {
	c, ok := doc.Components[a.ID]
	if !ok {
		return false, domain.Validationf("component %s does not exist", a.ID)
	}
	if len(a.Updates) == 0 {
		return false, nil
	}
	c.Props = merge(c.Props, a.Updates)
	return true, nil
}

func reduceDuplicate(doc *domain.Document, a DuplicateComponent, retired map[string]bool) (bool, error) {
	src, ok := doc.Components[a.SourceID]
	if !ok {
		return false, domain.Validationf("component %s does not exist", a.SourceID)
	}
	if a.NewID == "" {
		return false, domain.Validationf("duplicate of %s needs an id", a.SourceID)
	}
	if _, exists := doc.Components[a.NewID]; exists || retired[a.NewID] {
		return false, domain.Validationf("component id %s already used", a.NewID)
	}
	places := doc.Locate(src.ID)
	if len(places) == 0 {
		return false, domain.NewError(domain.ErrCodeConsistency, "component %s is not listed anywhere", src.ID)
	}
	p := places[0]
	cp := src.Clone()
	cp.ID = a.NewID
	doc.Components[cp.ID] = cp
	list := doc.List(p)
	doc.SetList(p, insertAt(list, Anchor{After: src.ID}, cp.ID))
	return true, nil
}

func reduceMove(doc *domain.Document, a MoveComponent) (bool, error) {
	if _, ok := doc.Components[a.ID]; !ok {
		return false, domain.Validationf("component %s does not exist", a.ID)
	}
	places := doc.Locate(a.ID)
	if len(places) == 0 {
		return false, domain.NewError(domain.ErrCodeConsistency, "component %s is not listed anywhere", a.ID)
	}
	p := places[0]
	list := doc.List(p)
	var j int
	switch a.Direction {
	case Up:
		j = p.Index - 1
	case Down:
		j = p.Index + 1
	default:
		return false, domain.Validationf("unknown direction %q", a.Direction)
	}
	if j < 0 || j >= len(list) {
		// Already at the boundary.
		return false, nil
	}
	list[p.Index], list[j] = list[j], list[p.Index]
	return true, nil
}

func reduceRegisterSection(doc *domain.Document, a RegisterSection, retired map[string]bool) (bool, error) {
	if a.ID == "" {
		return false, domain.Validationf("section id is required")
	}
	if !a.Type.Valid() {
		return false, domain.Validationf("unknown section type %q", a.Type)
	}
	if doc.Section(a.ID) != nil || retired["section:"+a.ID] {
		return false, domain.Validationf("section %s already exists", a.ID)
	}
	s := domain.NewSection(a.ID, a.Type, a.Options)
	if i := doc.SectionIndex(a.Before); a.Before != "" && i >= 0 {
		doc.Sections = append(doc.Sections[:i], append([]*domain.Section{s}, doc.Sections[i:]...)...)
	} else {
		doc.Sections = append(doc.Sections, s)
	}
	return true, nil
}

func reduceRemoveSection(doc *domain.Document, id string, retired map[string]bool) (bool, error) {
	i := doc.SectionIndex(id)
	if i < 0 {
		return false, domain.Validationf("section %s does not exist", id)
	}
	s := doc.Sections[i]
	// Demote first so no component ever references the deleted section.
	for _, col := range s.Columns {
		for _, cid := range col {
			if c, ok := doc.Components[cid]; ok {
				c.SectionID, c.Column = "", 0
				doc.Layout = append(doc.Layout, cid)
			}
		}
	}
	// Components that pointed at the section without being listed in it.
	for _, cid := range doc.ComponentIDs() {
		c := doc.Components[cid]
		if c.SectionID == id {
			doc.Unlist(cid)
			c.SectionID, c.Column = "", 0
			doc.Layout = append(doc.Layout, cid)
		}
	}
	doc.Sections = append(doc.Sections[:i], doc.Sections[i+1:]...)
	retired["section:"+id] = true
	return true, nil
}

func reduceAssign(doc *domain.Document, a AssignComponent) (bool, error) {
	c, ok := doc.Components[a.ComponentID]
	if !ok {
		return false, domain.Validationf("component %s does not exist", a.ComponentID)
	}
	if a.SectionID != "" && doc.Section(a.SectionID) == nil {
		return false, domain.Validationf("section %s does not exist", a.SectionID)
	}
	before := doc.Locate(c.ID)
	doc.Unlist(c.ID)
	if err := place(doc, c, a.SectionID, a.Column, a.Anchor); err != nil {
		return false, err
	}
	after := doc.Locate(c.ID)
	return len(before) != 1 || before[0] != after[0], nil
}

func reduceReorder(doc *domain.Document, order []string) (bool, error) {
	if len(order) != len(doc.Sections) {
		return false, domain.Validationf("section order names %d of %d sections", len(order), len(doc.Sections))
	}
	next := make([]*domain.Section, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		s := doc.Section(id)
		if s == nil || seen[id] {
			return false, domain.Validationf("section order is not a permutation (%s)", id)
		}
		seen[id] = true
		next = append(next, s)
	}
	changed := false
	for i := range next {
		if next[i] != doc.Sections[i] {
			changed = true
		}
	}
	doc.Sections = next
	return changed, nil
}

// place lists c at sectionID/column relative to the anchor and updates its
// placement fields. The column is clamped into the section's range.
func place(doc *domain.Document, c *domain.Component, sectionID string, column int, at Anchor) error {
	if sectionID == "" {
		c.SectionID, c.Column = "", 0
		doc.Layout = insertAt(doc.Layout, at, c.ID)
		return nil
	}
	s := doc.Section(sectionID)
	if s == nil {
		return domain.Validationf("section %s does not exist", sectionID)
	}
	column = clamp(column, 0, len(s.Columns)-1)
	s.Columns[column] = insertAt(s.Columns[column], at, c.ID)
	c.SectionID, c.Column = s.ID, column
	return nil
}

// insertAt inserts id before or after the anchor id. A missing or empty
// anchor appends.
func insertAt(list []string, at Anchor, id string) []string {
	index := -1
	for i, x := range list {
		if at.Before != "" && x == at.Before {
			index = i
			break
		}
		if at.After != "" && x == at.After {
			index = i + 1
			break
		}
	}
	if index < 0 || index >= len(list) {
		return append(list, id)
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, list[:index]...)
	out = append(out, id)
	return append(out, list[index:]...)
}

func merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range domain.CloneMap(src) {
		dst[k] = v
	}
	return dst
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
