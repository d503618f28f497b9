package domain

import (
	"fmt"
	"sort"
)

// ViolationKind classifies a broken document invariant.
type ViolationKind string

const (
	ViolationDanglingSection   ViolationKind = "dangling_section"   // component.SectionID names no section
	ViolationDuplicateListing  ViolationKind = "duplicate_listing"  // id listed in more than one place
	ViolationUnlisted          ViolationKind = "unlisted"           // component not listed anywhere
	ViolationUnknownListing    ViolationKind = "unknown_listing"    // listed id has no component
	ViolationColumnCount       ViolationKind = "column_count"       // len(Columns) != Type.ColumnCount()
	ViolationPlacementMismatch ViolationKind = "placement_mismatch" // SectionID/Column disagree with the listing
	ViolationDuplicateSection  ViolationKind = "duplicate_section"
	ViolationNilEntry          ViolationKind = "nil_entry" // null section or component
)

// Violation describes one broken invariant.
type Violation struct {
	Kind        ViolationKind `json:"kind"`
	ComponentID string        `json:"componentId,omitempty"`
	SectionID   string        `json:"sectionId,omitempty"`
	Detail      string        `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Kind, v.Detail)
}

// Check returns every invariant violation in the document. A nil result
// means the document is consistent.
func (d *Document) Check() []Violation {
	var out []Violation

	seenSections := make(map[string]bool, len(d.Sections))
	for i, s := range d.Sections {
		if s == nil {
			out = append(out, Violation{
				Kind:   ViolationNilEntry,
				Detail: fmt.Sprintf("section at position %d is null", i),
			})
			continue
		}
		if seenSections[s.ID] {
			out = append(out, Violation{
				Kind: ViolationDuplicateSection, SectionID: s.ID,
				Detail: fmt.Sprintf("section %s registered twice", s.ID),
			})
		}
		seenSections[s.ID] = true
		if want := s.Type.ColumnCount(); len(s.Columns) != want {
			out = append(out, Violation{
				Kind: ViolationColumnCount, SectionID: s.ID,
				Detail: fmt.Sprintf("section %s (%s) has %d columns, want %d", s.ID, s.Type, len(s.Columns), want),
			})
		}
	}

	listed := make(map[string][]Placement)
	for _, s := range d.Sections {
		if s == nil {
			continue
		}
		for c, col := range s.Columns {
			for i, id := range col {
				listed[id] = append(listed[id], Placement{SectionID: s.ID, Column: c, Index: i})
			}
		}
	}
	for i, id := range d.Layout {
		listed[id] = append(listed[id], Placement{Index: i})
	}

	for _, id := range sortedKeys(listed) {
		if _, ok := d.Components[id]; !ok {
			out = append(out, Violation{
				Kind: ViolationUnknownListing, ComponentID: id,
				Detail: fmt.Sprintf("id %s is listed but has no component", id),
			})
		}
		if n := len(listed[id]); n > 1 {
			out = append(out, Violation{
				Kind: ViolationDuplicateListing, ComponentID: id,
				Detail: fmt.Sprintf("component %s listed %d times", id, n),
			})
		}
	}

	for _, id := range d.ComponentIDs() {
		c := d.Components[id]
		if c == nil {
			out = append(out, Violation{
				Kind: ViolationNilEntry, ComponentID: id,
				Detail: fmt.Sprintf("component %s is null", id),
			})
			continue
		}
		if c.SectionID != "" && !seenSections[c.SectionID] {
			out = append(out, Violation{
				Kind: ViolationDanglingSection, ComponentID: id, SectionID: c.SectionID,
				Detail: fmt.Sprintf("component %s references missing section %s", id, c.SectionID),
			})
		}
		places := listed[id]
		if len(places) == 0 {
			out = append(out, Violation{
				Kind: ViolationUnlisted, ComponentID: id,
				Detail: fmt.Sprintf("component %s is not listed in any section or the layout", id),
			})
			continue
		}
		p := places[0]
		if p.SectionID != c.SectionID || (p.SectionID != "" && p.Column != c.Column) {
			out = append(out, Violation{
				Kind: ViolationPlacementMismatch, ComponentID: id, SectionID: p.SectionID,
				Detail: fmt.Sprintf("component %s says %q/%d but is listed at %q/%d", id, c.SectionID, c.Column, p.SectionID, p.Column),
			})
		}
	}
	return out
}

// Repair rewrites the document so that Check returns nothing. The first
// listing of a duplicated id wins; components whose section is gone become
// orphans; listings without a component are dropped; unlisted components are
// appended to the orphan layout. Returns the number of fixes applied.
func (d *Document) Repair() int {
	fixes := 0
	if d.Components == nil {
		d.Components = make(map[string]*Component)
	}
	if d.Layout == nil {
		d.Layout = []string{}
	}
	for id, c := range d.Components {
		if c == nil || c.Type == "" {
			delete(d.Components, id)
			fixes++
			continue
		}
		if c.ID != id {
			c.ID = id
			fixes++
		}
	}

	// Sections: drop duplicate ids and unknown types, normalize columns.
	seen := make(map[string]bool, len(d.Sections))
	sections := d.Sections[:0:0]
	for _, s := range d.Sections {
		if s == nil || seen[s.ID] || !s.Type.Valid() {
			fixes++
			if s != nil && !seen[s.ID] {
				// Keep the components of a dropped section as orphans.
				for _, col := range s.Columns {
					d.Layout = append(d.Layout, col...)
				}
			}
			continue
		}
		seen[s.ID] = true
		if want := s.Type.ColumnCount(); len(s.Columns) != want {
			fixes++
			cols := make([][]string, want)
			for i := range cols {
				cols[i] = []string{}
			}
			for i, col := range s.Columns {
				// Extra columns collapse into the last one.
				j := i
				if j >= want {
					j = want - 1
				}
				cols[j] = append(cols[j], col...)
			}
			s.Columns = cols
		}
		sections = append(sections, s)
	}
	d.Sections = sections

	// Listings: first one wins, unknown ids dropped.
	claimed := make(map[string]bool)
	keep := func(id string) bool {
		if _, ok := d.Components[id]; !ok || claimed[id] {
			fixes++
			return false
		}
		claimed[id] = true
		return true
	}
	for _, s := range d.Sections {
		for c, col := range s.Columns {
			kept := []string{}
			for _, id := range col {
				if keep(id) {
					kept = append(kept, id)
					comp := d.Components[id]
					if comp.SectionID != s.ID || comp.Column != c {
						fixes++
						comp.SectionID, comp.Column = s.ID, c
					}
				}
			}
			s.Columns[c] = kept
		}
	}
	layout := []string{}
	for _, id := range d.Layout {
		if keep(id) {
			layout = append(layout, id)
			comp := d.Components[id]
			if comp.SectionID != "" || comp.Column != 0 {
				fixes++
				comp.SectionID, comp.Column = "", 0
			}
		}
	}

	// Unlisted components become orphans.
	for _, id := range d.ComponentIDs() {
		if claimed[id] {
			continue
		}
		fixes++
		comp := d.Components[id]
		comp.SectionID, comp.Column = "", 0
		layout = append(layout, id)
	}
	d.Layout = layout
	return fixes
}

func sortedKeys(m map[string][]Placement) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
