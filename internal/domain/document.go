package domain

import "sort"

// SectionType determines how many column slots a section carries.
type SectionType string

const (
	SectionFullWidth   SectionType = "full_width"
	SectionTwoColumn   SectionType = "two_column"
	SectionThreeColumn SectionType = "three_column"
)

// ColumnCount returns the number of columns for the section type, or 0 for an
// unknown type.
func (t SectionType) ColumnCount() int {
	switch t {
	case SectionFullWidth:
		return 1
	case SectionTwoColumn:
		return 2
	case SectionThreeColumn:
		return 3
	default:
		return 0
	}
}

// Valid reports whether t is one of the known section types.
func (t SectionType) Valid() bool {
	return t.ColumnCount() > 0
}

// Component is a single content block. Props is opaque to the engine and is
// owned by the component's template. An empty SectionID means the component is
// an orphan listed in Document.Layout; Column is meaningful only when SectionID
// is set.
type Component struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Props     map[string]any `json:"props"`
	SectionID string         `json:"sectionId,omitempty"`
	Column    int            `json:"column"`
}

// Section is a layout region. Columns holds the ordered component ids of each
// column slot; its length always matches Type.ColumnCount().
type Section struct {
	ID      string         `json:"id"`
	Type    SectionType    `json:"type"`
	Columns [][]string     `json:"columns"`
	Options map[string]any `json:"options,omitempty"`
}

// Document is the full in-memory model of one media kit.
type Document struct {
	Components map[string]*Component `json:"components"`
	Sections   []*Section            `json:"sections"`
	Layout     []string              `json:"layout"`
	Theme      map[string]any        `json:"theme,omitempty"`
	Meta       map[string]any        `json:"meta,omitempty"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Components: make(map[string]*Component),
		Sections:   []*Section{},
		Layout:     []string{},
	}
}

// NewSection creates a section with the column slots its type requires.
func NewSection(id string, t SectionType, options map[string]any) *Section {
	cols := make([][]string, t.ColumnCount())
	for i := range cols {
		cols[i] = []string{}
	}
	return &Section{ID: id, Type: t, Columns: cols, Options: CloneMap(options)}
}

// Section returns the section with the given id, or nil.
func (d *Document) Section(id string) *Section {
	for _, s := range d.Sections {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// SectionIndex returns the position of the section in Sections, or -1.
func (d *Document) SectionIndex(id string) int {
	for i, s := range d.Sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Placement is one listing of a component id. SectionID is empty for an entry
// in the orphan layout list.
type Placement struct {
	SectionID string `json:"sectionId,omitempty"`
	Column    int    `json:"column"`
	Index     int    `json:"index"`
}

// Locate returns every place the component id is listed. A consistent
// document yields exactly one placement for each component.
func (d *Document) Locate(id string) []Placement {
	var out []Placement
	for _, s := range d.Sections {
		for c, col := range s.Columns {
			for i, cid := range col {
				if cid == id {
					out = append(out, Placement{SectionID: s.ID, Column: c, Index: i})
				}
			}
		}
	}
	for i, cid := range d.Layout {
		if cid == id {
			out = append(out, Placement{Index: i})
		}
	}
	return out
}

// List returns the ordered id list a placement refers to.
func (d *Document) List(p Placement) []string {
	if p.SectionID == "" {
		return d.Layout
	}
	s := d.Section(p.SectionID)
	if s == nil || p.Column < 0 || p.Column >= len(s.Columns) {
		return nil
	}
	return s.Columns[p.Column]
}

// SetList replaces the ordered id list a placement refers to.
func (d *Document) SetList(p Placement, ids []string) {
	if p.SectionID == "" {
		d.Layout = ids
		return
	}
	s := d.Section(p.SectionID)
	if s == nil || p.Column < 0 || p.Column >= len(s.Columns) {
		return
	}
	s.Columns[p.Column] = ids
}

// Unlist removes every listing of id from sections and the orphan list.
func (d *Document) Unlist(id string) {
	for _, s := range d.Sections {
		for c := range s.Columns {
			s.Columns[c] = without(s.Columns[c], id)
		}
	}
	d.Layout = without(d.Layout, id)
}

// OrderedIDs returns all listed component ids in display order: sections in
// order, columns left to right, then orphans.
func (d *Document) OrderedIDs() []string {
	var out []string
	for _, s := range d.Sections {
		for _, col := range s.Columns {
			out = append(out, col...)
		}
	}
	return append(out, d.Layout...)
}

// ComponentIDs returns the keys of Components sorted.
func (d *Document) ComponentIDs() []string {
	ids := make([]string, 0, len(d.Components))
	for id := range d.Components {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy. Snapshots handed out by the state store are
// clones, so callers cannot mutate the canonical document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Components: make(map[string]*Component, len(d.Components)),
		Sections:   make([]*Section, len(d.Sections)),
		Layout:     append([]string{}, d.Layout...),
		Theme:      CloneMap(d.Theme),
		Meta:       CloneMap(d.Meta),
	}
	for id, c := range d.Components {
		out.Components[id] = c.Clone()
	}
	for i, s := range d.Sections {
		out.Sections[i] = s.Clone()
	}
	return out
}

// Clone returns a deep copy of the component.
func (c *Component) Clone() *Component {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Props = CloneMap(c.Props)
	return &cp
}

// Clone returns a deep copy of the section.
func (s *Section) Clone() *Section {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Columns = make([][]string, len(s.Columns))
	for i, col := range s.Columns {
		cp.Columns[i] = append([]string{}, col...)
	}
	cp.Options = CloneMap(s.Options)
	return &cp
}

// ComponentCount returns the number of component ids listed in the section.
func (s *Section) ComponentCount() int {
	n := 0
	for _, col := range s.Columns {
		n += len(col)
	}
	return n
}

// CloneMap deep-copies a JSON-shaped map. Nested maps and slices are copied;
// scalar values are shared.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		cp := make([]any, len(t))
		for i := range t {
			cp[i] = cloneValue(t[i])
		}
		return cp
	case []string:
		return append([]string{}, t...)
	default:
		return v
	}
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
