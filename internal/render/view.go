package render

import "sync"

// Element is what the view needs to draw one component.
type Element struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Template  string         `json:"template"`
	Props     map[string]any `json:"props"`
	SectionID string         `json:"sectionId,omitempty"`
	Column    int            `json:"column"`
	Index     int            `json:"index"`
}

// View is the rendered element tree. The desktop shell forwards these calls
// to the WebView; tests use MemoryView.
type View interface {
	Mount(el Element) error
	Update(el Element) error
	Unmount(id string) error
	// Rendered lists one id per rendered element.
	Rendered() []string
	// Prune removes all but one element for id and returns how many were
	// removed.
	Prune(id string) int
}

// MemoryView is an in-memory View. It tolerates injected duplicates so the
// reconciler's healing can be exercised.
type MemoryView struct {
	mu       sync.Mutex
	elements []Element
	Mounts   int
	Updates  int
	Unmounts int
}

func NewMemoryView() *MemoryView {
	return &MemoryView{}
}

func (v *MemoryView) Mount(el Element) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.elements = append(v.elements, el)
	v.Mounts++
	return nil
}

func (v *MemoryView) Update(el Element) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.elements {
		if v.elements[i].ID == el.ID {
			v.elements[i] = el
		}
	}
	v.Updates++
	return nil
}

func (v *MemoryView) Unmount(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	kept := v.elements[:0]
	for _, el := range v.elements {
		if el.ID != id {
			kept = append(kept, el)
		}
	}
	v.elements = kept
	v.Unmounts++
	return nil
}

func (v *MemoryView) Rendered() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]string, len(v.elements))
	for i, el := range v.elements {
		ids[i] = el.ID
	}
	return ids
}

func (v *MemoryView) Prune(id string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	removed := 0
	seen := false
	kept := v.elements[:0]
	for _, el := range v.elements {
		if el.ID == id {
			if seen {
				removed++
				continue
			}
			seen = true
		}
		kept = append(kept, el)
	}
	v.elements = kept
	return removed
}

// Inject appends an element without going through Mount, simulating a
// stray duplicate created outside the reconciler.
func (v *MemoryView) Inject(el Element) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.elements = append(v.elements, el)
}

// Element returns the first rendered element for id.
func (v *MemoryView) Element(id string) (Element, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, el := range v.elements {
		if el.ID == id {
			return el, true
		}
	}
	return Element{}, false
}

// Count returns the number of rendered elements for id.
func (v *MemoryView) Count(id string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, el := range v.elements {
		if el.ID == id {
			n++
		}
	}
	return n
}
