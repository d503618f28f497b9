package render

import "mediakit/internal/domain"

// Diff is the work needed to bring a rendered tree in line with a document,
// keyed by component id.
type Diff struct {
	Mount   []string // listed in the document, not rendered
	Update  []string // rendered and still listed
	Unmount []string // rendered but gone from the document
	// Duplicates are ids with more than one rendered element.
	Duplicates []string
}

// Empty reports whether the diff requires no work.
func (d Diff) Empty() bool {
	return len(d.Mount) == 0 && len(d.Update) == 0 && len(d.Unmount) == 0 && len(d.Duplicates) == 0
}

// Plan compares the rendered element ids (one entry per element, so an id
// may repeat) against the ids the document lists. Mount and Update follow
// display order; Unmount follows rendered order.
func Plan(rendered []string, doc *domain.Document) Diff {
	var d Diff
	count := make(map[string]int, len(rendered))
	for _, id := range rendered {
		count[id]++
		if count[id] == 2 {
			d.Duplicates = append(d.Duplicates, id)
		}
	}

	want := make(map[string]bool)
	for _, id := range doc.OrderedIDs() {
		if want[id] {
			continue
		}
		if _, ok := doc.Components[id]; !ok {
			continue
		}
		want[id] = true
		if count[id] > 0 {
			d.Update = append(d.Update, id)
		} else {
			d.Mount = append(d.Mount, id)
		}
	}

	seen := make(map[string]bool, len(rendered))
	for _, id := range rendered {
		if want[id] || seen[id] {
			continue
		}
		seen[id] = true
		d.Unmount = append(d.Unmount, id)
	}
	return d
}
