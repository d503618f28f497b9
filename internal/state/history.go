package state

import "mediakit/internal/domain"

// DefaultHistoryLimit bounds the undo stack.
const DefaultHistoryLimit = 50

// history keeps immutable document snapshots. The store never mutates a
// document after swapping it out, so snapshots are shared, not copied.
type history struct {
	limit int
	past  []*domain.Document
	ahead []*domain.Document
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &history{limit: limit}
}

// push records the document being replaced and drops the redo branch.
func (h *history) push(prev *domain.Document) {
	h.past = append(h.past, prev)
	if over := len(h.past) - h.limit; over > 0 {
		h.past = append(h.past[:0:0], h.past[over:]...)
	}
	h.ahead = nil
}

func (h *history) undo(current *domain.Document) *domain.Document {
	if len(h.past) == 0 {
		return nil
	}
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.ahead = append(h.ahead, current)
	return prev
}

func (h *history) redo(current *domain.Document) *domain.Document {
	if len(h.ahead) == 0 {
		return nil
	}
	next := h.ahead[len(h.ahead)-1]
	h.ahead = h.ahead[:len(h.ahead)-1]
	h.past = append(h.past, current)
	return next
}

func (h *history) canUndo() bool { return len(h.past) > 0 }
func (h *history) canRedo() bool { return len(h.ahead) > 0 }

func (h *history) reset() {
	h.past = nil
	h.ahead = nil
}
