package backend

import "sync"

// ─────────────────────────────────────────────────────────────
// saveGuard: one in-flight save per document
// ─────────────────────────────────────────────────────────────

// saveGuard ensures only one save of a given document runs at a time, so
// two writers never race for the same revision number.
type saveGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// TryLock marks documentID as saving. Returns false if a save of the same
// document is already running.
func (g *saveGuard) TryLock(documentID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[documentID]; ok {
		return false
	}
	g.running[documentID] = struct{}{}
	return true
}

// Unlock must follow a successful TryLock.
func (g *saveGuard) Unlock(documentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, documentID)
}
