package mcpserver

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Approval events sent to the frontend.
const (
	EventApprovalRequired  = "mcp:approval-required"
	EventApprovalDismissed = "mcp:approval-dismissed"
)

// DefaultApprovalTimeout bounds how long a destructive tool waits for the user.
const DefaultApprovalTimeout = 120 * time.Second

// PendingAction represents a destructive operation awaiting user approval.
type PendingAction struct {
	ID          string `json:"id"`
	Tool        string `json:"tool"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	// Target is the component or section id the action would delete, so the
	// editor can highlight it while asking.
	Target string `json:"target,omitempty"`
}

type pending struct {
	action PendingAction
	result chan bool
}

// ApprovalQueue manages human-in-the-loop approval for destructive MCP tool calls.
type ApprovalQueue struct {
	emitter EventEmitter
	timeout time.Duration

	mu      sync.Mutex
	auto    bool
	pending map[string]*pending
}

func NewApprovalQueue(emitter EventEmitter, timeout time.Duration) *ApprovalQueue {
	if timeout <= 0 {
		timeout = DefaultApprovalTimeout
	}
	return &ApprovalQueue{
		emitter: emitter,
		timeout: timeout,
		pending: make(map[string]*pending),
	}
}

// SetAutoApprove makes Request succeed immediately.
func (q *ApprovalQueue) SetAutoApprove(auto bool) {
	q.mu.Lock()
	q.auto = auto
	q.mu.Unlock()
}

// Request asks the user to confirm and blocks until they answer, the timeout
// passes or ctx ends. A nil error means approved.
func (q *ApprovalQueue) Request(ctx context.Context, tool, description, target string) error {
	q.mu.Lock()
	if q.auto {
		q.mu.Unlock()
		return nil
	}
	p := &pending{
		action: PendingAction{
			ID:          uuid.New().String(),
			Tool:        tool,
			Description: description,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
			Target:      target,
		},
		result: make(chan bool, 1),
	}
	q.pending[p.action.ID] = p
	q.mu.Unlock()

	q.emitter.Emit(ctx, EventApprovalRequired, p.action)

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()
	select {
	case approved := <-p.result:
		q.cleanup(p.action.ID)
		if !approved {
			return fmt.Errorf("action rejected by user: %s", tool)
		}
		return nil
	case <-timer.C:
		q.cleanup(p.action.ID)
		q.emitter.Emit(ctx, EventApprovalDismissed, map[string]string{"id": p.action.ID})
		return fmt.Errorf("action timed out after %s: %s", q.timeout, tool)
	case <-ctx.Done():
		q.cleanup(p.action.ID)
		q.emitter.Emit(context.WithoutCancel(ctx), EventApprovalDismissed, map[string]string{"id": p.action.ID})
		return fmt.Errorf("approval for %s: %w", tool, ctx.Err())
	}
}

// Approve marks a pending action as approved. Returns false for unknown ids.
func (q *ApprovalQueue) Approve(actionID string) bool {
	return q.resolve(actionID, true)
}

// Reject marks a pending action as rejected. Returns false for unknown ids.
func (q *ApprovalQueue) Reject(actionID string) bool {
	return q.resolve(actionID, false)
}

// Pending lists the actions still waiting for an answer, oldest first.
func (q *ApprovalQueue) Pending() []PendingAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingAction, 0, len(q.pending))
	for _, p := range q.pending {
		out = append(out, p.action)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

func (q *ApprovalQueue) resolve(id string, approved bool) bool {
	q.mu.Lock()
	p, ok := q.pending[id]
	if ok {
		delete(q.pending, id)
	}
	q.mu.Unlock()
	if !ok {
		return false
	}
	p.result <- approved
	return true
}

func (q *ApprovalQueue) cleanup(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}
