// Package backend is the reference implementation of the save endpoint: a
// single POST route dispatching on the form's action field.
package backend

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"mediakit/internal/domain"
	"mediakit/internal/logging"
	"mediakit/internal/persistence"
)

// MaxStateBytes caps the serialized document accepted by save_document.
const MaxStateBytes = 16 << 20

// Handler serves the endpoint over a DocumentStore.
type Handler struct {
	store  domain.DocumentStore
	token  string
	logger *log.Logger
	saving saveGuard
}

// NewHandler creates the handler. An empty token disables the token check.
func NewHandler(store domain.DocumentStore, token string, logger *log.Logger) *Handler {
	return &Handler{
		store:  store,
		token:  token,
		logger: logging.OrDiscard(logger).WithPrefix("backend"),
	}
}

type failure struct {
	status  int
	message string
}

func (f *failure) Error() string { return f.message }

func fail(status int, message string) error {
	return &failure{status: status, message: message}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.respond(w, http.StatusMethodNotAllowed, false, "POST required")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxStateBytes+64<<10)
	if err := r.ParseForm(); err != nil {
		h.respond(w, http.StatusBadRequest, false, "Malformed request")
		return
	}

	action := r.PostForm.Get("action")
	if !h.authorized(r.PostForm.Get("security_token")) {
		h.logger.Warn("rejected request", "action", action, "reason", "token")
		h.respond(w, http.StatusForbidden, false, "Invalid security token")
		return
	}
	id := r.PostForm.Get("document_id")
	if id == "" {
		h.respond(w, http.StatusBadRequest, false, "document_id is required")
		return
	}

	var data any
	var err error
	switch action {
	case persistence.ActionSave:
		data, err = h.save(r.Context(), id, r.PostForm.Get("state"))
	case persistence.ActionLoad:
		data, err = h.load(r.Context(), id)
	case persistence.ActionListRevisions:
		data, err = h.store.ListRevisions(r.Context(), id)
	default:
		err = fail(http.StatusBadRequest, "Unknown action")
	}
	if err != nil {
		var f *failure
		if errors.As(err, &f) {
			h.respond(w, f.status, false, f.message)
			return
		}
		h.logger.Error("request failed", "action", action, "document", id, "err", err)
		h.respond(w, http.StatusInternalServerError, false, "Storage error, please retry")
		return
	}
	h.respond(w, http.StatusOK, true, data)
}

func (h *Handler) authorized(got string) bool {
	if h.token == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}

func (h *Handler) save(ctx context.Context, id, raw string) (*persistence.SaveResult, error) {
	if raw == "" {
		return nil, fail(http.StatusBadRequest, "No state data provided")
	}
	if len(raw) > MaxStateBytes {
		return nil, fail(http.StatusRequestEntityTooLarge, "Document too large")
	}
	if !h.saving.TryLock(id) {
		h.logger.Warn("rejected concurrent save", "document", id)
		return nil, fail(http.StatusConflict, "Save already in progress")
	}
	defer h.saving.Unlock(id)
	var doc domain.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fail(http.StatusBadRequest, "Invalid JSON data")
	}
	if violations := doc.Check(); len(violations) > 0 {
		h.logger.Warn("rejected inconsistent document", "document", id, "violations", len(violations))
		return nil, fail(http.StatusUnprocessableEntity, "Inconsistent document: "+violations[0].Detail)
	}

	compact, err := json.Marshal(&doc)
	if err != nil {
		return nil, err
	}
	stored, err := h.store.SaveDocument(ctx, id, compact)
	if err != nil {
		return nil, err
	}

	inSections := 0
	for _, s := range doc.Sections {
		inSections += s.ComponentCount()
	}
	h.logger.Info("saved", "document", id, "revision", stored.Revision, "bytes", len(compact))
	return &persistence.SaveResult{
		Message:              "Media kit saved successfully",
		Timestamp:            stored.UpdatedAt,
		Revision:             stored.Revision,
		ComponentsCount:      len(doc.Components),
		SectionsCount:        len(doc.Sections),
		ComponentsInSections: inSections,
		DataSize:             len(compact),
	}, nil
}

func (h *Handler) load(ctx context.Context, id string) (*persistence.LoadResult, error) {
	stored, err := h.store.LoadDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return &persistence.LoadResult{}, nil
	}
	var doc domain.Document
	if err := json.Unmarshal(stored.State, &doc); err != nil {
		return nil, err
	}
	return &persistence.LoadResult{State: &doc, Revision: stored.Revision, UpdatedAt: stored.UpdatedAt}, nil
}

func (h *Handler) respond(w http.ResponseWriter, status int, ok bool, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{"success": ok, "data": data}); err != nil {
		h.logger.Warn("write response", "err", err)
	}
}
