package state

import (
	"encoding/json"
	"fmt"

	"mediakit/internal/domain"
)

// wire payloads accepted from the frontend and the MCP tools.
type (
	anchorPayload struct {
		Before string `json:"before,omitempty"`
		After  string `json:"after,omitempty"`
	}
	addPayload struct {
		Component domain.Component `json:"component"`
		SectionID string           `json:"sectionId"`
		Column    int              `json:"column"`
		anchorPayload
	}
	idPayload struct {
		ID string `json:"id"`
	}
	updatePayload struct {
		ID      string         `json:"id"`
		Updates map[string]any `json:"updates"`
	}
	duplicatePayload struct {
		SourceID string `json:"sourceId"`
		NewID    string `json:"newId"`
	}
	movePayload struct {
		ID        string    `json:"id"`
		Direction Direction `json:"direction"`
	}
	registerPayload struct {
		ID      string             `json:"id"`
		Type    domain.SectionType `json:"type"`
		Options map[string]any     `json:"options"`
		Before  string             `json:"before,omitempty"`
	}
	assignPayload struct {
		ComponentID string `json:"componentId"`
		SectionID   string `json:"sectionId"`
		Column      int    `json:"column"`
		anchorPayload
	}
	reorderPayload struct {
		Order []string `json:"order"`
	}
	sectionOptionsPayload struct {
		ID      string         `json:"id"`
		Options map[string]any `json:"options"`
	}
	themePayload struct {
		Theme map[string]any `json:"theme"`
	}
	documentPayload struct {
		Document *domain.Document `json:"document"`
	}
)

// DecodeAction builds an Action from its wire kind and JSON payload.
// Unrecognized kinds decode to Unknown so that dispatching them is a logged
// no-op rather than a transport error.
func DecodeAction(kind string, payload json.RawMessage) (Action, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	decode := func(v any) error {
		if err := json.Unmarshal(payload, v); err != nil {
			return domain.WrapError(domain.ErrCodeValidation, err, "decode %s payload", kind)
		}
		return nil
	}

	switch Kind(kind) {
	case KindAddComponent:
		var p addPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return AddComponent{Component: p.Component, SectionID: p.SectionID, Column: p.Column, Anchor: p.anchor()}, nil
	case KindRemoveComponent:
		var p idPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return RemoveComponent{ID: p.ID}, nil
	case KindUpdateComponent:
		var p updatePayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return UpdateComponent{ID: p.ID, Updates: p.Updates}, nil
	case KindDuplicateComponent:
		var p duplicatePayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return DuplicateComponent{SourceID: p.SourceID, NewID: p.NewID}, nil
	case KindMoveComponent:
		var p movePayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return MoveComponent{ID: p.ID, Direction: p.Direction}, nil
	case KindRegisterSection:
		var p registerPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return RegisterSection{ID: p.ID, Type: p.Type, Options: p.Options, Before: p.Before}, nil
	case KindRemoveSection:
		var p idPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return RemoveSection{ID: p.ID}, nil
	case KindAssignComponent:
		var p assignPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return AssignComponent{ComponentID: p.ComponentID, SectionID: p.SectionID, Column: p.Column, Anchor: p.anchor()}, nil
	case KindReorderSections:
		var p reorderPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return ReorderSections{Order: p.Order}, nil
	case KindUpdateSectionOptions:
		var p sectionOptionsPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return UpdateSectionOptions{ID: p.ID, Options: p.Options}, nil
	case KindUpdateTheme:
		var p themePayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return UpdateTheme{Theme: p.Theme}, nil
	case KindSetState, KindHydrate:
		var p documentPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		if p.Document == nil {
			return nil, domain.Validationf("%s needs a document", kind)
		}
		if Kind(kind) == KindHydrate {
			return Hydrate{Document: p.Document}, nil
		}
		return SetState{Document: p.Document}, nil
	case KindRepairState:
		return RepairState{}, nil
	case KindUndo:
		return Undo{}, nil
	case KindRedo:
		return Redo{}, nil
	case "":
		return nil, fmt.Errorf("decode action: empty kind")
	default:
		return Unknown{Name: kind}, nil
	}
}

func (p anchorPayload) anchor() Anchor {
	return Anchor{Before: p.Before, After: p.After}
}
