package models

import (
	"time"

	"github.com/google/uuid"
)

type TurnStatus string

const (
	TurnStatusInProgress TurnStatus = "in_progress"
	TurnStatusSubmitted  TurnStatus = "submitted"
	TurnStatusNeedsFix   TurnStatus = "needs_fix"
	TurnStatusApproved   TurnStatus = "approved"
	TurnStatusCancelled  TurnStatus = "cancelled"
)

var turnTransitions = map[TurnStatus][]TurnStatus{
	TurnStatusInProgress: {TurnStatusSubmitted, TurnStatusCancelled},
	TurnStatusSubmitted:  {TurnStatusNeedsFix, TurnStatusApproved, TurnStatusCancelled},
	TurnStatusNeedsFix:   {TurnStatusSubmitted, TurnStatusCancelled},
}

// CanTransitionTo reports whether to is a legal next status.
func (s TurnStatus) CanTransitionTo(to TurnStatus) bool {
	for _, next := range turnTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s TurnStatus) IsTerminal() bool {
	return s == TurnStatusApproved || s == TurnStatusCancelled
}

func (s TurnStatus) Valid() bool {
	switch s {
	case TurnStatusInProgress, TurnStatusSubmitted, TurnStatusNeedsFix, TurnStatusApproved, TurnStatusCancelled:
		return true
	}
	return false
}

// NoteVariants keeps what was typed, its translation and what was actually sent.
type NoteVariants struct {
	Original   *string `json:"original,omitempty"`
	Translated *string `json:"translated,omitempty"`
	Sent       *string `json:"sent,omitempty"`
}

func (n NoteVariants) IsEmpty() bool {
	return n.Original == nil && n.Translated == nil && n.Sent == nil
}

type Turn struct {
	ID          uuid.UUID        `json:"id"`
	PropertyID  uuid.UUID        `json:"property_id"`
	CleanerID   uuid.UUID        `json:"cleaner_id"`
	ManagerID   *uuid.UUID       `json:"manager_id,omitempty"`
	Status      TurnStatus       `json:"status"`
	PhotoShape  PhotoRecordShape `json:"photo_shape"`
	ManagerNote NoteVariants     `json:"manager_note"`
	CleanerNote NoteVariants     `json:"cleaner_note"`

	StartedAt          time.Time  `json:"started_at"`
	SubmittedAt        *time.Time `json:"submitted_at,omitempty"`
	NeedsFixAt         *time.Time `json:"needs_fix_at,omitempty"`
	LastFixSubmittedAt *time.Time `json:"last_fix_submitted_at,omitempty"`
	ApprovedAt         *time.Time `json:"approved_at,omitempty"`
	ApprovedBy         *uuid.UUID `json:"approved_by,omitempty"`

	Versioned
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Turn) GetID() string { return t.ID.String() }
