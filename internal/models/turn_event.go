package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TurnAction string

const (
	TurnActionStarted      TurnAction = "STARTED"
	TurnActionSubmitted    TurnAction = "SUBMITTED"
	TurnActionNeedsFix     TurnAction = "NEEDS_FIX"
	TurnActionFixSubmitted TurnAction = "FIX_SUBMITTED"
	TurnActionApproved     TurnAction = "APPROVED"
)

// TurnEvent is an append-only audit record written in the same transaction
// as the transition it describes.
type TurnEvent struct {
	ID        uuid.UUID        `json:"id"`
	TurnID    uuid.UUID        `json:"turn_id"`
	Action    TurnAction       `json:"action"`
	ActorRole Role             `json:"actor_role"`
	ActorID   uuid.UUID        `json:"actor_id"`
	Details   *json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
