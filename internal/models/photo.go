package models

import (
	"time"

	"github.com/google/uuid"
)

// PhotoRecordShape names the physical photo table a turn's photos live in.
// V1 is the legacy path-keyed table with a single manager note, V2 the
// id-keyed table with fix tracking. A turn never mixes shapes.
type PhotoRecordShape string

const (
	PhotoShapeV1 PhotoRecordShape = "v1"
	PhotoShapeV2 PhotoRecordShape = "v2"
)

func (s PhotoRecordShape) Valid() bool {
	return s == PhotoShapeV1 || s == PhotoShapeV2
}

// TurnPhoto is the logical photo record, independent of shape.
type TurnPhoto struct {
	ID           *uuid.UUID       `json:"id,omitempty"`
	TurnID       uuid.UUID        `json:"turn_id"`
	Shape        PhotoRecordShape `json:"shape"`
	ShotID       *uuid.UUID       `json:"shot_id,omitempty"`
	AreaKey      string           `json:"area_key"`
	StoragePath  string           `json:"storage_path"`
	IsFix        bool             `json:"is_fix"`
	NeedsFix     bool             `json:"needs_fix"`
	ManagerNotes *string          `json:"manager_notes,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// PhotoNote is a manager remark targeted at one photo, addressed either by
// id (V2) or by storage path (both shapes).
type PhotoNote struct {
	PhotoID     *uuid.UUID
	StoragePath string
	Note        string
}
