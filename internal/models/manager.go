package models

import (
	"time"

	"github.com/google/uuid"
)

type Manager struct {
	ID          uuid.UUID  `json:"id"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	OrgID       uuid.UUID  `json:"org_id"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email"`
	SMSContact
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
