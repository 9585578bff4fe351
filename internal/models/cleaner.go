package models

import (
	"time"

	"github.com/google/uuid"
)

type Cleaner struct {
	ID                     uuid.UUID  `json:"id"`
	UserID                 *uuid.UUID `json:"user_id,omitempty"`
	DisplayName            string     `json:"display_name"`
	PreferredLanguage      string     `json:"preferred_language"`
	StripeConnectAccountID *string    `json:"-"`
	SMSContact
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
