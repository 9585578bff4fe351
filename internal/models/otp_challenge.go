package models

import (
	"time"

	"github.com/google/uuid"
)

type OTPChallenge struct {
	ID        uuid.UUID  `json:"id"`
	Role      Role       `json:"role"`
	SubjectID *uuid.UUID `json:"subject_id,omitempty"`
	Phone     string     `json:"phone"`
	CodeHash  string     `json:"-"`
	Attempts  int        `json:"attempts"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (c *OTPChallenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

func (c *OTPChallenge) IsUsed() bool {
	return c.UsedAt != nil
}

// FieldSession is the decoded content of a cleaner session token.
type FieldSession struct {
	SubjectID uuid.UUID `json:"subject_id"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
