package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotifySubmitted NotificationKind = "submitted"
	NotifyFix       NotificationKind = "fix"
	NotifyNeedsFix  NotificationKind = "needs_fix"
	NotifyApproved  NotificationKind = "approved"
)

// RecipientRole is who a notification kind is addressed to.
func (k NotificationKind) RecipientRole() Role {
	switch k {
	case NotifyNeedsFix, NotifyApproved:
		return RoleCleaner
	default:
		return RoleManager
	}
}

func (k NotificationKind) Valid() bool {
	switch k {
	case NotifySubmitted, NotifyFix, NotifyNeedsFix, NotifyApproved:
		return true
	}
	return false
}

// Non-send reasons reported in NotifyResult.Reason.
const (
	ReasonNoRecipient      = "no_recipient"
	ReasonNoPhone          = "no_phone"
	ReasonUnverified       = "unverified"
	ReasonNoConsent        = "no_consent"
	ReasonOptedOut         = "opted_out"
	ReasonSMSNotConfigured = "sms_not_configured"
	ReasonSendFailed       = "send_failed"
	ReasonLookupFailed     = "lookup_failed"
)

type NotificationAttempt struct {
	ID            uuid.UUID        `json:"id"`
	TurnID        uuid.UUID        `json:"turn_id"`
	Kind          NotificationKind `json:"kind"`
	RecipientRole Role             `json:"recipient_role"`
	RecipientID   *uuid.UUID       `json:"recipient_id,omitempty"`
	Sent          bool             `json:"sent"`
	Reason        *string          `json:"reason,omitempty"`
	ProviderID    *string          `json:"provider_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}
