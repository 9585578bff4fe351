package models

import "time"

// SMSContact is the phone + consent state shared by cleaners and managers.
type SMSContact struct {
	Phone           *string    `json:"phone,omitempty"`
	SMSConsent      bool       `json:"sms_consent"`
	SMSConsentAt    *time.Time `json:"sms_consent_at,omitempty"`
	SMSOptOutAt     *time.Time `json:"sms_opt_out_at,omitempty"`
	PhoneVerifiedAt *time.Time `json:"phone_verified_at,omitempty"`
}

// SMSBlockReason returns "" when a non-administrative message may be sent,
// otherwise the first failing precondition.
func (c SMSContact) SMSBlockReason() string {
	switch {
	case c.Phone == nil || *c.Phone == "":
		return ReasonNoPhone
	case c.SMSOptOutAt != nil:
		return ReasonOptedOut
	case c.PhoneVerifiedAt == nil:
		return ReasonUnverified
	case !c.SMSConsent:
		return ReasonNoConsent
	}
	return ""
}
