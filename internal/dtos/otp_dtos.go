package dtos

import "time"

type SendCodeRequest struct {
	Role        string  `json:"role" validate:"required,oneof=manager cleaner"`
	Phone       string  `json:"phone" validate:"required,min=7,max=32"`
	SubjectID   *string `json:"subject_id,omitempty" validate:"omitempty,uuid4"`
	DisplayName string  `json:"display_name,omitempty" validate:"max=120"`
}

// SendCodeResponse never carries the code itself.
type SendCodeResponse struct {
	OK        bool      `json:"ok"`
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyCodeRequest struct {
	Role      string  `json:"role" validate:"required,oneof=manager cleaner"`
	Phone     string  `json:"phone" validate:"required,min=7,max=32"`
	Code      string  `json:"code" validate:"required,len=6,numeric"`
	SubjectID *string `json:"subject_id,omitempty" validate:"omitempty,uuid4"`
}

type VerifyCodeResponse struct {
	OK        bool   `json:"ok"`
	SubjectID string `json:"subjectId"`
	Role      string `json:"role"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type HealthCheckResponse struct {
	Status string `json:"status"`
}
