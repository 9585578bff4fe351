package dtos

import (
	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/services"
)

type StartTurnRequest struct {
	PropertyID string   `json:"property_id" validate:"required,uuid"`
	CleanerID  *string  `json:"cleaner_id,omitempty" validate:"omitempty,uuid"`
	Phone      string   `json:"phone,omitempty" validate:"omitempty,min=7,max=32"`
	Latitude   *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude  *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

type StartTurnResponse struct {
	OK     bool   `json:"ok"`
	TurnID string `json:"turnId"`
}

type Photo struct {
	ShotID      *string `json:"shot_id,omitempty" validate:"omitempty,uuid"`
	AreaKey     string  `json:"area_key" validate:"max=120"`
	StoragePath string  `json:"storage_path" validate:"required,max=512"`
}

type SubmitTurnRequest struct {
	Photos []Photo `json:"photos" validate:"required,min=1,dive"`
}

type PhotoNote struct {
	PhotoID     *string `json:"photo_id,omitempty" validate:"omitempty,uuid"`
	StoragePath string  `json:"storage_path,omitempty" validate:"required_without=PhotoID,max=512"`
	Note        string  `json:"note" validate:"required,max=2000"`
}

type NeedsFixRequest struct {
	Note   string      `json:"note" validate:"max=4000"`
	Photos []PhotoNote `json:"photos" validate:"dive"`
}

type SubmitFixRequest struct {
	Photos      []Photo `json:"photos" validate:"required,min=1,dive"`
	CleanerNote string  `json:"cleaner_note,omitempty" validate:"max=4000"`
}

type ApproveRequest struct {
	PayoutCents *int64 `json:"payout_cents,omitempty" validate:"omitempty,gte=0"`
}

type TransitionResponse struct {
	OK           bool                   `json:"ok"`
	Status       models.TurnStatus      `json:"status"`
	FlaggedCount *int                   `json:"flaggedCount,omitempty"`
	NotifyResult *services.NotifyResult `json:"notifyResult,omitempty"`
}

type ApproveResponse struct {
	OK        bool                   `json:"ok"`
	Status    models.TurnStatus      `json:"status"`
	PayoutOK  bool                   `json:"payoutOk"`
	Payout    *services.PayoutResult `json:"payout,omitempty"`
	SMSResult *services.NotifyResult `json:"smsResult,omitempty"`
}

type UploadPhotoResponse struct {
	OK          bool   `json:"ok"`
	StoragePath string `json:"storage_path"`
}
