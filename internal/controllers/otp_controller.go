package controllers

import (
	"net/http"

	"github.com/dmeadows001/turn-qa-sub000/internal/config"
	"github.com/dmeadows001/turn-qa-sub000/internal/dtos"
	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/services"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

type OTPController struct {
	otpService services.OTPService
	cfg        *config.Config
}

func NewOTPController(otp services.OTPService, cfg *config.Config) *OTPController {
	return &OTPController{otpService: otp, cfg: cfg}
}

// SendCodeHandler handles POST /api/v1/otp/send.
func (c *OTPController) SendCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.SendCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := c.otpService.SendCode(r.Context(), services.SendCodeRequest{
		Role:        models.Role(req.Role),
		Phone:       req.Phone,
		SubjectID:   parseOptionalUUID(req.SubjectID),
		DisplayName: req.DisplayName,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.SendCodeResponse{OK: true, ExpiresAt: res.ExpiresAt})
}

// VerifyCodeHandler handles POST /api/v1/otp/verify. Cleaners get their
// field session as an HttpOnly cookie, never in the body.
func (c *OTPController) VerifyCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.VerifyCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := c.otpService.VerifyCode(r.Context(), services.VerifyCodeRequest{
		Role:      models.Role(req.Role),
		Phone:     req.Phone,
		Code:      req.Code,
		SubjectID: parseOptionalUUID(req.SubjectID),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if res.SessionToken != "" {
		utils.SetFieldSessionCookie(w, res.SessionToken, c.cfg.FieldSessionTTL, c.cfg.LDFlag_CORSHighSecurity)
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.VerifyCodeResponse{
		OK:        true,
		SubjectID: res.SubjectID.String(),
		Role:      string(res.Role),
	})
}

// LogoutHandler handles POST /api/v1/otp/logout.
func (c *OTPController) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	utils.ClearFieldSessionCookie(w, c.cfg.LDFlag_CORSHighSecurity)
	utils.RespondWithJSON(w, http.StatusOK, dtos.OKResponse{OK: true})
}
