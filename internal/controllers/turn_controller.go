package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dmeadows001/turn-qa-sub000/internal/config"
	"github.com/dmeadows001/turn-qa-sub000/internal/dtos"
	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/services"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

const uploadFormField = "file"

type TurnController struct {
	turnService    services.TurnService
	storageService services.StorageService
	cfg            *config.Config
}

func NewTurnController(turns services.TurnService, storage services.StorageService, cfg *config.Config) *TurnController {
	return &TurnController{turnService: turns, storageService: storage, cfg: cfg}
}

// StartTurnHandler handles POST /api/v1/turns/start.
func (c *TurnController) StartTurnHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req dtos.StartTurnRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	turn, err := c.turnService.Start(r.Context(), actor, services.StartTurnRequest{
		PropertyID: uuid.MustParse(req.PropertyID),
		CleanerID:  parseOptionalUUID(req.CleanerID),
		Phone:      req.Phone,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.StartTurnResponse{OK: true, TurnID: turn.ID.String()})
}

// GetTurnHandler handles GET /api/v1/turns/{id}.
func (c *TurnController) GetTurnHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	turnID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	detail, err := c.turnService.Get(r.Context(), actor, turnID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, detail)
}

// SubmitTurnHandler handles POST /api/v1/turns/{id}/submit.
func (c *TurnController) SubmitTurnHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	turnID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.SubmitTurnRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := c.turnService.Submit(r.Context(), actor, turnID, photoInputs(req.Photos))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, transitionResponse(res, false))
}

// NeedsFixHandler handles POST /api/v1/turns/{id}/needs-fix.
func (c *TurnController) NeedsFixHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	turnID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.NeedsFixRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	notes := make([]models.PhotoNote, 0, len(req.Photos))
	for _, p := range req.Photos {
		notes = append(notes, models.PhotoNote{
			PhotoID:     parseOptionalUUID(p.PhotoID),
			StoragePath: p.StoragePath,
			Note:        p.Note,
		})
	}

	res, err := c.turnService.FlagNeedsFix(r.Context(), actor, turnID, req.Note, notes)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, transitionResponse(res, true))
}

// SubmitFixHandler handles POST /api/v1/turns/{id}/submit-fix.
func (c *TurnController) SubmitFixHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	turnID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.SubmitFixRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := c.turnService.SubmitFix(r.Context(), actor, turnID, photoInputs(req.Photos), req.CleanerNote)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, transitionResponse(res, false))
}

// ApproveTurnHandler handles POST /api/v1/turns/{id}/approve. An empty body
// approves without a payout amount override.
func (c *TurnController) ApproveTurnHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	turnID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.ApproveRequest
	if r.ContentLength != 0 {
		if !decodeAndValidate(w, r, &req) {
			return
		}
	}

	res, err := c.turnService.Approve(r.Context(), actor, turnID, req.PayoutCents)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := dtos.ApproveResponse{
		OK:        true,
		Status:    res.Turn.Status,
		Payout:    res.Payout,
		SMSResult: res.Notify,
	}
	if res.Payout != nil {
		resp.PayoutOK = res.Payout.OK
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// UploadPhotoHandler handles POST /api/v1/turns/{id}/photos. Accepts a
// multipart form with a "file" part or a raw image body.
func (c *TurnController) UploadPhotoHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	turnID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	limit := c.cfg.MaxPhotoUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile(uploadFormField)
		if err != nil {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Missing file part", nil, err)
			return
		}
		defer file.Close()
		src = file
	}

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			utils.RespondErrorWithCode(w, http.StatusRequestEntityTooLarge, utils.ErrCodeInvalidPayload, "Upload too large", nil, err)
			return
		}
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Failed to read upload", nil, err)
		return
	}
	if int64(len(data)) > limit {
		utils.RespondErrorWithCode(w, http.StatusRequestEntityTooLarge, utils.ErrCodeInvalidPayload, "Upload too large", nil)
		return
	}

	path, err := c.storageService.UploadPhoto(r.Context(), actor, turnID, data)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dtos.UploadPhotoResponse{OK: true, StoragePath: path})
}

func photoInputs(in []dtos.Photo) []services.PhotoInput {
	out := make([]services.PhotoInput, 0, len(in))
	for _, p := range in {
		out = append(out, services.PhotoInput{
			ShotID:      parseOptionalUUID(p.ShotID),
			AreaKey:     p.AreaKey,
			StoragePath: p.StoragePath,
		})
	}
	return out
}

func transitionResponse(res *services.TurnActionResult, withFlagged bool) dtos.TransitionResponse {
	resp := dtos.TransitionResponse{
		OK:           true,
		Status:       res.Turn.Status,
		NotifyResult: res.Notify,
	}
	if withFlagged {
		resp.FlaggedCount = utils.Ptr(res.FlaggedCount)
	}
	return resp
}
