package controllers

import (
	"net/http"

	"github.com/dmeadows001/turn-qa-sub000/internal/dtos"
	"github.com/dmeadows001/turn-qa-sub000/internal/services"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

type PropertyController struct {
	propertyService services.PropertyService
}

func NewPropertyController(properties services.PropertyService) *PropertyController {
	return &PropertyController{propertyService: properties}
}

// AssignCleanerHandler handles POST /api/v1/properties/{id}/cleaners.
func (c *PropertyController) AssignCleanerHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	propertyID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.AssignCleanerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	a, err := c.propertyService.AssignCleaner(r.Context(), actor, services.AssignCleanerRequest{
		PropertyID:  propertyID,
		CleanerID:   parseOptionalUUID(req.CleanerID),
		Phone:       req.Phone,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.AssignCleanerResponse{
		OK:         true,
		PropertyID: a.PropertyID.String(),
		CleanerID:  a.CleanerID.String(),
	})
}

// ListCleanersHandler handles GET /api/v1/properties/{id}/cleaners.
func (c *PropertyController) ListCleanersHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	propertyID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	list, err := c.propertyService.ListCleaners(r.Context(), actor, propertyID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}
