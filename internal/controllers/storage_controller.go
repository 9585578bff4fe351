package controllers

import (
	"net/http"
	"time"

	"github.com/dmeadows001/turn-qa-sub000/internal/dtos"
	"github.com/dmeadows001/turn-qa-sub000/internal/services"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

type StorageController struct {
	storageService services.StorageService
}

func NewStorageController(storage services.StorageService) *StorageController {
	return &StorageController{storageService: storage}
}

// SignPhotoHandler handles POST /api/v1/storage/sign.
func (c *StorageController) SignPhotoHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req dtos.SignPhotoRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	signed, err := c.storageService.SignPhoto(r.Context(), actor, req.Path)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.SignPhotoResponse{
		URL:       signed.URL,
		ExpiresAt: signed.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
