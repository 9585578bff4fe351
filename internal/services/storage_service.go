package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmeadows001/turn-qa-sub000/internal/config"
	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

type SignedPhoto struct {
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StorageService signs and stores photos, consulting the guard first.
type StorageService interface {
	SignPhoto(ctx context.Context, actor models.Actor, path string) (*SignedPhoto, error)
	UploadPhoto(ctx context.Context, actor models.Actor, turnID uuid.UUID, data []byte) (string, error)
}

type storageService struct {
	cfg   *config.Config
	guard GuardService
	store ObjectStore
	now   func() time.Time
}

func NewStorageService(cfg *config.Config, guard GuardService, store ObjectStore) StorageService {
	return &storageService{cfg: cfg, guard: guard, store: store, now: time.Now}
}

func (s *storageService) SignPhoto(ctx context.Context, actor models.Actor, path string) (*SignedPhoto, error) {
	d, err := s.guard.AuthorizePath(ctx, actor, path)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		utils.Logger.Debugf("Denied signing %q for %s %s: %s", path, actor.Role, actor.SubjectID, d.Reason)
		return nil, utils.ErrForbidden
	}

	ttl := s.cfg.PhotoURLTTL
	url, err := s.store.SignedURL(ctx, path, ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: sign url: %v", utils.ErrExternalServiceFailure, err)
	}
	return &SignedPhoto{Path: path, URL: url, ExpiresAt: s.now().Add(ttl)}, nil
}

// UploadPhoto stores an image under turns/{turnID}/ and returns its path.
func (s *storageService) UploadPhoto(ctx context.Context, actor models.Actor, turnID uuid.UUID, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty upload", utils.ErrInvalidPayload)
	}
	if int64(len(data)) > s.cfg.MaxPhotoUploadBytes {
		return "", fmt.Errorf("%w: upload exceeds %d bytes", utils.ErrInvalidPayload, s.cfg.MaxPhotoUploadBytes)
	}
	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: unsupported content type %s", utils.ErrInvalidPayload, contentType)
	}

	d, err := s.guard.AuthorizeTurn(ctx, actor, turnID)
	if err != nil {
		return "", err
	}
	if !d.Allowed {
		return "", utils.ErrForbidden
	}

	path := fmt.Sprintf("%s/%s/%s%s", turnPathPrefix, turnID, uuid.NewString(), ext)
	if err := s.store.Put(ctx, path, contentType, data); err != nil {
		return "", fmt.Errorf("%w: put object: %v", utils.ErrExternalServiceFailure, err)
	}
	return path, nil
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}
