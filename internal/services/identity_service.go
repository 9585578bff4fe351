package services

import (
	"context"
	"fmt"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/repositories"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

// IdentityService turns a request credential into an Actor. It never writes.
type IdentityService interface {
	Resolve(ctx context.Context, cred models.Credential) (*models.Actor, error)
}

type identityService struct {
	idp      IdentityProvider
	sessions SessionService
	managers repositories.ManagerRepository
	cleaners repositories.CleanerRepository
}

func NewIdentityService(
	idp IdentityProvider,
	sessions SessionService,
	managers repositories.ManagerRepository,
	cleaners repositories.CleanerRepository,
) IdentityService {
	return &identityService{
		idp:      idp,
		sessions: sessions,
		managers: managers,
		cleaners: cleaners,
	}
}

func (s *identityService) Resolve(ctx context.Context, cred models.Credential) (*models.Actor, error) {
	switch c := cred.(type) {
	case models.BearerCredential:
		return s.resolveBearer(ctx, c.Token)
	case models.FieldSessionCredential:
		fs, err := s.sessions.Parse(c.Token)
		if err != nil {
			return nil, err
		}
		return &models.Actor{Role: fs.Role, SubjectID: fs.SubjectID}, nil
	case models.NoCredential, nil:
		return nil, utils.ErrUnauthenticated
	default:
		return nil, fmt.Errorf("%w: unsupported credential %T", utils.ErrUnauthenticated, cred)
	}
}

func (s *identityService) resolveBearer(ctx context.Context, token string) (*models.Actor, error) {
	if s.idp == nil {
		return nil, fmt.Errorf("%w: identity provider not configured", utils.ErrUnauthenticated)
	}
	user, err := s.idp.GetUser(ctx, token)
	if err != nil {
		return nil, err
	}

	mgr, err := s.managers.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if mgr != nil {
		return &models.Actor{Role: models.RoleManager, SubjectID: mgr.ID}, nil
	}

	cl, err := s.cleaners.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if cl != nil {
		return &models.Actor{Role: models.RoleCleaner, SubjectID: cl.ID}, nil
	}

	utils.Logger.Warnf("Account %s has no manager or cleaner row", user.ID)
	return nil, utils.ErrNoRole
}
