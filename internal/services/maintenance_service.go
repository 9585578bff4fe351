package services

import (
	"context"
	"time"

	"github.com/dmeadows001/turn-qa-sub000/internal/config"
	"github.com/dmeadows001/turn-qa-sub000/internal/repositories"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

type PurgeResult struct {
	Challenges int64
	RateLimits int64
}

// MaintenanceService removes stale OTP challenges and expired counters.
type MaintenanceService interface {
	Purge(ctx context.Context) (*PurgeResult, error)
}

type maintenanceService struct {
	cfg        *config.Config
	challenges repositories.OTPChallengeRepository
	rateLimits repositories.RateLimitRepository
	now        func() time.Time
}

func NewMaintenanceService(
	cfg *config.Config,
	challenges repositories.OTPChallengeRepository,
	rateLimits repositories.RateLimitRepository,
) MaintenanceService {
	return &maintenanceService{cfg: cfg, challenges: challenges, rateLimits: rateLimits, now: time.Now}
}

func (s *maintenanceService) Purge(ctx context.Context) (*PurgeResult, error) {
	res := &PurgeResult{}
	var err error
	res.Challenges, err = s.challenges.PurgeOlderThan(ctx, s.now().Add(-s.cfg.OTPRetention))
	if err != nil {
		return nil, err
	}
	res.RateLimits, err = s.rateLimits.PurgeExpired(ctx)
	if err != nil {
		return nil, err
	}
	utils.Logger.Infof("Purged %d OTP challenges and %d rate-limit rows", res.Challenges, res.RateLimits)
	return res, nil
}
