package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmeadows001/turn-qa-sub000/internal/config"
	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/repositories"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

type SendCodeRequest struct {
	Role        models.Role
	Phone       string
	SubjectID   *uuid.UUID
	DisplayName string
}

type SendCodeResult struct {
	SubjectID uuid.UUID
	Phone     string
	ExpiresAt time.Time
}

type VerifyCodeRequest struct {
	Role      models.Role
	Phone     string
	Code      string
	SubjectID *uuid.UUID
}

type VerifyCodeResult struct {
	SubjectID        uuid.UUID
	Role             models.Role
	Phone            string
	SessionToken     string
	SessionExpiresAt time.Time
}

// OTPService proves phone ownership with short-lived SMS codes.
type OTPService interface {
	SendCode(ctx context.Context, req SendCodeRequest) (*SendCodeResult, error)
	VerifyCode(ctx context.Context, req VerifyCodeRequest) (*VerifyCodeResult, error)
}

type otpService struct {
	cfg        *config.Config
	challenges repositories.OTPChallengeRepository
	rateLimits repositories.RateLimitRepository
	cleaners   repositories.CleanerRepository
	managers   repositories.ManagerRepository
	sessions   SessionService
	sms        SMSGateway
	now        func() time.Time
}

func NewOTPService(
	cfg *config.Config,
	challenges repositories.OTPChallengeRepository,
	rateLimits repositories.RateLimitRepository,
	cleaners repositories.CleanerRepository,
	managers repositories.ManagerRepository,
	sessions SessionService,
	sms SMSGateway,
) OTPService {
	return &otpService{
		cfg:        cfg,
		challenges: challenges,
		rateLimits: rateLimits,
		cleaners:   cleaners,
		managers:   managers,
		sessions:   sessions,
		sms:        sms,
		now:        time.Now,
	}
}

func (s *otpService) SendCode(ctx context.Context, req SendCodeRequest) (*SendCodeResult, error) {
	if !req.Role.Valid() {
		return nil, utils.ErrInvalidPayload
	}
	phone, err := utils.NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	if s.cfg.LDFlag_ValidatePhoneWithTwilio {
		if v, ok := s.sms.(PhoneValidator); ok {
			valid, vErr := v.ValidatePhone(ctx, phone)
			if vErr != nil {
				return nil, fmt.Errorf("%w: phone lookup: %v", utils.ErrExternalServiceFailure, vErr)
			}
			if !valid {
				return nil, utils.ErrInvalidPhone
			}
		}
	}

	optedOut, err := s.isOptedOutAnywhere(ctx, phone)
	if err != nil {
		return nil, err
	}
	if optedOut {
		return nil, utils.ErrPhoneOptedOut
	}

	now := s.now()
	latest, err := s.challenges.GetLatest(ctx, req.Role, phone)
	if err != nil {
		return nil, err
	}
	if latest != nil && now.Sub(latest.CreatedAt) < s.cfg.OTPResendInterval {
		wait := s.cfg.OTPResendInterval - now.Sub(latest.CreatedAt)
		return nil, fmt.Errorf("%w: retry in %ds", utils.ErrRateLimitExceeded, int(wait.Seconds())+1)
	}

	if s.sms == nil {
		return nil, utils.ErrSMSNotConfigured
	}

	allowed, err := s.rateLimits.Hit(ctx, repositories.OTPSendKey(phone), s.cfg.SMSLimitPerNumberPerHour, s.cfg.RateLimitWindow)
	if err != nil {
		return nil, err
	}
	if !allowed {
		utils.Logger.Warnf("Per-phone SMS rate limit exceeded for %s", utils.MaskPhone(phone))
		return nil, utils.ErrRateLimitExceeded
	}

	subjectID, err := s.resolveSubject(ctx, req.Role, phone, req.SubjectID, req.DisplayName)
	if err != nil {
		return nil, err
	}

	code, err := utils.RandomNumericString(s.cfg.OTPCodeLength)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.OTPBcryptCost)
	if err != nil {
		return nil, err
	}

	challenge := &models.OTPChallenge{
		Role:      req.Role,
		SubjectID: &subjectID,
		Phone:     phone,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.cfg.OTPCodeExpiry),
	}
	if err := s.challenges.Create(ctx, challenge); err != nil {
		return nil, err
	}

	body := fmt.Sprintf("Your %s verification code is %s. It expires in %d minutes.",
		s.cfg.OrganizationName, code, int(s.cfg.OTPCodeExpiry.Minutes()))
	if _, err := s.sms.SendSMS(ctx, phone, body); err != nil {
		// Nothing was delivered, so the challenge must not throttle a retry.
		if delErr := s.challenges.Delete(ctx, challenge.ID); delErr != nil {
			utils.Logger.WithError(delErr).Warnf("Failed to discard unsent challenge %s", challenge.ID)
		}
		if errors.Is(err, utils.ErrExternalServiceFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrExternalServiceFailure, err)
	}

	utils.Logger.Infof("Sent %s verification code to %s", req.Role, utils.MaskPhone(phone))
	return &SendCodeResult{SubjectID: subjectID, Phone: phone, ExpiresAt: challenge.ExpiresAt}, nil
}

func (s *otpService) VerifyCode(ctx context.Context, req VerifyCodeRequest) (*VerifyCodeResult, error) {
	if !req.Role.Valid() {
		return nil, utils.ErrInvalidPayload
	}
	phone, err := utils.NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	challenge, err := s.challenges.GetLatest(ctx, req.Role, phone)
	if err != nil {
		return nil, err
	}
	if challenge == nil || challenge.IsUsed() {
		return nil, utils.ErrOTPNotFound
	}
	now := s.now()
	if challenge.IsExpired(now) {
		return nil, utils.ErrOTPExpired
	}
	if challenge.Attempts >= s.cfg.OTPMaxAttempts {
		return nil, utils.ErrTooManyAttempts
	}
	if bcrypt.CompareHashAndPassword([]byte(challenge.CodeHash), []byte(req.Code)) != nil {
		if err := s.challenges.IncrementAttempts(ctx, challenge.ID); err != nil {
			return nil, err
		}
		return nil, utils.ErrInvalidCode
	}

	// The phone decides the subject; a caller-supplied id is only a hint.
	var subjectID uuid.UUID
	switch {
	case challenge.SubjectID != nil:
		subjectID = *challenge.SubjectID
	default:
		subjectID, err = s.resolveSubject(ctx, req.Role, phone, req.SubjectID, "")
		if err != nil {
			return nil, err
		}
	}

	// Bind before consuming so a failed bind leaves the code redeemable.
	if err := s.contacts(req.Role).MarkPhoneVerified(ctx, subjectID, phone, now); err != nil {
		return nil, err
	}

	won, err := s.challenges.MarkUsed(ctx, challenge.ID, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, utils.ErrOTPNotFound
	}

	res := &VerifyCodeResult{SubjectID: subjectID, Role: req.Role, Phone: phone}
	if req.Role == models.RoleCleaner {
		token, exp, err := s.sessions.Issue(subjectID, phone)
		if err != nil {
			return nil, err
		}
		res.SessionToken = token
		res.SessionExpiresAt = exp
	}
	return res, nil
}

func (s *otpService) isOptedOutAnywhere(ctx context.Context, phone string) (bool, error) {
	out, err := s.cleaners.IsOptedOut(ctx, phone)
	if err != nil || out {
		return out, err
	}
	return s.managers.IsOptedOut(ctx, phone)
}

func (s *otpService) contacts(role models.Role) repositories.PhoneContactRepository {
	if role == models.RoleManager {
		return s.managers
	}
	return s.cleaners
}

// resolveSubject finds the row that owns phone for role, creating an
// unverified cleaner when none exists. A supplied subjectID is honored only
// when that row has no phone or already holds this one; nothing is written
// to it until the code is verified.
func (s *otpService) resolveSubject(
	ctx context.Context,
	role models.Role,
	phone string,
	subjectID *uuid.UUID,
	displayName string,
) (uuid.UUID, error) {
	if subjectID != nil {
		err := s.contacts(role).CheckPhoneClaim(ctx, *subjectID, phone)
		switch {
		case err == nil:
			return *subjectID, nil
		case errors.Is(err, utils.ErrPhoneExists):
			utils.Logger.Infof("Phone %s already belongs to another %s; using that row", utils.MaskPhone(phone), role)
		case errors.Is(err, utils.ErrPhoneClaimed):
			utils.Logger.Warnf("%s %s already has a different phone; resolving %s by phone", role, *subjectID, utils.MaskPhone(phone))
		case errors.Is(err, utils.ErrNotFound):
			return uuid.Nil, utils.ErrSubjectNotFound
		default:
			return uuid.Nil, err
		}
	}

	if role == models.RoleManager {
		m, err := s.managers.GetByPhone(ctx, phone)
		if err != nil {
			return uuid.Nil, err
		}
		if m == nil {
			return uuid.Nil, utils.ErrSubjectNotFound
		}
		return m.ID, nil
	}

	c, err := s.cleaners.GetByPhone(ctx, phone)
	if err != nil {
		return uuid.Nil, err
	}
	if c != nil {
		return c.ID, nil
	}
	c, err = s.cleaners.CreateIfNotExists(ctx, &models.Cleaner{
		DisplayName: displayName,
		SMSContact:  models.SMSContact{Phone: utils.Ptr(phone)},
	})
	if err != nil {
		return uuid.Nil, err
	}
	if c == nil {
		return uuid.Nil, fmt.Errorf("cleaner for %s vanished after insert", utils.MaskPhone(phone))
	}
	return c.ID, nil
}
