package main

import (
	"github.com/dmeadows001/turn-qa-sub000/internal/app"
	"github.com/dmeadows001/turn-qa-sub000/internal/repositories"
	"github.com/dmeadows001/turn-qa-sub000/internal/services"
)

type repos struct {
	cleaners      repositories.CleanerRepository
	managers      repositories.ManagerRepository
	properties    repositories.PropertyRepository
	assignments   repositories.AssignmentRepository
	turns         repositories.TurnRepository
	challenges    repositories.OTPChallengeRepository
	rateLimits    repositories.RateLimitRepository
	notifications repositories.NotificationAttemptRepository
}

func newRepos(a *app.App) *repos {
	return &repos{
		cleaners:      repositories.NewCleanerRepository(a.DB),
		managers:      repositories.NewManagerRepository(a.DB),
		properties:    repositories.NewPropertyRepository(a.DB),
		assignments:   repositories.NewAssignmentRepository(a.DB),
		turns:         repositories.NewTurnRepository(a.DB),
		challenges:    repositories.NewOTPChallengeRepository(a.DB),
		rateLimits:    repositories.NewRateLimitRepository(a.DB),
		notifications: repositories.NewNotificationAttemptRepository(a.DB),
	}
}

type serviceSet struct {
	identity services.IdentityService
	otp      services.OTPService
	turns    services.TurnService
	storage  services.StorageService
	property services.PropertyService
	optOut   services.OptOutService
	purge    services.MaintenanceService
}

// newServices builds every service with its external gateways. Gateways
// whose credentials are absent come back nil and the services degrade.
func newServices(a *app.App, r *repos) (*serviceSet, error) {
	cfg := a.Config

	sms := services.NewTwilioSMSGateway(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.LDFlag_TwilioFromPhone)
	email := services.NewSendGridEmailSender(cfg.SendGridAPIKey, cfg.OrganizationName, cfg.LDFlag_SendgridFromEmail)
	translator := services.NewOpenAITranslator(cfg.OpenAIAPIKey)
	payoutGateway := services.NewStripePayoutGateway(cfg.StripeSecretKey)
	idp := services.NewJWTIdentityProvider(cfg.IdentityProviderPublicKey, cfg.IdentityProviderIssuer)

	sessions := services.NewSessionService(cfg)
	guard := services.NewGuardService(r.turns, r.properties, r.assignments)

	notify, err := services.NewNotificationService(cfg, r.turns, r.properties, r.cleaners, r.managers, r.notifications, sms, email)
	if err != nil {
		return nil, err
	}
	optOut, err := services.NewOptOutService(cfg, r.cleaners, r.managers)
	if err != nil {
		return nil, err
	}

	set := &serviceSet{
		identity: services.NewIdentityService(idp, sessions, r.managers, r.cleaners),
		otp:      services.NewOTPService(cfg, r.challenges, r.rateLimits, r.cleaners, r.managers, sessions, sms),
		turns: services.NewTurnService(
			cfg,
			r.turns,
			r.properties,
			r.assignments,
			r.cleaners,
			guard,
			notify,
			services.NewPayoutService(cfg, r.cleaners, payoutGateway),
			translator,
		),
		property: services.NewPropertyService(guard, r.cleaners, r.assignments),
		optOut:   optOut,
		purge:    services.NewMaintenanceService(cfg, r.challenges, r.rateLimits),
	}
	if a.Store != nil {
		set.storage = services.NewStorageService(cfg, guard, a.Store)
	}
	return set, nil
}
