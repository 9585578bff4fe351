package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmeadows001/turn-qa-sub000/internal/config"
	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/testhelpers"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func testRSAKey(t *testing.T) *rsa.PrivateKey {
	testKeyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		testKey = k
	})
	return testKey
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.AppUrl = "https://app.turnflow.test"
	cfg.RSAPrivateKey = testRSAKey(t)
	cfg.RSAPublicKey = &cfg.RSAPrivateKey.PublicKey
	cfg.OTPBcryptCost = 4
	return cfg
}

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

// fixture wires every service to one MemStore, one clock and the gateway fakes.
type fixture struct {
	t       *testing.T
	cfg     *config.Config
	clock   *testhelpers.Clock
	store   *testhelpers.MemStore
	sms     *testhelpers.FakeSMS
	email   *testhelpers.FakeEmailSender
	objects *testhelpers.FakeObjectStore
	payouts *testhelpers.FakePayoutGateway

	sessions      SessionService
	guard         GuardService
	otp           OTPService
	notifications NotificationService
	turns         TurnService
	storage       StorageService
	properties    PropertyService
	optOut        OptOutService
	maintenance   MaintenanceService
}

type fixtureOption func(*fixture)

func withoutSMS() fixtureOption {
	return func(f *fixture) { f.sms = nil }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		cfg:     testConfig(t),
		clock:   testhelpers.NewClock(time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)),
		store:   testhelpers.NewMemStore(),
		sms:     &testhelpers.FakeSMS{},
		email:   &testhelpers.FakeEmailSender{},
		objects: testhelpers.NewFakeObjectStore(),
		payouts: &testhelpers.FakePayoutGateway{},
	}
	for _, o := range opts {
		o(f)
	}
	f.store.Now = f.clock.Now
	f.build()
	return f
}

// build (re)creates the services, e.g. after a test flips a flag on f.cfg.
func (f *fixture) build() {
	t := f.t
	var sms SMSGateway
	if f.sms != nil {
		sms = f.sms
	}

	sessions := NewSessionService(f.cfg)
	sessions.(*sessionService).now = f.clock.Now
	f.sessions = sessions

	f.guard = NewGuardService(f.store.Turns(), f.store.Properties(), f.store.Assignments())

	otp := NewOTPService(f.cfg, f.store.Challenges(), f.store.RateLimits(), f.store.Cleaners(), f.store.Managers(), sessions, sms)
	otp.(*otpService).now = f.clock.Now
	f.otp = otp

	notify, err := NewNotificationService(f.cfg, f.store.Turns(), f.store.Properties(), f.store.Cleaners(), f.store.Managers(), f.store.NotificationAttempts(), sms, f.email)
	require.NoError(t, err)
	notify.(*notificationService).now = f.clock.Now
	f.notifications = notify

	turns := NewTurnService(
		f.cfg,
		f.store.Turns(),
		f.store.Properties(),
		f.store.Assignments(),
		f.store.Cleaners(),
		f.guard,
		notify,
		NewPayoutService(f.cfg, f.store.Cleaners(), f.payouts),
		&testhelpers.FakeTranslator{},
	)
	turns.(*turnService).now = f.clock.Now
	f.turns = turns

	storage := NewStorageService(f.cfg, f.guard, f.objects)
	storage.(*storageService).now = f.clock.Now
	f.storage = storage

	f.properties = NewPropertyService(f.guard, f.store.Cleaners(), f.store.Assignments())

	optOut, err := NewOptOutService(f.cfg, f.store.Cleaners(), f.store.Managers())
	require.NoError(t, err)
	optOut.(*optOutService).now = f.clock.Now
	f.optOut = optOut

	maint := NewMaintenanceService(f.cfg, f.store.Challenges(), f.store.RateLimits())
	maint.(*maintenanceService).now = f.clock.Now
	f.maintenance = maint
}

// world is a typical org: one manager owning one property with one
// assigned cleaner, all with verified, consenting phones.
type world struct {
	org      uuid.UUID
	manager  *models.Manager
	property *models.Property
	cleaner  *models.Cleaner
}

func verifiedContact(phone string, at time.Time) models.SMSContact {
	return models.SMSContact{
		Phone:           utils.Ptr(phone),
		SMSConsent:      true,
		SMSConsentAt:    utils.Ptr(at),
		PhoneVerifiedAt: utils.Ptr(at),
	}
}

func (f *fixture) seedWorld(managerPhone, cleanerPhone string) *world {
	now := f.clock.Now()
	w := &world{org: uuid.New()}
	w.manager = f.store.AddManager(&models.Manager{
		OrgID:       w.org,
		DisplayName: "Maya Manager",
		Email:       "maya@example.com",
		SMSContact:  verifiedContact(managerPhone, now),
	})
	w.property = f.store.AddProperty(&models.Property{
		OrgID:     w.org,
		ManagerID: utils.Ptr(w.manager.ID),
		Name:      "Beach House",
		Latitude:  34.0195,
		Longitude: -118.4912,
	})
	w.cleaner = f.store.AddCleaner(&models.Cleaner{
		DisplayName: "Carl Cleaner",
		SMSContact:  verifiedContact(cleanerPhone, now),
	})
	require.NoError(f.t, f.store.Assignments().Upsert(context.Background(), w.property.ID, w.cleaner.ID))
	return w
}

func managerActor(m *models.Manager) models.Actor {
	return models.Actor{Role: models.RoleManager, SubjectID: m.ID}
}

func cleanerActor(c *models.Cleaner) models.Actor {
	return models.Actor{Role: models.RoleCleaner, SubjectID: c.ID}
}

// lastCode pulls the verification code out of the newest SMS to phone.
func (f *fixture) lastCode(phone string) string {
	body := f.sms.LastBody(phone)
	m := codePattern.FindStringSubmatch(body)
	require.NotNil(f.t, m, "no code in %q", body)
	return m[1]
}
