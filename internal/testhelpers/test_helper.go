package testhelpers

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/repositories"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

// TestHelper wires the real repositories to a Postgres database for
// integration tests. The schema in migrations/ must already be applied.
type TestHelper struct {
	T   *testing.T
	Ctx context.Context
	DB  *pgxpool.Pool

	CleanerRepo    repositories.CleanerRepository
	ManagerRepo    repositories.ManagerRepository
	PropertyRepo   repositories.PropertyRepository
	AssignmentRepo repositories.AssignmentRepository
	TurnRepo       repositories.TurnRepository
	ChallengeRepo  repositories.OTPChallengeRepository
	RateLimitRepo  repositories.RateLimitRepository
	AttemptRepo    repositories.NotificationAttemptRepository
}

// NewTestHelper connects to TEST_DB_URL and skips the test when it is unset.
func NewTestHelper(t *testing.T) *TestHelper {
	dbURL := os.Getenv("TEST_DB_URL")
	if dbURL == "" {
		t.Skip("TEST_DB_URL not set; skipping database test")
	}

	ctx := context.Background()
	pool, err := pgxpool.Connect(ctx, dbURL)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(func() { pool.Close() })

	return &TestHelper{
		T:              t,
		Ctx:            ctx,
		DB:             pool,
		CleanerRepo:    repositories.NewCleanerRepository(pool),
		ManagerRepo:    repositories.NewManagerRepository(pool),
		PropertyRepo:   repositories.NewPropertyRepository(pool),
		AssignmentRepo: repositories.NewAssignmentRepository(pool),
		TurnRepo:       repositories.NewTurnRepository(pool),
		ChallengeRepo:  repositories.NewOTPChallengeRepository(pool),
		RateLimitRepo:  repositories.NewRateLimitRepository(pool),
		AttemptRepo:    repositories.NewNotificationAttemptRepository(pool),
	}
}

// UniquePhone generates a unique E.164 test number in the 555 range.
func UniquePhone() string {
	return fmt.Sprintf("+1555%07d", rand.New(rand.NewSource(time.Now().UnixNano())).Int31n(1e7))
}

// CreateTestManager inserts a manager with a verified, consenting phone.
func (h *TestHelper) CreateTestManager(orgID uuid.UUID) *models.Manager {
	m := &models.Manager{ID: uuid.New(), OrgID: orgID, DisplayName: "Test Manager"}
	phone := UniquePhone()
	_, err := h.DB.Exec(h.Ctx, `
        INSERT INTO managers (id, org_id, display_name, phone, sms_consent, sms_consent_at, phone_verified_at)
        VALUES ($1,$2,$3,$4,TRUE,NOW(),NOW())
    `, m.ID, m.OrgID, m.DisplayName, phone)
	require.NoError(h.T, err, "Failed to create test manager")

	created, err := h.ManagerRepo.GetByID(h.Ctx, m.ID)
	require.NoError(h.T, err)
	require.NotNil(h.T, created)
	return created
}

// CreateTestCleaner inserts an unverified cleaner with a fresh phone.
func (h *TestHelper) CreateTestCleaner() *models.Cleaner {
	c, err := h.CleanerRepo.CreateIfNotExists(h.Ctx, &models.Cleaner{
		DisplayName: "Test Cleaner",
		SMSContact:  models.SMSContact{Phone: utils.Ptr(UniquePhone())},
	})
	require.NoError(h.T, err, "Failed to create test cleaner")
	require.NotNil(h.T, c)
	return c
}

func (h *TestHelper) CreateTestProperty(m *models.Manager, name string, lat, lng float64) *models.Property {
	id := uuid.New()
	_, err := h.DB.Exec(h.Ctx, `
        INSERT INTO properties (id, org_id, manager_id, name, latitude, longitude)
        VALUES ($1,$2,$3,$4,$5,$6)
    `, id, m.OrgID, m.ID, name, lat, lng)
	require.NoError(h.T, err, "Failed to create test property")

	p, err := h.PropertyRepo.GetByID(h.Ctx, id)
	require.NoError(h.T, err)
	require.NotNil(h.T, p)
	return p
}
