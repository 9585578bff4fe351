package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

func TestProperty_AssignIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWorld(managerPhone, cleanerPhone)
	manager := managerActor(w.manager)

	for i := 0; i < 3; i++ {
		a, err := f.properties.AssignCleaner(ctx, manager, AssignCleanerRequest{PropertyID: w.property.ID, CleanerID: &w.cleaner.ID})
		require.NoError(t, err)
		assert.Equal(t, w.cleaner.ID, a.CleanerID)
	}
	assert.Equal(t, 1, f.store.AssignmentCount(w.property.ID, w.cleaner.ID))

	list, err := f.properties.ListCleaners(ctx, manager, w.property.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestProperty_AssignByPhoneCreatesCleanerOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWorld(managerPhone, cleanerPhone)
	before := f.store.CleanerCount()

	a1, err := f.properties.AssignCleaner(ctx, managerActor(w.manager), AssignCleanerRequest{
		PropertyID: w.property.ID, Phone: "415 555 0111", DisplayName: "New Hire",
	})
	require.NoError(t, err)
	a2, err := f.properties.AssignCleaner(ctx, managerActor(w.manager), AssignCleanerRequest{
		PropertyID: w.property.ID, Phone: "+14155550111",
	})
	require.NoError(t, err)

	assert.Equal(t, a1.CleanerID, a2.CleanerID)
	assert.Equal(t, before+1, f.store.CleanerCount())
	hire := f.store.Cleaner(a1.CleanerID)
	assert.Equal(t, "New Hire", hire.DisplayName)
	assert.Equal(t, models.ReasonUnverified, hire.SMSBlockReason())

	// The assignment alone lets them start.
	_, err = f.turns.Start(ctx, cleanerActor(hire), StartTurnRequest{PropertyID: w.property.ID})
	require.NoError(t, err)
}

func TestProperty_OnlyOwnerManagerMayAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWorld(managerPhone, cleanerPhone)
	other := f.seedWorld("+14155550198", "+14155550102")

	_, err := f.properties.AssignCleaner(ctx, managerActor(other.manager), AssignCleanerRequest{PropertyID: w.property.ID, CleanerID: &other.cleaner.ID})
	require.ErrorIs(t, err, utils.ErrForbidden)
	_, err = f.properties.AssignCleaner(ctx, cleanerActor(w.cleaner), AssignCleanerRequest{PropertyID: w.property.ID, CleanerID: &w.cleaner.ID})
	require.ErrorIs(t, err, utils.ErrForbidden)
	_, err = f.properties.ListCleaners(ctx, cleanerActor(w.cleaner), w.property.ID)
	require.ErrorIs(t, err, utils.ErrForbidden)
	assert.Zero(t, f.store.AssignmentCount(w.property.ID, other.cleaner.ID))
}

func TestProperty_AssignValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWorld(managerPhone, cleanerPhone)
	manager := managerActor(w.manager)

	_, err := f.properties.AssignCleaner(ctx, manager, AssignCleanerRequest{PropertyID: w.property.ID})
	require.ErrorIs(t, err, utils.ErrInvalidPayload)
	_, err = f.properties.AssignCleaner(ctx, manager, AssignCleanerRequest{PropertyID: w.property.ID, Phone: "abc"})
	require.ErrorIs(t, err, utils.ErrInvalidPhone)
	missing := uuid.New()
	_, err = f.properties.AssignCleaner(ctx, manager, AssignCleanerRequest{PropertyID: w.property.ID, CleanerID: &missing})
	require.ErrorIs(t, err, utils.ErrSubjectNotFound)
}

func TestMaintenance_Purge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone})
	require.NoError(t, err)
	f.clock.Advance(24*time.Hour + 30*time.Minute)
	_, err = f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleCleaner, Phone: "+14155550102"})
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)
	res, err := f.maintenance.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Challenges)
	assert.Equal(t, int64(1), res.RateLimits, "only the first phone's hourly window has lapsed")
	assert.Len(t, f.store.AllChallenges(), 1)
}
