//go:build integration

package integration

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/repositories"
	"github.com/dmeadows001/turn-qa-sub000/internal/testhelpers"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

func TestAssignmentUpsertKeepsOneRow(t *testing.T) {
	h := testhelpers.NewTestHelper(t)
	m := h.CreateTestManager(uuid.New())
	p := h.CreateTestProperty(m, "Upsert Loft", 0, 0)
	c := h.CreateTestCleaner()

	for i := 0; i < 3; i++ {
		require.NoError(t, h.AssignmentRepo.Upsert(h.Ctx, p.ID, c.ID))
	}
	list, err := h.AssignmentRepo.ListByProperty(h.Ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].CleanerID)

	ok, err := h.AssignmentRepo.Exists(h.Ctx, p.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTurnTransitionIsConditional(t *testing.T) {
	h := testhelpers.NewTestHelper(t)
	m := h.CreateTestManager(uuid.New())
	p := h.CreateTestProperty(m, "Transition Flat", 0, 0)
	c := h.CreateTestCleaner()

	turn := &models.Turn{
		PropertyID: p.ID,
		CleanerID:  c.ID,
		ManagerID:  &m.ID,
		Status:     models.TurnStatusInProgress,
		StartedAt:  time.Now(),
	}
	require.NoError(t, h.TurnRepo.Create(h.Ctx, turn, &models.TurnEvent{
		Action: models.TurnActionStarted, ActorRole: models.RoleCleaner, ActorID: c.ID,
	}))

	path := "turns/" + turn.ID.String() + "/a.jpg"
	submit := repositories.TurnTransition{
		TurnID:    turn.ID,
		From:      models.TurnStatusInProgress,
		To:        models.TurnStatusSubmitted,
		At:        time.Now(),
		NewPhotos: []*models.TurnPhoto{{AreaKey: "kitchen", StoragePath: path}},
		Event:     &models.TurnEvent{Action: models.TurnActionSubmitted, ActorRole: models.RoleCleaner, ActorID: c.ID},
	}
	res, err := h.TurnRepo.Transition(h.Ctx, submit)
	require.NoError(t, err)
	assert.Equal(t, models.TurnStatusSubmitted, res.Turn.Status)
	assert.NotNil(t, res.Turn.SubmittedAt)
	assert.Equal(t, turn.RowVersion+1, res.Turn.RowVersion)

	// Replaying the same transition must not double-apply.
	_, err = h.TurnRepo.Transition(h.Ctx, submit)
	require.ErrorIs(t, err, utils.ErrWrongStatus)

	photos, err := h.TurnRepo.ListPhotos(h.Ctx, res.Turn)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	require.NotNil(t, photos[0].ID)

	flag, err := h.TurnRepo.Transition(h.Ctx, repositories.TurnTransition{
		TurnID:     turn.ID,
		From:       models.TurnStatusSubmitted,
		To:         models.TurnStatusNeedsFix,
		At:         time.Now(),
		PhotoNotes: []models.PhotoNote{{PhotoID: photos[0].ID, Note: "smudge"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, flag.FlaggedCount)

	var events int
	require.NoError(t, h.DB.QueryRow(h.Ctx, `SELECT COUNT(*) FROM turn_events WHERE turn_id=$1`, turn.ID).Scan(&events))
	assert.Equal(t, 2, events)

	_, err = h.TurnRepo.Transition(h.Ctx, repositories.TurnTransition{
		TurnID: uuid.New(),
		From:   models.TurnStatusSubmitted,
		To:     models.TurnStatusApproved,
		At:     time.Now(),
	})
	require.ErrorIs(t, err, utils.ErrNotFound)
}

func TestConcurrentApprovalsOnlyOneWins(t *testing.T) {
	h := testhelpers.NewTestHelper(t)
	m := h.CreateTestManager(uuid.New())
	p := h.CreateTestProperty(m, "Contention House", 0, 0)
	c := h.CreateTestCleaner()

	turn := &models.Turn{PropertyID: p.ID, CleanerID: c.ID, Status: models.TurnStatusInProgress, StartedAt: time.Now()}
	require.NoError(t, h.TurnRepo.Create(h.Ctx, turn, nil))
	_, err := h.TurnRepo.Transition(h.Ctx, repositories.TurnTransition{
		TurnID: turn.ID, From: models.TurnStatusInProgress, To: models.TurnStatusSubmitted, At: time.Now(),
	})
	require.NoError(t, err)

	const concurrency = 5
	var wins, conflicts int32
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			_, err := h.TurnRepo.Transition(h.Ctx, repositories.TurnTransition{
				TurnID:     turn.ID,
				From:       models.TurnStatusSubmitted,
				To:         models.TurnStatusApproved,
				At:         time.Now(),
				ApprovedBy: &m.ID,
				Event:      &models.TurnEvent{Action: models.TurnActionApproved, ActorRole: models.RoleManager, ActorID: m.ID},
			})
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case assert.ErrorIs(t, err, utils.ErrWrongStatus):
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(concurrency-1), conflicts)

	var approvals int
	require.NoError(t, h.DB.QueryRow(h.Ctx,
		`SELECT COUNT(*) FROM turn_events WHERE turn_id=$1 AND action=$2`, turn.ID, models.TurnActionApproved).Scan(&approvals))
	assert.Equal(t, 1, approvals)
}

func TestOTPChallengeRedeemsOnce(t *testing.T) {
	h := testhelpers.NewTestHelper(t)
	phone := testhelpers.UniquePhone()

	ch := &models.OTPChallenge{
		Role:      models.RoleCleaner,
		Phone:     phone,
		CodeHash:  "hash",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, h.ChallengeRepo.Create(h.Ctx, ch))

	latest, err := h.ChallengeRepo.GetLatest(h.Ctx, models.RoleCleaner, phone)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, ch.ID, latest.ID)

	won, err := h.ChallengeRepo.MarkUsed(h.Ctx, ch.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, won)
	won, err = h.ChallengeRepo.MarkUsed(h.Ctx, ch.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, won)
}

func TestRateLimitWindow(t *testing.T) {
	h := testhelpers.NewTestHelper(t)
	key := repositories.OTPSendKey(testhelpers.UniquePhone())

	for i := 0; i < 3; i++ {
		ok, err := h.RateLimitRepo.Hit(h.Ctx, key, 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := h.RateLimitRepo.Hit(h.Ctx, key, 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOptOutKeepsFirstTimestamp(t *testing.T) {
	h := testhelpers.NewTestHelper(t)
	c := h.CreateTestCleaner()
	phone := *c.Phone

	first := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	n, err := h.CleanerRepo.SetOptOut(h.Ctx, phone, first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = h.CleanerRepo.SetOptOut(h.Ctx, phone, time.Now())
	require.NoError(t, err)

	got, err := h.CleanerRepo.GetByID(h.Ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SMSOptOutAt)
	assert.True(t, first.Equal(*got.SMSOptOutAt))

	out, err := h.CleanerRepo.IsOptedOut(h.Ctx, phone)
	require.NoError(t, err)
	assert.True(t, out)
}

func TestPhoneBindNeverOverwritesAnotherPhone(t *testing.T) {
	h := testhelpers.NewTestHelper(t)
	victim := h.CreateTestCleaner()
	stranger := testhelpers.UniquePhone()

	require.ErrorIs(t, h.CleanerRepo.CheckPhoneClaim(h.Ctx, victim.ID, stranger), utils.ErrPhoneClaimed)
	require.ErrorIs(t, h.CleanerRepo.MarkPhoneVerified(h.Ctx, victim.ID, stranger, time.Now()), utils.ErrPhoneClaimed)
	require.ErrorIs(t, h.CleanerRepo.CheckPhoneClaim(h.Ctx, uuid.New(), stranger), utils.ErrNotFound)

	got, err := h.CleanerRepo.GetByID(h.Ctx, victim.ID)
	require.NoError(t, err)
	assert.Equal(t, *victim.Phone, *got.Phone)

	// Re-verifying the row's own phone is allowed.
	require.NoError(t, h.CleanerRepo.CheckPhoneClaim(h.Ctx, victim.ID, *victim.Phone))
	require.NoError(t, h.CleanerRepo.MarkPhoneVerified(h.Ctx, victim.ID, *victim.Phone, time.Now()))

	other := h.CreateTestCleaner()
	require.ErrorIs(t, h.CleanerRepo.CheckPhoneClaim(h.Ctx, other.ID, *victim.Phone), utils.ErrPhoneExists)
}
