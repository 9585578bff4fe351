package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

const (
	cleanerPhone = "+14155550101"
	managerPhone = "+14155550199"
)

func TestSendCode_NormalizesAndCreatesCleaner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleCleaner, Phone: "(415) 555-0101", DisplayName: "Dana"})
	require.NoError(t, err)
	assert.Equal(t, cleanerPhone, res.Phone)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), res.ExpiresAt)

	c := f.store.Cleaner(res.SubjectID)
	require.NotNil(t, c)
	assert.Equal(t, "Dana", c.DisplayName)
	assert.Nil(t, c.PhoneVerifiedAt, "cleaner stays unverified until the code is checked")

	msgs := f.sms.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, cleanerPhone, msgs[0].To)
	assert.Regexp(t, `code is \d{6}\.`, msgs[0].Body)

	challenges := f.store.AllChallenges()
	require.Len(t, challenges, 1)
	assert.NotContains(t, challenges[0].CodeHash, f.lastCode(cleanerPhone), "code is stored hashed")
}

func TestSendCode_InvalidPhone(t *testing.T) {
	f := newFixture(t)
	_, err := f.otp.SendCode(context.Background(), SendCodeRequest{Role: models.RoleCleaner, Phone: "12"})
	require.ErrorIs(t, err, utils.ErrInvalidPhone)
	assert.Empty(t, f.sms.Messages())
}

func TestSendCode_ThrottledWithinResendInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := SendCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone}

	_, err := f.otp.SendCode(ctx, req)
	require.NoError(t, err)

	f.clock.Advance(30 * time.Second)
	_, err = f.otp.SendCode(ctx, req)
	require.ErrorIs(t, err, utils.ErrRateLimitExceeded)
	assert.Len(t, f.sms.Messages(), 1)
	assert.Len(t, f.store.AllChallenges(), 1, "a throttled send persists nothing")

	f.clock.Advance(31 * time.Second)
	_, err = f.otp.SendCode(ctx, req)
	require.NoError(t, err)
	assert.Len(t, f.sms.Messages(), 2)
}

func TestSendCode_HourlyCap(t *testing.T) {
	f := newFixture(t)
	f.cfg.SMSLimitPerNumberPerHour = 2
	ctx := context.Background()
	req := SendCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone}

	for i := 0; i < 2; i++ {
		_, err := f.otp.SendCode(ctx, req)
		require.NoError(t, err)
		f.clock.Advance(61 * time.Second)
	}
	_, err := f.otp.SendCode(ctx, req)
	require.ErrorIs(t, err, utils.ErrRateLimitExceeded)
}

func TestSendCode_OptedOutOnEitherTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWorld(managerPhone, cleanerPhone)

	_, err := f.store.Managers().SetOptOut(ctx, managerPhone, f.clock.Now())
	require.NoError(t, err)

	// The manager's opt-out also blocks a cleaner code to the same number.
	_, err = f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleCleaner, Phone: managerPhone})
	require.ErrorIs(t, err, utils.ErrPhoneOptedOut)
	_, err = f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleManager, Phone: managerPhone, SubjectID: &w.manager.ID})
	require.ErrorIs(t, err, utils.ErrPhoneOptedOut)
	assert.Empty(t, f.sms.Messages())
}

func TestSendCode_SMSNotConfigured(t *testing.T) {
	f := newFixture(t, withoutSMS())
	_, err := f.otp.SendCode(context.Background(), SendCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone})
	require.ErrorIs(t, err, utils.ErrSMSNotConfigured)
	assert.Empty(t, f.store.AllChallenges())
	assert.Zero(t, f.store.CleanerCount(), "no subject is created before SMS is known to work")
}

func TestSendCode_GatewayFailureDiscardsChallenge(t *testing.T) {
	f := newFixture(t)
	f.sms.Err = errors.New("twilio down")

	_, err := f.otp.SendCode(context.Background(), SendCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone})
	require.ErrorIs(t, err, utils.ErrExternalServiceFailure)
	assert.Empty(t, f.store.AllChallenges())
}

func TestSendCode_UnknownManager(t *testing.T) {
	f := newFixture(t)
	_, err := f.otp.SendCode(context.Background(), SendCodeRequest{Role: models.RoleManager, Phone: managerPhone})
	require.ErrorIs(t, err, utils.ErrSubjectNotFound)
}

func TestSendCode_SubjectIDWithTakenPhoneUsesOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.store.AddCleaner(&models.Cleaner{DisplayName: "Owner", SMSContact: models.SMSContact{Phone: utils.Ptr(cleanerPhone)}})
	other := f.store.AddCleaner(&models.Cleaner{DisplayName: "Other"})

	res, err := f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, SubjectID: &other.ID})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, res.SubjectID)
}

func TestVerifyCode_SucceedsOnceAndIssuesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone})
	require.NoError(t, err)
	code := f.lastCode(cleanerPhone)

	res, err := f.otp.VerifyCode(ctx, VerifyCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, Code: code})
	require.NoError(t, err)
	assert.Equal(t, sent.SubjectID, res.SubjectID)
	require.NotEmpty(t, res.SessionToken)
	assert.Equal(t, f.clock.Now().Add(f.cfg.FieldSessionTTL), res.SessionExpiresAt)

	fs, err := f.sessions.Parse(res.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, sent.SubjectID, fs.SubjectID)
	assert.Equal(t, models.RoleCleaner, fs.Role)

	c := f.store.Cleaner(sent.SubjectID)
	require.NotNil(t, c.PhoneVerifiedAt)
	assert.True(t, c.SMSConsent)

	_, err = f.otp.VerifyCode(ctx, VerifyCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, Code: code})
	require.ErrorIs(t, err, utils.ErrOTPNotFound, "a code can be redeemed only once")
}

func TestVerifyCode_ManagerGetsNoSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWorld(managerPhone, cleanerPhone)

	_, err := f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleManager, Phone: managerPhone})
	require.NoError(t, err)
	res, err := f.otp.VerifyCode(ctx, VerifyCodeRequest{Role: models.RoleManager, Phone: managerPhone, Code: f.lastCode(managerPhone)})
	require.NoError(t, err)
	assert.Equal(t, w.manager.ID, res.SubjectID)
	assert.Empty(t, res.SessionToken)
}

func TestVerifyCode_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone})
	require.NoError(t, err)
	code := f.lastCode(cleanerPhone)

	f.clock.Advance(11 * time.Minute)
	_, err = f.otp.VerifyCode(ctx, VerifyCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, Code: code})
	require.ErrorIs(t, err, utils.ErrOTPExpired)
}

func TestVerifyCode_WrongCodeCountsAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone})
	require.NoError(t, err)
	code := f.lastCode(cleanerPhone)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < f.cfg.OTPMaxAttempts; i++ {
		_, err = f.otp.VerifyCode(ctx, VerifyCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, Code: wrong})
		require.ErrorIs(t, err, utils.ErrInvalidCode)
	}
	assert.Equal(t, f.cfg.OTPMaxAttempts, f.store.AllChallenges()[0].Attempts)

	_, err = f.otp.VerifyCode(ctx, VerifyCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, Code: code})
	require.ErrorIs(t, err, utils.ErrTooManyAttempts, "even the right code is refused after the limit")
}

func TestVerifyCode_NoChallenge(t *testing.T) {
	f := newFixture(t)
	_, err := f.otp.VerifyCode(context.Background(), VerifyCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, Code: "123456"})
	require.ErrorIs(t, err, utils.ErrOTPNotFound)
}

func TestVerifyCode_OnlyLatestChallengeCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := SendCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone}

	_, err := f.otp.SendCode(ctx, req)
	require.NoError(t, err)
	first := f.lastCode(cleanerPhone)
	f.clock.Advance(61 * time.Second)
	_, err = f.otp.SendCode(ctx, req)
	require.NoError(t, err)
	second := f.lastCode(cleanerPhone)
	if first == second {
		t.Skip("codes collided")
	}

	_, err = f.otp.VerifyCode(ctx, VerifyCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, Code: first})
	require.ErrorIs(t, err, utils.ErrInvalidCode)
	_, err = f.otp.VerifyCode(ctx, VerifyCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, Code: second})
	require.NoError(t, err)
}

func TestSendCode_SubjectIDCannotTakeOverVerifiedCleaner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWorld(managerPhone, cleanerPhone)
	turn, err := f.turns.Start(ctx, cleanerActor(w.cleaner), StartTurnRequest{PropertyID: w.property.ID})
	require.NoError(t, err)

	const strangerPhone = "+14155550177"
	sent, err := f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleCleaner, Phone: strangerPhone, SubjectID: &w.cleaner.ID})
	require.NoError(t, err)
	assert.NotEqual(t, w.cleaner.ID, sent.SubjectID)

	victim := f.store.Cleaner(w.cleaner.ID)
	assert.Equal(t, cleanerPhone, utils.Val(victim.Phone))
	assert.NotNil(t, victim.PhoneVerifiedAt)

	res, err := f.otp.VerifyCode(ctx, VerifyCodeRequest{Role: models.RoleCleaner, Phone: strangerPhone, Code: f.lastCode(strangerPhone), SubjectID: &w.cleaner.ID})
	require.NoError(t, err)
	fs, err := f.sessions.Parse(res.SessionToken)
	require.NoError(t, err)
	assert.NotEqual(t, w.cleaner.ID, fs.SubjectID)

	d, err := f.guard.AuthorizeTurn(ctx, models.Actor{Role: models.RoleCleaner, SubjectID: fs.SubjectID}, turn.ID)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	victim = f.store.Cleaner(w.cleaner.ID)
	assert.Equal(t, cleanerPhone, utils.Val(victim.Phone))
	assert.NotNil(t, victim.PhoneVerifiedAt)
}

func TestSendCode_SubjectIDClaimsPhonelessRowOnVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	row := f.store.AddCleaner(&models.Cleaner{DisplayName: "App Signup"})

	sent, err := f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, SubjectID: &row.ID})
	require.NoError(t, err)
	assert.Equal(t, row.ID, sent.SubjectID)
	assert.Nil(t, f.store.Cleaner(row.ID).Phone, "nothing is written before the code is verified")

	res, err := f.otp.VerifyCode(ctx, VerifyCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, Code: f.lastCode(cleanerPhone)})
	require.NoError(t, err)
	assert.Equal(t, row.ID, res.SubjectID)
	c := f.store.Cleaner(row.ID)
	assert.Equal(t, cleanerPhone, utils.Val(c.Phone))
	assert.NotNil(t, c.PhoneVerifiedAt)
}

func TestVerifyCode_RowClaimedAfterSendIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	row := f.store.AddCleaner(&models.Cleaner{DisplayName: "App Signup"})

	_, err := f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, SubjectID: &row.ID})
	require.NoError(t, err)
	code := f.lastCode(cleanerPhone)

	row.Phone = utils.Ptr("+14155550123")
	f.store.AddCleaner(row)

	_, err = f.otp.VerifyCode(ctx, VerifyCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, Code: code})
	require.ErrorIs(t, err, utils.ErrPhoneClaimed)
	assert.Equal(t, "+14155550123", utils.Val(f.store.Cleaner(row.ID).Phone))
}

func TestVerifyCode_FailedPhoneBindKeepsCodeRedeemable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone})
	require.NoError(t, err)
	code := f.lastCode(cleanerPhone)

	f.store.FailPhoneVerify = errors.New("connection reset")
	_, err = f.otp.VerifyCode(ctx, VerifyCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, Code: code})
	require.Error(t, err)
	assert.Nil(t, f.store.AllChallenges()[0].UsedAt)

	f.store.FailPhoneVerify = nil
	res, err := f.otp.VerifyCode(ctx, VerifyCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone, Code: code})
	require.NoError(t, err)
	assert.Equal(t, sent.SubjectID, res.SubjectID)
	assert.NotEmpty(t, res.SessionToken)
}
