package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

func TestParseKeyword(t *testing.T) {
	cases := map[string]KeywordAction{
		"STOP":        KeywordStop,
		"  stop \n":   KeywordStop,
		"Unsubscribe": KeywordStop,
		"start":       KeywordStart,
		"UNSTOP":      KeywordStart,
		"help":        KeywordHelp,
		"please stop": KeywordNone,
		"thanks!":     KeywordNone,
		"":            KeywordNone,
	}
	for body, want := range cases {
		assert.Equal(t, want, ParseKeyword(body), "%q", body)
	}
}

func TestOptOut_StopIsIdempotentAndKeepsFirstTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWorld(managerPhone, cleanerPhone)
	first := f.clock.Now()

	res, err := f.optOut.HandleInbound(ctx, cleanerPhone, "STOP")
	require.NoError(t, err)
	assert.Equal(t, KeywordStop, res.Action)
	assert.Equal(t, int64(1), res.RowsChanged)
	assert.Contains(t, res.Reply, "unsubscribed")

	f.clock.Advance(time.Hour)
	_, err = f.optOut.HandleInbound(ctx, cleanerPhone, "stop")
	require.NoError(t, err)

	c := f.store.Cleaner(w.cleaner.ID)
	require.NotNil(t, c.SMSOptOutAt)
	assert.Equal(t, first, *c.SMSOptOutAt)
	assert.Equal(t, models.ReasonOptedOut, c.SMSBlockReason())

	// An opted-out phone cannot even request a login code.
	_, err = f.otp.SendCode(ctx, SendCodeRequest{Role: models.RoleCleaner, Phone: cleanerPhone})
	require.ErrorIs(t, err, utils.ErrPhoneOptedOut)
}

func TestOptOut_StopCoversBothTables(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Same person is both a manager and a cleaner.
	w := f.seedWorld(managerPhone, "+14155550103")
	dual := f.store.AddCleaner(&models.Cleaner{DisplayName: "Dual", SMSContact: verifiedContact(managerPhone, f.clock.Now())})

	res, err := f.optOut.HandleInbound(ctx, "(415) 555-0199", "STOP")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsChanged)
	assert.NotNil(t, f.store.Manager(w.manager.ID).SMSOptOutAt)
	assert.NotNil(t, f.store.Cleaner(dual.ID).SMSOptOutAt)
}

func TestOptOut_StartClearsAndRestoresConsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWorld(managerPhone, cleanerPhone)

	_, err := f.optOut.HandleInbound(ctx, cleanerPhone, "STOP")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	res, err := f.optOut.HandleInbound(ctx, cleanerPhone, "START")
	require.NoError(t, err)
	assert.Equal(t, KeywordStart, res.Action)
	assert.Contains(t, res.Reply, "resubscribed")

	c := f.store.Cleaner(w.cleaner.ID)
	assert.Nil(t, c.SMSOptOutAt)
	assert.True(t, c.SMSConsent)
	assert.Equal(t, f.clock.Now(), *c.SMSConsentAt)
	assert.Empty(t, c.SMSBlockReason())
}

func TestOptOut_HelpAndChatter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWorld(managerPhone, cleanerPhone)

	res, err := f.optOut.HandleInbound(ctx, cleanerPhone, "HELP")
	require.NoError(t, err)
	assert.Equal(t, KeywordHelp, res.Action)
	assert.Contains(t, res.Reply, "Reply STOP to unsubscribe")
	assert.Zero(t, res.RowsChanged)

	res, err = f.optOut.HandleInbound(ctx, cleanerPhone, "running late")
	require.NoError(t, err)
	assert.Equal(t, KeywordNone, res.Action)
	assert.Empty(t, res.Reply)
	assert.Nil(t, f.store.Cleaner(w.cleaner.ID).SMSOptOutAt)
}

func TestOptOut_UnknownNumber(t *testing.T) {
	f := newFixture(t)
	res, err := f.optOut.HandleInbound(context.Background(), "+14155550177", "STOP")
	require.NoError(t, err)
	assert.Zero(t, res.RowsChanged)
	assert.NotEmpty(t, res.Reply)
}
