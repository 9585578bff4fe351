package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTurnStatusTransitions(t *testing.T) {
	legal := [][2]TurnStatus{
		{TurnStatusInProgress, TurnStatusSubmitted},
		{TurnStatusSubmitted, TurnStatusNeedsFix},
		{TurnStatusNeedsFix, TurnStatusSubmitted},
		{TurnStatusSubmitted, TurnStatusApproved},
		{TurnStatusInProgress, TurnStatusCancelled},
		{TurnStatusNeedsFix, TurnStatusCancelled},
	}
	for _, p := range legal {
		require.True(t, p[0].CanTransitionTo(p[1]), "%s -> %s", p[0], p[1])
	}

	illegal := [][2]TurnStatus{
		{TurnStatusInProgress, TurnStatusApproved},
		{TurnStatusInProgress, TurnStatusNeedsFix},
		{TurnStatusNeedsFix, TurnStatusApproved},
		{TurnStatusApproved, TurnStatusSubmitted},
		{TurnStatusApproved, TurnStatusCancelled},
		{TurnStatusCancelled, TurnStatusInProgress},
		{TurnStatusSubmitted, TurnStatusInProgress},
	}
	for _, p := range illegal {
		require.False(t, p[0].CanTransitionTo(p[1]), "%s -> %s", p[0], p[1])
	}
}

func TestFullReviewPathIsLegal(t *testing.T) {
	path := []TurnStatus{
		TurnStatusInProgress,
		TurnStatusSubmitted,
		TurnStatusNeedsFix,
		TurnStatusSubmitted,
		TurnStatusApproved,
	}
	for i := 1; i < len(path); i++ {
		require.True(t, path[i-1].CanTransitionTo(path[i]))
	}
	require.True(t, TurnStatusApproved.IsTerminal())
	require.True(t, TurnStatusCancelled.IsTerminal())
	require.False(t, TurnStatusNeedsFix.IsTerminal())
}

func TestSMSBlockReason(t *testing.T) {
	phone := "+15551234567"
	now := time.Now()

	require.Equal(t, ReasonNoPhone, SMSContact{}.SMSBlockReason())
	require.Equal(t, ReasonUnverified, SMSContact{Phone: &phone, SMSConsent: true}.SMSBlockReason())
	require.Equal(t, ReasonNoConsent, SMSContact{Phone: &phone, PhoneVerifiedAt: &now}.SMSBlockReason())
	require.Equal(t, ReasonOptedOut, SMSContact{Phone: &phone, PhoneVerifiedAt: &now, SMSConsent: true, SMSOptOutAt: &now}.SMSBlockReason())
	require.Empty(t, SMSContact{Phone: &phone, PhoneVerifiedAt: &now, SMSConsent: true}.SMSBlockReason())
}

func TestNotificationKindRecipient(t *testing.T) {
	require.Equal(t, RoleManager, NotifySubmitted.RecipientRole())
	require.Equal(t, RoleManager, NotifyFix.RecipientRole())
	require.Equal(t, RoleCleaner, NotifyNeedsFix.RecipientRole())
	require.Equal(t, RoleCleaner, NotifyApproved.RecipientRole())
}
