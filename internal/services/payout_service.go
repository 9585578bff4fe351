package services

import (
	"context"
	"fmt"

	"github.com/dmeadows001/turn-qa-sub000/internal/config"
	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/repositories"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

const (
	PayoutReasonNotRequested  = "not_requested"
	PayoutReasonDisabled      = "payouts_disabled"
	PayoutReasonNotConfigured = "payout_not_configured"
	PayoutReasonNoAccount     = "no_connected_account"
	PayoutReasonLookupFailed  = "lookup_failed"
	PayoutReasonTransferError = "transfer_failed"
)

type PayoutResult struct {
	Requested   bool   `json:"requested"`
	OK          bool   `json:"ok"`
	Reason      string `json:"reason,omitempty"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	TransferID  string `json:"transfer_id,omitempty"`
}

// PayoutService pays a cleaner for an approved turn. Failures are reported,
// never returned, because the approval has already committed.
type PayoutService interface {
	PayTurn(ctx context.Context, turn *models.Turn, amountCents *int64) *PayoutResult
}

type payoutService struct {
	cfg      *config.Config
	cleaners repositories.CleanerRepository
	gateway  PayoutGateway
}

func NewPayoutService(cfg *config.Config, cleaners repositories.CleanerRepository, gateway PayoutGateway) PayoutService {
	return &payoutService{cfg: cfg, cleaners: cleaners, gateway: gateway}
}

func (s *payoutService) PayTurn(ctx context.Context, turn *models.Turn, amountCents *int64) *PayoutResult {
	amount := s.cfg.DefaultPayoutCents
	if amountCents != nil {
		amount = *amountCents
	}
	if amount <= 0 {
		return &PayoutResult{Reason: PayoutReasonNotRequested}
	}
	res := &PayoutResult{Requested: true, AmountCents: amount}

	switch {
	case !s.cfg.LDFlag_EnablePayouts:
		res.Reason = PayoutReasonDisabled
		return res
	case s.gateway == nil:
		res.Reason = PayoutReasonNotConfigured
		return res
	}

	cleaner, err := s.cleaners.GetByID(ctx, turn.CleanerID)
	if err != nil {
		utils.Logger.WithError(err).Warnf("Payout for turn %s: cleaner lookup failed", turn.ID)
		res.Reason = PayoutReasonLookupFailed
		return res
	}
	if cleaner == nil || utils.Val(cleaner.StripeConnectAccountID) == "" {
		res.Reason = PayoutReasonNoAccount
		return res
	}

	transferID, err := s.gateway.Transfer(ctx,
		*cleaner.StripeConnectAccountID,
		amount,
		fmt.Sprintf("turn-%s-approval", turn.ID),
		map[string]string{
			"turn_id":    turn.ID.String(),
			"cleaner_id": cleaner.ID.String(),
		},
	)
	if err != nil {
		utils.Logger.WithError(err).Warnf("Payout transfer for turn %s failed", turn.ID)
		res.Reason = PayoutReasonTransferError
		return res
	}

	utils.Logger.Infof("Created transfer %s for turn %s ($%.2f)", transferID, turn.ID, float64(amount)/100.0)
	res.OK = true
	res.TransferID = transferID
	return res
}
