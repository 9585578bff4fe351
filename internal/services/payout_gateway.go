package services

import (
	"context"

	"github.com/stripe/stripe-go/v82"
)

type stripePayoutGateway struct {
	client *stripe.Client
}

// NewStripePayoutGateway returns nil when no secret key is configured.
func NewStripePayoutGateway(secretKey string) PayoutGateway {
	if secretKey == "" {
		return nil
	}
	return &stripePayoutGateway{client: stripe.NewClient(secretKey)}
}

func (g *stripePayoutGateway) Transfer(
	ctx context.Context,
	destination string,
	amountCents int64,
	idempotencyKey string,
	metadata map[string]string,
) (string, error) {
	params := &stripe.TransferCreateParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(destination),
		Metadata:    metadata,
	}
	params.SetIdempotencyKey(idempotencyKey)

	tr, err := g.client.V1Transfers.Create(ctx, params)
	if err != nil {
		return "", err
	}
	return tr.ID, nil
}
