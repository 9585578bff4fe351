package services

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

type twilioSMSGateway struct {
	client    *twilio.RestClient
	fromPhone string
}

// NewTwilioSMSGateway returns nil when the account or sender number is
// missing, which callers treat as "SMS not configured".
func NewTwilioSMSGateway(accountSID, authToken, fromPhone string) SMSGateway {
	if accountSID == "" || authToken == "" || fromPhone == "" {
		return nil
	}
	return &twilioSMSGateway{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		fromPhone: fromPhone,
	}
}

func (g *twilioSMSGateway) SendSMS(ctx context.Context, to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(g.fromPhone)
	params.SetBody(body)

	resp, err := g.client.Api.CreateMessage(params)
	if err != nil {
		utils.Logger.WithError(err).Errorf("Failed to send SMS to %s via Twilio", utils.MaskPhone(to))
		return "", fmt.Errorf("%w: failed to send sms via twilio: %v", utils.ErrExternalServiceFailure, err)
	}
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

func (g *twilioSMSGateway) ValidatePhone(ctx context.Context, e164 string) (bool, error) {
	return utils.ValidatePhoneNumber(ctx, e164, true, g.client)
}
