package services

import (
	"context"
	"time"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
)

// SMSGateway sends one text message and returns the provider's message id.
type SMSGateway interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// ObjectStore is the slice of blob storage the service needs.
type ObjectStore interface {
	Put(ctx context.Context, path, contentType string, data []byte) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// IdentityProvider resolves an office-account bearer token.
type IdentityProvider interface {
	GetUser(ctx context.Context, bearerToken string) (*models.AccountUser, error)
}

type EmailSender interface {
	SendEmail(ctx context.Context, toEmail, toName, subject, body string) error
}

type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// PayoutGateway moves money to a cleaner's connected account.
type PayoutGateway interface {
	Transfer(ctx context.Context, destination string, amountCents int64, idempotencyKey string, metadata map[string]string) (string, error)
}

// PhoneValidator is implemented by SMS gateways that can confirm a number
// is real before a code is sent to it.
type PhoneValidator interface {
	ValidatePhone(ctx context.Context, e164 string) (bool, error)
}
