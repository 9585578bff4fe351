package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendGridEmailSender struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

// NewSendGridEmailSender returns nil when email is not configured.
func NewSendGridEmailSender(apiKey, fromName, fromEmail string) EmailSender {
	if apiKey == "" || fromEmail == "" {
		return nil
	}
	return &sendGridEmailSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *sendGridEmailSender) SendEmail(ctx context.Context, toEmail, toName, subject, body string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	htmlBody := "<p>" + strings.ReplaceAll(html.EscapeString(body), "\n", "<br>") + "</p>"

	msg := mail.NewSingleEmail(from, subject, to, body, htmlBody)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}
