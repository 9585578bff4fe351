package utils

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
	twilio "github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	lookupsv2 "github.com/twilio/twilio-go/rest/lookups/v2"
)

var e164Regex = regexp.MustCompile(`^\+[1-9]\d{7,14}$`) // ITU-T E.164

func IsE164(number string) bool { return e164Regex.MatchString(number) }

// NormalizePhone parses a user-typed number ("(555) 123-4567", "+1 555…")
// into canonical E.164. Numbers without a country prefix are read in
// DefaultPhoneRegion.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidPhone
	}
	num, err := phonenumbers.Parse(trimmed, DefaultPhoneRegion)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return "", ErrInvalidPhone
	}
	e164 := phonenumbers.Format(num, phonenumbers.E164)
	if !IsE164(e164) {
		return "", ErrInvalidPhone
	}
	return e164, nil
}

// ValidatePhoneNumber confirms an already-normalized number with Twilio
// Lookups V2 when validateWithTwilio is set and a client is available.
// Without remote validation only the E.164 shape is checked.
func ValidatePhoneNumber(
	ctx context.Context,
	number string,
	validateWithTwilio bool,
	tw *twilio.RestClient,
) (bool, error) {
	if !IsE164(number) {
		return false, nil
	}
	if !validateWithTwilio || tw == nil {
		return true, nil
	}

	_, err := tw.LookupsV2.FetchPhoneNumber(number, &lookupsv2.FetchPhoneNumberParams{})
	if err == nil {
		return true, nil
	}
	if restErr, ok := err.(*twilioclient.TwilioRestError); ok {
		if restErr.Status == 404 {
			return false, nil
		}
		return false, fmt.Errorf("twilio lookup failed: %d %s", restErr.Status, restErr.Error())
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	return false, err
}

// MaskPhone keeps the last four digits for log lines.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
