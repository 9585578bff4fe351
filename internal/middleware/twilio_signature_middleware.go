package middleware

import (
	"net/http"
	"strings"

	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

// TwilioSignatureMiddleware rejects webhook calls whose X-Twilio-Signature
// does not match. publicBaseURL is the externally visible origin Twilio
// signed against.
func TwilioSignatureMiddleware(authToken, publicBaseURL string) func(http.Handler) http.Handler {
	validator := twilioclient.NewRequestValidator(authToken)
	base := strings.TrimRight(publicBaseURL, "/")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authToken == "" {
				utils.RespondErrorWithCode(w, http.StatusServiceUnavailable, utils.ErrCodeSMSNotConfigured, "SMS webhook is not configured", nil)
				return
			}
			if err := r.ParseForm(); err != nil {
				utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid form body", nil, err)
				return
			}
			params := make(map[string]string, len(r.PostForm))
			for k, v := range r.PostForm {
				if len(v) > 0 {
					params[k] = v[0]
				}
			}
			if !validator.Validate(base+r.URL.RequestURI(), params, r.Header.Get("X-Twilio-Signature")) {
				utils.RespondErrorWithCode(w, http.StatusForbidden, utils.ErrCodeForbidden, "Invalid webhook signature", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
