package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

// twilioSignature reproduces the provider's scheme: HMAC-SHA1 over the URL
// followed by every POST param sorted by name.
func twilioSignature(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestTwilioSignatureMiddleware(t *testing.T) {
	const token = "auth-token"
	const base = "https://app.turnflow.test"
	h := TwilioSignatureMiddleware(token, base+"/")(http.HandlerFunc(okHandler))
	form := url.Values{"From": {"+14155550101"}, "Body": {"STOP"}}

	newReq := func(sig string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sms/inbound", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if sig != "" {
			req.Header.Set("X-Twilio-Signature", sig)
		}
		return req
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newReq(twilioSignature(token, base+"/api/v1/sms/inbound", form)))
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, newReq(twilioSignature("wrong-token", base+"/api/v1/sms/inbound", form)))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, newReq(""))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestTwilioSignatureMiddleware_Unconfigured(t *testing.T) {
	h := TwilioSignatureMiddleware("", "https://app.turnflow.test")(http.HandlerFunc(okHandler))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sms/inbound", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

type stubIdentity struct {
	actor *models.Actor
	err   error
	seen  models.Credential
}

func (s *stubIdentity) Resolve(_ context.Context, cred models.Credential) (*models.Actor, error) {
	s.seen = cred
	return s.actor, s.err
}

func TestExtractCredential(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, models.NoCredential{}, ExtractCredential(req))

	req.AddCookie(&http.Cookie{Name: utils.FieldSessionCookieName, Value: "sess"})
	assert.Equal(t, models.FieldSessionCredential{Token: "sess"}, ExtractCredential(req))

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, models.BearerCredential{Token: "abc"}, ExtractCredential(req), "the header wins over the cookie")

	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, models.FieldSessionCredential{Token: "sess"}, ExtractCredential(req))
}

func TestIdentityMiddleware(t *testing.T) {
	actor := models.Actor{Role: models.RoleCleaner, SubjectID: uuid.New()}

	var got models.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		got = a
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	IdentityMiddleware(&stubIdentity{actor: &actor})(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, actor, got)

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{utils.ErrTokenExpired, http.StatusUnauthorized, utils.ErrCodeTokenExpired},
		{fmt.Errorf("%w: bad sig", utils.ErrUnauthenticated), http.StatusUnauthorized, utils.ErrCodeUnauthorized},
		{utils.ErrNoRole, http.StatusForbidden, utils.ErrCodeNoRole},
		{fmt.Errorf("db down"), http.StatusInternalServerError, utils.ErrCodeInternal},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		IdentityMiddleware(&stubIdentity{err: tc.err})(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())
		assert.Contains(t, rr.Body.String(), `"code":"`+tc.code+`"`)
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := TimeoutMiddleware(2 * time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	start := time.Now()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, ok)
	assert.WithinDuration(t, start.Add(2*time.Second), deadline, time.Second)
}
