package utils

import (
	"fmt"
	"net/http"
	"time"
)

// SetFieldSessionCookie writes the cleaner session cookie together with the
// security headers every token-bearing response gets.
func SetFieldSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, sameSiteHighSecurity bool) {
	if token == "" {
		return
	}
	sameSite, partitioned := sessionSameSite(sameSiteHighSecurity)
	maxAge := int(ttl.Seconds())
	expires := time.Now().Add(ttl).UTC().Format(http.TimeFormat)

	Logger.Debugf("[cookies] writing %s SameSite=%s Partitioned=%t", FieldSessionCookieName, sameSite, partitioned)
	w.Header().Add("Set-Cookie",
		fmt.Sprintf("%s=%s; Path=/; Max-Age=%d; Expires=%s; SameSite=%s; Secure; HttpOnly; Priority=High%s",
			FieldSessionCookieName, token, maxAge, expires, sameSite, partitionAttr(partitioned)))

	addSecurityHeaders(w)
}

// ClearFieldSessionCookie expires the session cookie (logout).
func ClearFieldSessionCookie(w http.ResponseWriter, sameSiteHighSecurity bool) {
	sameSite, partitioned := sessionSameSite(sameSiteHighSecurity)
	expired := time.Now().Add(-1 * time.Hour).UTC().Format(http.TimeFormat)

	w.Header().Add("Set-Cookie",
		fmt.Sprintf("%s=; Path=/; Expires=%s; Max-Age=0; SameSite=%s; Secure; HttpOnly; Priority=High%s",
			FieldSessionCookieName, expired, sameSite, partitionAttr(partitioned)))

	addSecurityHeaders(w)
}

func sessionSameSite(high bool) (string, bool) {
	if high {
		return "Lax", false
	}
	return "None", true
}

func partitionAttr(on bool) string {
	if on {
		return "; Partitioned"
	}
	return ""
}

func addSecurityHeaders(w http.ResponseWriter) {
	// transport / caching
	w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	// content isolation
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
}
