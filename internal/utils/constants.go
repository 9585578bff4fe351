package utils

const (
	OrganizationName                      = "TurnFlow"
	CORSLowSecurityAllowedOriginLocalhost = "http://localhost:*"

	DefaultPhoneRegion = "US"
)

// FieldSessionCookieName follows the __Host- prefix rule (no Domain, Path=/, Secure).
const FieldSessionCookieName = "__Host-fieldSession"
