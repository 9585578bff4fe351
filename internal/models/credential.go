package models

// Credential is the closed set of ways a request can present identity.
// Only the types in this file implement it.
type Credential interface {
	credential()
}

// BearerCredential is an office-account access token from the identity provider.
type BearerCredential struct {
	Token string
}

// FieldSessionCredential is the signed session minted after OTP verification.
type FieldSessionCredential struct {
	Token string
}

// NoCredential means the request carried neither header nor cookie.
type NoCredential struct{}

func (BearerCredential) credential()       {}
func (FieldSessionCredential) credential() {}
func (NoCredential) credential()           {}
