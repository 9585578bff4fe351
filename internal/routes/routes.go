package routes

const (
	// Health
	Health = "/health"

	// Phone verification (public)
	OTPSend   = "/api/v1/otp/send"
	OTPVerify = "/api/v1/otp/verify"
	OTPLogout = "/api/v1/otp/logout"

	// Twilio inbound webhook
	SMSInbound = "/api/v1/sms/inbound"

	// Turn lifecycle
	TurnsStart    = "/api/v1/turns/start"
	TurnDetail    = "/api/v1/turns/{id}"
	TurnSubmit    = "/api/v1/turns/{id}/submit"
	TurnNeedsFix  = "/api/v1/turns/{id}/needs-fix"
	TurnSubmitFix = "/api/v1/turns/{id}/submit-fix"
	TurnApprove   = "/api/v1/turns/{id}/approve"
	TurnPhotos    = "/api/v1/turns/{id}/photos"

	StorageSign      = "/api/v1/storage/sign"
	PropertyCleaners = "/api/v1/properties/{id}/cleaners"
)
