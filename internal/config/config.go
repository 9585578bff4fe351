package config

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	ld "github.com/launchdarkly/go-server-sdk/v7"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"

	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

// Config holds all application configuration, including secrets, flags, etc.
type Config struct {
	OrganizationName string
	AppName          string
	AppPort          string
	AppUrl           string
	DBUrl            string

	// Field session signing keys.
	RSAPrivateKey   *rsa.PrivateKey
	RSAPublicKey    *rsa.PublicKey
	FieldSessionTTL time.Duration

	// Office account tokens are verified against the provider's key.
	IdentityProviderPublicKey *rsa.PublicKey
	IdentityProviderIssuer    string

	TwilioAccountSID   string
	TwilioAuthToken    string
	SendGridAPIKey     string
	StripeSecretKey    string
	OpenAIAPIKey       string
	GCSBucket          string
	GCSCredentialsJSON []byte

	OTPCodeLength            int
	OTPCodeExpiry            time.Duration
	OTPResendInterval        time.Duration
	OTPMaxAttempts           int
	OTPBcryptCost            int
	SMSLimitPerNumberPerHour int
	RateLimitWindow          time.Duration

	PhotoURLTTL          time.Duration
	MaxPhotoUploadBytes  int64
	GeofenceRadiusMeters float64
	DefaultPayoutCents   int64
	OTPRetention         time.Duration
	PurgeSchedule        string
	RequestTimeout       time.Duration

	// Static flags fetched once from LaunchDarkly
	LDFlag_TwilioFromPhone         string
	LDFlag_SendgridFromEmail       string
	LDFlag_ValidatePhoneWithTwilio bool
	LDFlag_TranslateNotes          bool
	LDFlag_EnablePayouts           bool
	LDFlag_EnforceGeofence         bool
	LDFlag_EmailManagerCopies      bool
	LDFlag_CORSHighSecurity        bool
}

const (
	OrganizationName                = utils.OrganizationName
	DefaultFieldSessionTTL          = 30 * 24 * time.Hour
	DefaultOTPCodeLength            = 6
	DefaultOTPCodeExpiry            = 10 * time.Minute
	DefaultOTPResendInterval        = 60 * time.Second
	DefaultOTPMaxAttempts           = 5
	DefaultOTPBcryptCost            = 10
	DefaultSMSLimitPerNumberPerHour = 10
	DefaultRateLimitWindow          = 1 * time.Hour
	DefaultPhotoURLTTL              = 10 * time.Minute
	DefaultMaxPhotoUploadBytes      = 15 << 20
	DefaultGeofenceRadiusMeters     = 500
	DefaultOTPRetention             = 24 * time.Hour
	DefaultPurgeSchedule            = "0 4 * * *"
	DefaultRequestTimeout           = 30 * time.Second
	DefaultIdentityProviderIssuer   = "turnflow-accounts"
	LDConnectionTimeout             = 5 * time.Second
)

// Compile-time overrides via -ldflags.
var (
	AppName             = "turnflow"
	LDServerContextKey  = "turnflow"
	LDServerContextKind = "service"
)

// Default returns a Config with every tunable at its default and no secrets.
func Default() *Config {
	return &Config{
		OrganizationName:         OrganizationName,
		AppName:                  AppName,
		AppPort:                  "8080",
		FieldSessionTTL:          DefaultFieldSessionTTL,
		IdentityProviderIssuer:   DefaultIdentityProviderIssuer,
		OTPCodeLength:            DefaultOTPCodeLength,
		OTPCodeExpiry:            DefaultOTPCodeExpiry,
		OTPResendInterval:        DefaultOTPResendInterval,
		OTPMaxAttempts:           DefaultOTPMaxAttempts,
		OTPBcryptCost:            DefaultOTPBcryptCost,
		SMSLimitPerNumberPerHour: DefaultSMSLimitPerNumberPerHour,
		RateLimitWindow:          DefaultRateLimitWindow,
		PhotoURLTTL:              DefaultPhotoURLTTL,
		MaxPhotoUploadBytes:      DefaultMaxPhotoUploadBytes,
		GeofenceRadiusMeters:     DefaultGeofenceRadiusMeters,
		OTPRetention:             DefaultOTPRetention,
		PurgeSchedule:            DefaultPurgeSchedule,
		RequestTimeout:           DefaultRequestTimeout,
	}
}

// LoadConfig reads .env (if present), the environment, Bitwarden secrets
// when BWS_ACCESS_TOKEN is set and LaunchDarkly flags when LD_SDK_KEY is set.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		utils.Logger.WithError(err).Warn("Failed to load .env file")
	}

	utils.Logger.Info("Loading config for app: ", AppName)
	cfg := Default()

	//----------------------------------------------------------------------
	// Load environment variables.
	//----------------------------------------------------------------------
	env := os.Getenv("ENV")
	if env == "" {
		env = "dev"
	}
	cfg.AppUrl = os.Getenv("APP_URL_FROM_ANYWHERE")
	if cfg.AppUrl == "" {
		utils.Logger.Fatal("APP_URL_FROM_ANYWHERE env var is missing")
	}
	if port := os.Getenv("APP_PORT"); port != "" {
		cfg.AppPort = port
	}
	utils.Logger.Debugf("App can be accessed at: %s", cfg.AppUrl)

	//----------------------------------------------------------------------
	// Secrets: Bitwarden project "<app>-<env>" overlays the environment.
	//----------------------------------------------------------------------
	secrets := map[string]string{}
	if token := os.Getenv("BWS_ACCESS_TOKEN"); token != "" {
		client, err := utils.NewBWSSecretsClient(token, os.Getenv("BWS_ORGANIZATION_ID"))
		if err != nil {
			utils.Logger.WithError(err).Fatal("Failed to initialize BWSSecretsClient")
		}
		project := fmt.Sprintf("%s-%s", AppName, env)
		utils.Logger.Debugf("Fetching app-specific secrets from Bitwarden for %s", project)
		secrets, err = client.GetBWSSecrets(project)
		client.Close()
		if err != nil {
			utils.Logger.WithError(err).Fatal("Failed to fetch app-specific secrets from Bitwarden")
		}
	}
	secret := func(key string) string {
		if v, ok := secrets[key]; ok && v != "" {
			return v
		}
		return os.Getenv(key)
	}
	required := func(key string) string {
		v := secret(key)
		if v == "" {
			utils.Logger.Fatalf("%s not found in secrets or environment", key)
		}
		return v
	}

	cfg.DBUrl = required("DB_URL")
	cfg.GCSBucket = required("GCS_BUCKET")
	cfg.TwilioAccountSID = secret("TWILIO_ACCOUNT_SID")
	cfg.TwilioAuthToken = secret("TWILIO_AUTH_TOKEN")
	cfg.SendGridAPIKey = secret("SENDGRID_API_KEY")
	cfg.StripeSecretKey = secret("STRIPE_SECRET_KEY")
	cfg.OpenAIAPIKey = secret("OPENAI_API_KEY")
	if issuer := secret("IDENTITY_PROVIDER_ISSUER"); issuer != "" {
		cfg.IdentityProviderIssuer = issuer
	}
	if b64 := secret("GCS_CREDENTIALS_JSON_BASE64"); b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			utils.Logger.WithError(err).Fatal("Failed to decode GCS_CREDENTIALS_JSON_BASE64")
		}
		cfg.GCSCredentialsJSON = raw
	}

	var err error
	cfg.RSAPrivateKey, err = ParseRSAPrivateKeyBase64(required("RSA_PRIVATE_KEY_BASE64"))
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to parse RSA_PRIVATE_KEY_BASE64")
	}
	cfg.RSAPublicKey = &cfg.RSAPrivateKey.PublicKey
	cfg.IdentityProviderPublicKey, err = ParseRSAPublicKeyBase64(required("IDENTITY_PROVIDER_PUBLIC_KEY_BASE64"))
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to parse IDENTITY_PROVIDER_PUBLIC_KEY_BASE64")
	}

	cfg.OTPBcryptCost = envInt("OTP_BCRYPT_COST", cfg.OTPBcryptCost)
	cfg.SMSLimitPerNumberPerHour = envInt("SMS_LIMIT_PER_NUMBER_PER_HOUR", cfg.SMSLimitPerNumberPerHour)
	cfg.DefaultPayoutCents = int64(envInt("DEFAULT_PAYOUT_CENTS", 0))
	if sched := os.Getenv("PURGE_SCHEDULE"); sched != "" {
		cfg.PurgeSchedule = sched
	}

	//----------------------------------------------------------------------
	// Flags.
	//----------------------------------------------------------------------
	if ldSDKKey := secret("LD_SDK_KEY"); ldSDKKey != "" {
		loadLDFlags(cfg, ldSDKKey)
	} else {
		utils.Logger.Warn("LD_SDK_KEY not set; reading flags from environment")
		cfg.LDFlag_TwilioFromPhone = os.Getenv("TWILIO_FROM_PHONE")
		cfg.LDFlag_SendgridFromEmail = os.Getenv("SENDGRID_FROM_EMAIL")
		cfg.LDFlag_ValidatePhoneWithTwilio = envBool("VALIDATE_PHONE_WITH_TWILIO", false)
		cfg.LDFlag_TranslateNotes = envBool("TRANSLATE_NOTES", false)
		cfg.LDFlag_EnablePayouts = envBool("ENABLE_PAYOUTS", false)
		cfg.LDFlag_EnforceGeofence = envBool("ENFORCE_GEOFENCE", false)
		cfg.LDFlag_EmailManagerCopies = envBool("EMAIL_MANAGER_COPIES", false)
		cfg.LDFlag_CORSHighSecurity = envBool("CORS_HIGH_SECURITY", false)
	}

	if cfg.TwilioAccountSID == "" || cfg.LDFlag_TwilioFromPhone == "" {
		utils.Logger.Warn("Twilio is not fully configured; SMS sends will be refused")
	}

	return cfg
}

func loadLDFlags(cfg *Config, sdkKey string) {
	ldClient, err := ld.MakeClient(sdkKey, LDConnectionTimeout)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to create LaunchDarkly client")
	}
	defer ldClient.Close()
	if !ldClient.Initialized() {
		utils.Logger.Fatal("LaunchDarkly client failed to initialize")
	}

	context := ldcontext.NewWithKind(ldcontext.Kind(LDServerContextKind), LDServerContextKey)

	str := func(key string) string {
		v, err := ldClient.StringVariation(key, context, "")
		if err != nil {
			utils.Logger.WithError(err).Fatalf("Error retrieving %s flag", key)
		}
		utils.Logger.Debugf("%s flag: %s", key, v)
		return v
	}
	boolean := func(key string) bool {
		v, err := ldClient.BoolVariation(key, context, false)
		if err != nil {
			utils.Logger.WithError(err).Fatalf("Error retrieving %s flag", key)
		}
		utils.Logger.Debugf("%s flag: %t", key, v)
		return v
	}

	cfg.LDFlag_TwilioFromPhone = str("twilio_from_phone")
	cfg.LDFlag_SendgridFromEmail = str("sendgrid_from_email")
	cfg.LDFlag_ValidatePhoneWithTwilio = boolean("validate_phone_with_twilio")
	cfg.LDFlag_TranslateNotes = boolean("translate_notes")
	cfg.LDFlag_EnablePayouts = boolean("enable_payouts")
	cfg.LDFlag_EnforceGeofence = boolean("enforce_geofence")
	cfg.LDFlag_EmailManagerCopies = boolean("email_manager_copies")
	cfg.LDFlag_CORSHighSecurity = boolean("cors_high_security")
}

func ParseRSAPrivateKeyBase64(b64 string) (*rsa.PrivateKey, error) {
	pemBytes, err := decodePEM(b64)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
}

func ParseRSAPublicKeyBase64(b64 string) (*rsa.PublicKey, error) {
	pemBytes, err := decodePEM(b64)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(pemBytes)
}

func decodePEM(b64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if block, _ := pem.Decode(raw); block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	return raw, nil
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		utils.Logger.Warnf("Invalid %s '%s', using %d", key, v, def)
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		utils.Logger.Warnf("Invalid %s '%s', using %t", key, v, def)
		return def
	}
	return b
}
