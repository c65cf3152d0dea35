package config

import (
	"os"
	"strconv"
	"time"
)

// TenantCredential holds the client credentials for one downstream service.
type TenantCredential struct {
	ClientID     string
	ClientSecret string
	ServiceName  string
}

// Config holds all externally configurable settings. Loaded once at startup
// and passed to constructors explicitly.
type Config struct {
	AppHost string
	AppPort string
	AppEnv  string

	FrontendURL string

	// Service token signing
	SecretKey     string
	TokenTTL      time.Duration
	TokenIssuer   string
	Tenants       []TenantCredential

	// OTP engine
	OTPValidity        time.Duration
	WizardOTPAttempts  int
	DirectOTPAttempts  int

	// Rate limiter
	RateLimitWindow  time.Duration
	MaxOTPPerWindow  int
	BlockDuration    time.Duration
	MinRetryAfter    time.Duration

	// Guest sessions
	SessionTTL      time.Duration
	AuthTempTTL     time.Duration

	// Delivery
	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
	SMTPFrom  string
	SMSAPIURL string
	SMSAPIKey string

	// Intent classification
	GeminiAPIKey string
}

// Load builds a Config from environment variables, applying defaults
// where a value is missing. Call godotenv.Load before this.
func Load() *Config {
	return &Config{
		AppHost:     os.Getenv("APP_HOST"),
		AppPort:     getEnv("APP_PORT", "8000"),
		AppEnv:      getEnv("APP_ENV", "development"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		SecretKey:   getEnv("SECRET_KEY", "thaliya-secret-key-change-in-production"),
		TokenTTL:    getDuration("ACCESS_TOKEN_EXPIRE_HOURS", 24) * time.Hour,
		TokenIssuer: getEnv("TOKEN_ISSUER", "thaliya-auth"),
		Tenants:     loadTenants(),

		OTPValidity:       getDuration("OTP_VALIDITY_MINUTES", 5) * time.Minute,
		WizardOTPAttempts: 1,
		DirectOTPAttempts: getInt("OTP_MAX_ATTEMPTS", 3),

		RateLimitWindow: getDuration("RATE_LIMIT_WINDOW_MINUTES", 60) * time.Minute,
		MaxOTPPerWindow: getInt("RATE_LIMIT_MAX_REQUESTS", 5),
		BlockDuration:   getDuration("RATE_LIMIT_BLOCK_MINUTES", 30) * time.Minute,
		MinRetryAfter:   time.Minute,

		SessionTTL:  getDuration("SESSION_TIMEOUT_MINUTES", 60) * time.Minute,
		AuthTempTTL: getDuration("AUTH_TEMP_EXPIRE_MINUTES", 30) * time.Minute,

		SMTPHost:  os.Getenv("SMTP_HOST"),
		SMTPPort:  getInt("SMTP_PORT", 587),
		SMTPUser:  os.Getenv("SMTP_USER"),
		SMTPPass:  os.Getenv("SMTP_PASS"),
		SMTPFrom:  getEnv("SMTP_FROM", "noreply@thaliya.com"),
		SMSAPIURL: os.Getenv("SMS_API_URL"),
		SMSAPIKey: os.Getenv("SMS_API_KEY"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
	}
}

func loadTenants() []TenantCredential {
	tenants := []struct {
		envPrefix   string
		serviceName string
	}{
		{"ECARE", "ecare"},
		{"GEORGETOWN", "georgetown"},
		{"CHRONIC_CARE_BRIDGE", "chronic_care_bridge"},
		{"ANARCARE", "anarcare"},
	}

	creds := make([]TenantCredential, 0, len(tenants))
	for _, t := range tenants {
		creds = append(creds, TenantCredential{
			ClientID:     getEnv(t.envPrefix+"_CLIENT_ID", t.serviceName+"_client"),
			ClientSecret: getEnv(t.envPrefix+"_CLIENT_SECRET", t.serviceName+"_client_secret"),
			ServiceName:  t.serviceName,
		})
	}
	return creds
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback int) time.Duration {
	return time.Duration(getInt(key, fallback))
}
