package config

import (
	"os"
	"strconv"
	"strings"
	"unibox/internal/utils"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Provider *ProviderConfig

	// PublicWebhookURL is the externally visible URL the provider signs
	// inbound callbacks against.
	PublicWebhookURL string
	// WebhookTenantID scopes inbound callbacks: one provider account maps
	// to one tenant.
	WebhookTenantID string

	ScheduleBatchLimit int
}

type ProviderConfig struct {
	AccountSID string
	AuthToken  string
	SMSFrom    string
	WAFrom     string
	BaseURL    string
	// VerifiedNumbers is the trial-mode allow-list. Empty means no
	// restriction.
	VerifiedNumbers []string
}

// NewConfig reads configuration from the environment, loading a .env file
// first when one is present.
func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		PublicWebhookURL:   os.Getenv("PUBLIC_WEBHOOK_URL"),
		WebhookTenantID:    getEnv("WEBHOOK_TENANT_ID", "default"),
		ScheduleBatchLimit: getEnvInt("SCHEDULE_BATCH_LIMIT", 20),
		Provider: &ProviderConfig{
			AccountSID:      os.Getenv("PROVIDER_ACCOUNT_SID"),
			AuthToken:       os.Getenv("PROVIDER_AUTH_TOKEN"),
			SMSFrom:         os.Getenv("PROVIDER_SMS_FROM"),
			WAFrom:          os.Getenv("PROVIDER_WA_FROM"),
			BaseURL:         getEnv("PROVIDER_BASE_URL", "https://api.twilio.com"),
			VerifiedNumbers: splitList(os.Getenv("VERIFIED_NUMBERS")),
		},
	}

	for _, from := range []string{cfg.Provider.SMSFrom, cfg.Provider.WAFrom} {
		if from != "" && !utils.IsE164(strings.TrimPrefix(from, "whatsapp:")) {
			utils.LogWarning("sender number %q is not E.164", from)
		}
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
