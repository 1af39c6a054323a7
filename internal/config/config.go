package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	// Grading / certificates
	PassingScorePercent float64 // default passing threshold when an exam omits one
	TemplatePath        string  // PNG background for rendered certificates
	StorageRoot         string  // base dir for the blob store (certificate PDFs)

	AuthHMACSecret string
	TokenTTLHours  int

	CORSOrigins []string

	// Outbound mail (fire-and-forget certificate notifications)
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	EmailEnabled bool
}

// FromEnv loads .env (if present) and builds the runtime configuration.
// Services receive this struct at construction; nothing reads the
// environment after startup.
func FromEnv() Config {
	_ = godotenv.Load()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:  addr,
		PublicURL: os.Getenv("PUBLIC_URL"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		PassingScorePercent: envFloat("PASSING_SCORE_PERCENT", 70),
		TemplatePath:        envOr("CERT_TEMPLATE_PATH", "./static/certificate_templates/certificate_template.png"),
		StorageRoot:         envOr("STORAGE_ROOT", "./data"),

		AuthHMACSecret: envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		TokenTTLHours:  envInt("TOKEN_TTL_HOURS", 8),

		CORSOrigins: []string{envOr("CORS_ORIGIN", "http://localhost:3000")},

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     envOr("SMTP_PORT", "587"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     envOr("SMTP_FROM", "no-reply@openlearn.local"),
		EmailEnabled: envBool("EMAIL_ENABLED", false),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return v
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil && v > 0 {
		return v
	}
	return def
}
