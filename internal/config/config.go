package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr       string
	CORSOrigin string
	JWTSecret  string
	SessionTTL time.Duration
	// Workspace behaviour
	AutoSaveQuiet        time.Duration
	MaxRequestedDiscount int
	WorkspaceTTL         time.Duration
	// Text generation
	LLMProvider string
	LLMAPIKey   string
	LLMModel    string
	LLMBaseURL  string
	LLMTimeout  time.Duration
	// SMTP Configuration
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	// Redis workspace store, empty keeps workspaces in process memory
	RedisURL string
	// S3-compatible export storage, empty disables uploads
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads the environment, after applying a .env file when one is present.
// Variables already set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load(getenv("COPILOT_ENV_FILE", ".env"))
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		Addr:                 getenv("API_ADDR", ":8787"),
		CORSOrigin:           getenv("COPILOT_CORS_ORIGIN", "*"),
		JWTSecret:            getenv("COPILOT_JWT_SECRET", "copilot-dev-secret"),
		SessionTTL:           time.Duration(getenvInt("COPILOT_SESSION_TTL_SECONDS", 43200)) * time.Second,
		AutoSaveQuiet:        time.Duration(getenvInt("COPILOT_AUTOSAVE_QUIET_SECONDS", 8)) * time.Second,
		MaxRequestedDiscount: getenvInt("COPILOT_MAX_REQUESTED_DISCOUNT", 15),
		WorkspaceTTL:         time.Duration(getenvInt("COPILOT_WORKSPACE_TTL_SECONDS", 43200)) * time.Second,
		// LLM_API_KEY falls back to API_KEY, the credential name the browser build used
		LLMProvider: strings.ToLower(getenv("LLM_PROVIDER", "openai")),
		LLMAPIKey:   getenv("LLM_API_KEY", os.Getenv("API_KEY")),
		LLMModel:    getenv("LLM_MODEL", ""),
		LLMBaseURL:  getenv("LLM_BASE_URL", ""),
		LLMTimeout:  time.Duration(getenvInt("LLM_TIMEOUT_SECONDS", 30)) * time.Second,
		// SMTP - empty by default, sends are simulated if not configured
		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenv("SMTP_PORT", "587"),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", ""),
		SMTPFromName: getenv("SMTP_FROM_NAME", "Contoso Dynamics"),
		RedisURL:     getenv("REDIS_URL", ""),
		S3Endpoint:   getenv("S3_ENDPOINT", ""),
		S3AccessKey:  getenv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getenv("S3_SECRET_KEY", ""),
		S3Bucket:     getenv("S3_BUCKET", "proposals"),
		S3UseSSL:     getenvBool("S3_USE_SSL", false),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    getenv("LOG_FORMAT", "json"),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
