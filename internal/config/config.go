package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries every environment-driven setting. Values are read once at
// startup; .env loading happens in main before Load is called.
type Config struct {
	AppHost     string
	DatabaseURL string
	JWTSecret   string

	SchedulerEnabled bool
	TimeZone         string

	SessionCookieAge     time.Duration
	PasswordResetTimeout time.Duration

	EmailHost         string
	EmailPort         int
	EmailHostUser     string
	EmailHostPassword string
	EmailUseTLS       bool
	EmailFrom         string

	SMSGatewayURL string
	SMSAPIKey     string
	SMSSender     string

	GoogleCredentialsJSON string
	GoogleCredentialsFile string
	ReportSpreadsheetID   string

	MetricsEnabled bool
}

func Load() (*Config, error) {
	cfg := &Config{
		AppHost:           getEnv("APP_HOST", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		SchedulerEnabled:  getEnvBool("SCHEDULER_ENABLED", false),
		TimeZone:          getEnv("TIME_ZONE", "Asia/Manila"),
		EmailHost:         os.Getenv("EMAIL_HOST"),
		EmailPort:         getEnvInt("EMAIL_PORT", 587),
		EmailHostUser:     os.Getenv("EMAIL_HOST_USER"),
		EmailHostPassword: os.Getenv("EMAIL_HOST_PASSWORD"),
		EmailUseTLS:       getEnvBool("EMAIL_USE_TLS", true),
		EmailFrom:         getEnv("EMAIL_FROM", os.Getenv("EMAIL_HOST_USER")),
		SMSGatewayURL:     os.Getenv("SMS_GATEWAY_URL"),
		SMSAPIKey:         os.Getenv("SMS_API_KEY"),
		SMSSender:         getEnv("SMS_SENDER", "ResourceHive"),
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),

		GoogleCredentialsJSON: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_JSON"),
		GoogleCredentialsFile: getEnv("GOOGLE_SHEETS_CREDENTIALS_FILE", "configs/google-credentials.json"),
		ReportSpreadsheetID:   os.Getenv("REPORT_SPREADSHEET_ID"),
	}

	cfg.SessionCookieAge = time.Duration(getEnvInt("SESSION_COOKIE_AGE", 86400)) * time.Second
	cfg.PasswordResetTimeout = time.Duration(getEnvInt("PASSWORD_RESET_TIMEOUT", 3600)) * time.Second

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	return cfg, nil
}

// Location resolves the configured IANA zone. All wall-clock comparisons
// (overdue, reminders, reservation windows) use this zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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

func getEnvBool(key string, fallback bool) bool {
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
