package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the ZielManager backend.
type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	AllowedOrigins []string

	MongoURI string
	DBName   string

	JWTSecret   string
	TokenExpiry time.Duration

	// AppURL is the frontend base URL used to build links in emails.
	AppURL string

	SMTP  SMTPConfig
	Redis RedisConfig
	S3    S3Config

	WeeklyReminderCron string
	ReviewDeadline     Deadline
}

type SMTPConfig struct {
	Host     string
	Port     int
	Secure   bool
	User     string
	Password string
	From     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type S3Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// Deadline is a calendar date without a year. The review deadline recurs
// every year on this date.
type Deadline struct {
	Month time.Month
	Day   int
}

// Next returns the next occurrence of the deadline at or after now, at
// midnight in now's location.
func (d Deadline) Next(now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	next := time.Date(now.Year(), d.Month, d.Day, 0, 0, 0, 0, now.Location())
	if next.Before(today) {
		next = next.AddDate(1, 0, 0)
	}
	return next
}

// ParseDeadline parses a "MM-DD" string.
func ParseDeadline(s string) (Deadline, error) {
	t, err := time.Parse("01-02", strings.TrimSpace(s))
	if err != nil {
		return Deadline{}, fmt.Errorf("invalid deadline %q, expected MM-DD: %w", s, err)
	}
	return Deadline{Month: t.Month(), Day: t.Day()}, nil
}

// LoadConfig reads configuration from the environment. A .env file is loaded
// first when present; it never overrides variables that are already set.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "3000"),
		Environment:        strings.ToLower(getEnv("ENVIRONMENT", "development")),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigins:     splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:             getEnv("DB_NAME", "zielmanager"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AppURL:             strings.TrimRight(getEnv("APP_URL", "http://localhost:5173"), "/"),
		WeeklyReminderCron: getEnv("WEEKLY_REMINDER_CRON", "0 8 * * 1"),
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		S3: S3Config{
			Bucket:    getEnv("S3_BUCKET", "zielmanager-evidence"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Region:    getEnv("S3_REGION", "eu-central-1"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	var err error
	if cfg.TokenExpiry, err = time.ParseDuration(getEnv("TOKEN_EXPIRY", "24h")); err != nil {
		return nil, fmt.Errorf("invalid TOKEN_EXPIRY: %w", err)
	}
	if cfg.SMTP.Port, err = strconv.Atoi(getEnv("SMTP_PORT", "587")); err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	if cfg.SMTP.Secure, err = strconv.ParseBool(getEnv("SMTP_SECURE", "false")); err != nil {
		return nil, fmt.Errorf("invalid SMTP_SECURE: %w", err)
	}
	if cfg.Redis.DB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.ReviewDeadline, err = ParseDeadline(getEnv("REVIEW_DEADLINE", "12-31")); err != nil {
		return nil, err
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.User
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
