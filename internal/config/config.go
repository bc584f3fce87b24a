package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
	BackendRedis    Backend = "redis"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Email    EmailConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string // CORS allowed origins
}

type DatabaseConfig struct {
	URL           string
	Backend       Backend
	MongoDatabase string
}

type AuthConfig struct {
	Secret               []byte
	TokenFormat          string // jwt or paseto
	OTPDigits            int
	VerificationTokenTTL time.Duration
	SessionTokenTTL      time.Duration
	ResetTokenTTL        time.Duration
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	From         string
	FrontendURL  string // base URL for password reset links
}

// Load reads configuration from environment variables, after loading a .env
// file when one exists. Every missing required key is reported at once.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	required := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v
			}
		}
		errs = append(errs, fmt.Errorf("%s is required", keys[0]))
		return ""
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            required("APP_PORT", "PORT"),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			URL:           required("APP_DB"),
			MongoDatabase: getEnv("MONGO_DATABASE", "auth"),
		},
		Auth: AuthConfig{
			Secret:               []byte(required("APP_SECRET")),
			TokenFormat:          strings.ToLower(getEnv("TOKEN_FORMAT", "jwt")),
			OTPDigits:            getIntEnv("OTP_DIGITS", 8),
			VerificationTokenTTL: getDurationEnv("VERIFICATION_TOKEN_TTL", 15*time.Minute),
			SessionTokenTTL:      getDurationEnv("SESSION_TOKEN_TTL", 24*time.Hour),
			ResetTokenTTL:        getDurationEnv("RESET_TOKEN_TTL", 10*time.Hour),
		},
		Email: EmailConfig{
			SMTPHost:     required("SMTP_HOST"),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     required("SMTP_USER"),
			SMTPPassword: required("SMTP_PASS"),
			FrontendURL:  strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		},
	}
	cfg.Email.From = getEnv("SMTP_FROM", cfg.Email.SMTPUser)

	if cfg.Database.URL != "" {
		backend, err := BackendFor(cfg.Database.URL)
		if err != nil {
			errs = append(errs, err)
		}
		cfg.Database.Backend = backend
	}

	switch cfg.Auth.TokenFormat {
	case "jwt", "paseto":
	default:
		errs = append(errs, fmt.Errorf("TOKEN_FORMAT must be jwt or paseto, got %q", cfg.Auth.TokenFormat))
	}

	if cfg.Auth.OTPDigits < 6 || cfg.Auth.OTPDigits > 10 {
		errs = append(errs, fmt.Errorf("OTP_DIGITS must be between 6 and 10, got %d", cfg.Auth.OTPDigits))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// BackendFor picks the account store from the connection string scheme.
func BackendFor(dsn string) (Backend, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("APP_DB is not a valid URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "mongodb", "mongodb+srv":
		return BackendMongo, nil
	case "redis", "rediss":
		return BackendRedis, nil
	default:
		return "", fmt.Errorf("APP_DB scheme %q is not supported", u.Scheme)
	}
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

// Address is the listen address for the HTTP server.
func (c *ServerConfig) Address() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// getDurationEnv reads a whole number of seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
