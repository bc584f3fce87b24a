package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"APP_PORT", "PORT", "APP_DB", "APP_SECRET", "APP_ENV",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "SMTP_FROM",
	"FRONTEND_URL", "TOKEN_FORMAT", "OTP_DIGITS",
	"VERIFICATION_TOKEN_TTL", "SESSION_TOKEN_TTL", "RESET_TOKEN_TTL",
	"MONGO_DATABASE", "TRUSTED_ORIGINS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_PORT", "8080")
	t.Setenv("APP_DB", "mongodb://localhost:27017")
	t.Setenv("APP_SECRET", "s3cret")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USER", "mailer@example.com")
	t.Setenv("SMTP_PASS", "pw")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Server.Address())
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, BackendMongo, cfg.Database.Backend)
	assert.Equal(t, "auth", cfg.Database.MongoDatabase)
	assert.Equal(t, []byte("s3cret"), cfg.Auth.Secret)
	assert.Equal(t, "jwt", cfg.Auth.TokenFormat)
	assert.Equal(t, 8, cfg.Auth.OTPDigits)
	assert.Equal(t, 15*time.Minute, cfg.Auth.VerificationTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTokenTTL)
	assert.Equal(t, 10*time.Hour, cfg.Auth.ResetTokenTTL)
	assert.Equal(t, "587", cfg.Email.SMTPPort)
	assert.Equal(t, "mailer@example.com", cfg.Email.From)
}

func TestLoad_MissingRequiredReportsAll(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)

	for _, key := range []string{"APP_PORT", "APP_DB", "APP_SECRET", "SMTP_HOST", "SMTP_USER", "SMTP_PASS"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoad_PortFallback(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("APP_PORT", "")
	t.Setenv("PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("TOKEN_FORMAT", "PASETO")
	t.Setenv("OTP_DIGITS", "6")
	t.Setenv("SESSION_TOKEN_TTL", "3600")
	t.Setenv("FRONTEND_URL", "https://app.example.com/")
	t.Setenv("TRUSTED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "paseto", cfg.Auth.TokenFormat)
	assert.Equal(t, 6, cfg.Auth.OTPDigits)
	assert.Equal(t, time.Hour, cfg.Auth.SessionTokenTTL)
	assert.Equal(t, "https://app.example.com", cfg.Email.FrontendURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.TrustedOrigins)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"TOKEN_FORMAT", "saml", "TOKEN_FORMAT"},
		{"OTP_DIGITS", "4", "OTP_DIGITS"},
		{"APP_DB", "mysql://localhost/db", "not supported"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBackendFor(t *testing.T) {
	tests := map[string]Backend{
		"postgres://u:p@localhost:5432/db?sslmode=disable": BackendPostgres,
		"postgresql://localhost/db":                        BackendPostgres,
		"mongodb://localhost:27017":                        BackendMongo,
		"mongodb+srv://cluster.example.net/auth":           BackendMongo,
		"redis://localhost:6379/0":                         BackendRedis,
		"rediss://cache.example.net:6380":                  BackendRedis,
	}

	for dsn, want := range tests {
		got, err := BackendFor(dsn)
		require.NoError(t, err, dsn)
		assert.Equal(t, want, got, dsn)
	}

	_, err := BackendFor("sqlite:///tmp/db")
	assert.Error(t, err)
}
