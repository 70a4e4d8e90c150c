package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTH_CONFIG_FILE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "acctly", cfg.Issuer)
	require.Equal(t, "Acctly", cfg.TOTPIssuer)
	require.Equal(t, 24*time.Hour, cfg.SessionTTL)
	require.Equal(t, 10*time.Minute, cfg.EmailCodeTTL)
	require.Equal(t, 5*time.Minute, cfg.VerificationTTL)
	require.Equal(t, 5, cfg.MaxCodeAttempts)
	require.Equal(t, 5, cfg.CredentialLimit)
	require.Equal(t, 8080, cfg.Port)
	require.Empty(t, cfg.RedisAddr)
	require.Empty(t, cfg.SMTP.Host)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acctly.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
issuer = "file-issuer"
email_code_ttl = "15m"
max_code_attempts = 3
credential_rate_limit = 10
cors_origins = ["https://app.example.com"]

[smtp]
host = "smtp.example.com"
port = 465
from = "no-reply@example.com"
implicit_tls = true
`), 0o600))

	t.Setenv("AUTH_CONFIG_FILE", path)
	t.Setenv("AUTH_ISSUER", "env-issuer")
	t.Setenv("AUTH_CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("HOUSEKEEPING_INTERVAL", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "env-issuer", cfg.Issuer)
	require.Equal(t, 15*time.Minute, cfg.EmailCodeTTL)
	require.Equal(t, 3, cfg.MaxCodeAttempts)
	require.Equal(t, 10, cfg.CredentialLimit)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	require.Equal(t, 30*time.Minute, cfg.HousekeepingInterval)
	require.Equal(t, SMTPConfig{
		Host:        "smtp.example.com",
		Port:        465,
		From:        "no-reply@example.com",
		ImplicitTLS: true,
	}, cfg.SMTP)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T)
	}{
		{
			name: "missing file",
			setup: func(t *testing.T) {
				t.Setenv("AUTH_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.toml"))
			},
		},
		{
			name: "malformed file",
			setup: func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "bad.toml")
				require.NoError(t, os.WriteFile(path, []byte("port = [not toml"), 0o600))
				t.Setenv("AUTH_CONFIG_FILE", path)
			},
		},
		{
			name: "smtp host without sender",
			setup: func(t *testing.T) {
				t.Setenv("AUTH_CONFIG_FILE", "")
				t.Setenv("SMTP_HOST", "smtp.example.com")
				t.Setenv("SMTP_FROM", "")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(t)
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestInitAuthKeysPersists(t *testing.T) {
	dir := t.TempDir()
	cfg := defaultConfig()
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.StepUpKeyFile = filepath.Join(dir, "stepup.key")
	cfg.EmailCodeKeyFile = filepath.Join(dir, "email_code.key")
	cfg.SessionKeyFile = filepath.Join(dir, "session.pem")

	first, err := InitAuthKeys(cfg, discardLogger())
	require.NoError(t, err)
	require.True(t, first.KeySet.IsReady())

	hash, err := first.Passwords.HashPassword("s3cret!pw")
	require.NoError(t, err)

	second, err := InitAuthKeys(cfg, discardLogger())
	require.NoError(t, err)
	require.Equal(t, first.Signer.KID(), second.Signer.KID())
	require.NoError(t, second.Passwords.VerifyPassword("s3cret!pw", hash))
	require.Equal(t, first.Codes.Hash("123456"), second.Codes.Hash("123456"))

	info, err := os.Stat(cfg.PepperFile)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }
