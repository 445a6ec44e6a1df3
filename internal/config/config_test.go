// Copyright (c) 2025 Cue Protocol
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@cueprotocol.io for commercial licensing options.

package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cueprotocol/go-passkey/pkg/passkey"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
relying_party:
  id: example.com
  display_name: Example Corp
  origins:
    - https://example.com
`

func TestLoad_Minimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "go-passkey", cfg.Token.Issuer)
	assert.Equal(t, passkey.DefaultTokenValidity, cfg.Token.Validity)
	assert.Equal(t, passkey.DefaultChallengeTTL, cfg.Challenge.TTL)
	assert.Equal(t, int64(100), cfg.Rewards.BonusAmount)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "example.com", cfg.RelyingParty.RPID)
	assert.Equal(t, cfg.Challenge.TTL, cfg.RelyingParty.ChallengeTTL)
}

func TestLoad_FullOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9443
  read_timeout: 5s
logging:
  level: debug
  format: text
relying_party:
  id: example.com
  display_name: Example Corp
  origins:
    - https://example.com
token:
  issuer: auth.example.com
  audience: example.com
  validity: 720h
challenge:
  ttl: 2m
  sweep_interval: 30s
rewards:
  bonus_amount: 250
ratelimit:
  enabled: true
  requests_per_minute: 30
metrics:
  enabled: true
  path: /internal/metrics
`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9443, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "auth.example.com", cfg.Token.Issuer)
	assert.Equal(t, 2*time.Minute, cfg.Challenge.TTL)
	assert.Equal(t, 2*time.Minute, cfg.RelyingParty.ChallengeTTL)
	assert.Equal(t, int64(250), cfg.Rewards.BonusAmount)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "/internal/metrics", cfg.Metrics.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PASSKEY_HOST", "0.0.0.0")
	t.Setenv("PASSKEY_PORT", "9090")
	t.Setenv("PASSKEY_LOG_LEVEL", "warn")
	t.Setenv("PASSKEY_RP_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.RelyingParty.RPOrigins)
}

func TestLoad_InvalidEnvPortFallsBack(t *testing.T) {
	t.Setenv("PASSKEY_PORT", "not-a-port")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)

	t.Setenv("PASSKEY_PORT", "70000")
	cfg, err = Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "bad log level",
			content: minimalConfig + `
logging:
  level: loud
`,
		},
		{
			name: "bad log format",
			content: minimalConfig + `
logging:
  format: xml
`,
		},
		{
			name: "missing rp id",
			content: `
relying_party:
  display_name: Example Corp
  origins:
    - https://example.com
`,
		},
		{
			name: "token validity too short",
			content: minimalConfig + `
token:
  validity: 5s
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := &Config{Logging: LoggingConfig{Level: tt.level}}
		assert.Equal(t, tt.want, cfg.SlogLevel(), "level %q", tt.level)
	}
}

func TestLoadSigningKey(t *testing.T) {
	t.Run("unset returns nil", func(t *testing.T) {
		cfg := &Config{}
		key, err := cfg.LoadSigningKey()
		require.NoError(t, err)
		assert.Nil(t, key)
	})

	t.Run("sec1 key", func(t *testing.T) {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		der, err := x509.MarshalECPrivateKey(key)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "key.pem")
		pemData := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
		require.NoError(t, os.WriteFile(path, pemData, 0o600))

		cfg := &Config{Token: TokenConfig{SigningKeyFile: path}}
		loaded, err := cfg.LoadSigningKey()
		require.NoError(t, err)
		assert.True(t, key.Equal(loaded))
	})

	t.Run("pkcs8 key", func(t *testing.T) {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		der, err := x509.MarshalPKCS8PrivateKey(key)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "key.pem")
		pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
		require.NoError(t, os.WriteFile(path, pemData, 0o600))

		cfg := &Config{Token: TokenConfig{SigningKeyFile: path}}
		loaded, err := cfg.LoadSigningKey()
		require.NoError(t, err)
		assert.True(t, key.Equal(loaded))
	})

	t.Run("not pem", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key.pem")
		require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

		cfg := &Config{Token: TokenConfig{SigningKeyFile: path}}
		_, err := cfg.LoadSigningKey()
		require.Error(t, err)
	})
}
