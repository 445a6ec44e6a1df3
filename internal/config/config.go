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
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cueprotocol/go-passkey/pkg/passkey"
	"github.com/cueprotocol/go-passkey/pkg/ratelimit"
)

// Config represents the complete server configuration
type Config struct {
	Server       ServerConfig        `yaml:"server"`
	Logging      LoggingConfig       `yaml:"logging"`
	RelyingParty passkey.Config      `yaml:"relying_party"`
	Token        TokenConfig         `yaml:"token"`
	Challenge    ChallengeConfig     `yaml:"challenge"`
	Rewards      RewardsConfig       `yaml:"rewards"`
	RateLimit    ratelimit.Config    `yaml:"ratelimit"`
	Metrics      MetricsConfig       `yaml:"metrics"`
}

// ServerConfig contains server-level settings
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TokenConfig controls session token issuance
type TokenConfig struct {
	Issuer   string        `yaml:"issuer"`
	Audience string        `yaml:"audience"`
	Validity time.Duration `yaml:"validity"`

	// SigningKeyFile is a PEM-encoded EC private key. When empty, an
	// ephemeral key is generated at startup and issued tokens do not
	// survive restarts.
	SigningKeyFile string `yaml:"signing_key_file"`
}

// ChallengeConfig controls the challenge store
type ChallengeConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// RewardsConfig controls the registration bonus
type RewardsConfig struct {
	BonusAmount int64 `yaml:"bonus_amount"`
}

// MetricsConfig controls the metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("PASSKEY_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("PASSKEY_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Printf("Warning: invalid PASSKEY_PORT value %q, using default %d: %v",
				portStr, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid PASSKEY_PORT value %q (out of range 1-65535), using default %d",
				portStr, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	if level := os.Getenv("PASSKEY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("PASSKEY_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if rpid := os.Getenv("PASSKEY_RP_ID"); rpid != "" {
		cfg.RelyingParty.RPID = rpid
	}
	if origins := os.Getenv("PASSKEY_RP_ORIGINS"); origins != "" {
		cfg.RelyingParty.RPOrigins = strings.Split(origins, ",")
	}
	if keyFile := os.Getenv("PASSKEY_SIGNING_KEY_FILE"); keyFile != "" {
		cfg.Token.SigningKeyFile = keyFile
	}
}

// SetDefaults fills in default values for unset fields
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Token.Issuer == "" {
		c.Token.Issuer = "go-passkey"
	}
	if c.Token.Audience == "" {
		c.Token.Audience = "go-passkey"
	}
	if c.Token.Validity == 0 {
		c.Token.Validity = passkey.DefaultTokenValidity
	}
	if c.Challenge.TTL == 0 {
		c.Challenge.TTL = passkey.DefaultChallengeTTL
	}
	if c.Challenge.SweepInterval == 0 {
		c.Challenge.SweepInterval = passkey.DefaultSweepInterval
	}
	if c.Rewards.BonusAmount == 0 {
		c.Rewards.BonusAmount = 100
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	c.RelyingParty.ChallengeTTL = c.Challenge.TTL
	c.RelyingParty.SetDefaults()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if err := c.RelyingParty.Validate(); err != nil {
		return fmt.Errorf("relying_party: %w", err)
	}

	if c.Token.Validity < time.Minute {
		return fmt.Errorf("token validity %s is too short", c.Token.Validity)
	}

	return nil
}

// SlogLevel maps the configured level to a slog.Level
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger from the logging configuration
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	var handler slog.Handler
	if strings.ToLower(c.Logging.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// LoadSigningKey loads the PEM-encoded EC private key referenced by the token
// configuration. When no file is configured it returns (nil, nil) and the
// caller generates an ephemeral key.
func (c *Config) LoadSigningKey() (*ecdsa.PrivateKey, error) {
	if c.Token.SigningKeyFile == "" {
		return nil, nil
	}

	// #nosec G304 - Key file path is provided by admin/user
	data, err := os.ReadFile(c.Token.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("signing key file %s contains no PEM block", c.Token.SigningKeyFile)
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse signing key: %w", err)
		}
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("signing key is not an EC key")
		}
		return ecKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}
