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

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cueprotocol/go-passkey/internal/config"
	"github.com/cueprotocol/go-passkey/internal/rest"
	"github.com/cueprotocol/go-passkey/pkg/metrics"
	"github.com/cueprotocol/go-passkey/pkg/passkey"
	"github.com/cueprotocol/go-passkey/pkg/ratelimit"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "/etc/passkey/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("go-passkey server\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	// Check for config file override via environment
	if envConfig := os.Getenv("PASSKEY_CONFIG"); envConfig != "" {
		*configPath = envConfig
	}

	slog.Info("Starting passkey server",
		"config", *configPath,
		"version", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded successfully",
		"rp_id", cfg.RelyingParty.RPID,
		"port", cfg.Server.Port)

	signingKey, err := cfg.LoadSigningKey()
	if err != nil {
		logger.Error("Failed to load signing key", slog.Any("error", err))
		os.Exit(1)
	}
	if signingKey == nil {
		logger.Warn("No signing key configured, generating an ephemeral key; issued tokens will not survive restarts")
		signingKey, err = passkey.GenerateSigningKey()
		if err != nil {
			logger.Error("Failed to generate signing key", slog.Any("error", err))
			os.Exit(1)
		}
	}

	issuer, err := passkey.NewJWTIssuer(signingKey, passkey.TokenConfig{
		Issuer:   cfg.Token.Issuer,
		Audience: cfg.Token.Audience,
		Validity: cfg.Token.Validity,
	})
	if err != nil {
		logger.Error("Failed to create token issuer", slog.Any("error", err))
		os.Exit(1)
	}

	challenges := passkey.NewChallengeStore(cfg.Challenge.TTL, cfg.Challenge.SweepInterval)

	if cfg.Metrics.Enabled {
		metrics.Enable()
		challenges.OnSweep(metrics.RecordSweep)
	} else {
		metrics.Disable()
	}

	svc, err := passkey.NewService(passkey.ServiceParams{
		Config:      &cfg.RelyingParty,
		Users:       passkey.NewInMemoryUserStore(),
		Credentials: passkey.NewInMemoryCredentialStore(),
		Rewards:     passkey.NewInMemoryRewardLedger(cfg.Rewards.BonusAmount),
		Tokens:      issuer,
		Challenges:  challenges,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("Failed to create authentication service", slog.Any("error", err))
		os.Exit(1)
	}
	defer svc.Close()

	limiter := ratelimit.New(&cfg.RateLimit)
	defer limiter.Stop()

	restServer, err := rest.NewServer(&rest.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Service:        svc,
		Keys:           issuer,
		Limiter:        limiter,
		Logger:         logger,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
	})
	if err != nil {
		logger.Error("Failed to create REST server", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownCtx := setupSignalHandler(logger)

	if cfg.Metrics.Enabled {
		collector := metrics.StartResourceCollector(shutdownCtx, 30*time.Second)
		defer collector.Stop()
	}

	errChan := make(chan error, 1)
	go func() {
		if err := restServer.Start(); err != nil {
			errChan <- err
		}
	}()

	logger.Info("Passkey server started successfully", "port", cfg.Server.Port)

	select {
	case <-shutdownCtx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		logger.Error("Server error", slog.Any("error", err))
	}

	shutdownTimeout, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := restServer.Stop(shutdownTimeout); err != nil {
		logger.Error("Error during server shutdown", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Passkey server stopped successfully")
}

// setupSignalHandler sets up signal handling for graceful shutdown
func setupSignalHandler(logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	return ctx
}
