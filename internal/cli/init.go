// Package cli wires configuration, storage and services into the khata
// commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"khata/internal/config"
	"khata/internal/log"
)

// LoadEnvFile loads a .env file for local development. With an empty path
// a missing ./.env is ignored, as production sets the environment directly.
func LoadEnvFile(path string) error {
	if path == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// SetupLogger builds the process logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads the environment configuration and the report
// policy it points at.
func LoadAndValidateConfig() (*config.Config, config.ReportPolicy, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, config.ReportPolicy{}, err
	}
	policy, err := config.LoadReportPolicy(cfg.ReportPolicyFile)
	if err != nil {
		return nil, config.ReportPolicy{}, err
	}
	return cfg, policy, nil
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
