// Package cli wires configuration, logging, the backing store and the
// ledger together, and exposes them as cobra commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"budget/internal/amqp"
	"budget/internal/backend"
	"budget/internal/config"
	"budget/internal/ledger"
	applog "budget/internal/log"
)

// SetupLogger builds the application logger from the configured level and
// format and makes it the slog default.
func SetupLogger(cfg *config.Config, out io.Writer) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: applog.ComponentCLI,
		Output:    out,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from path (optional) and the
// environment, then validates it.
func LoadAndValidateConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenLedger creates the configured backend and restores the ledger from
// it. The caller must Close the returned backend.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts ...ledger.Option) (*ledger.Ledger, *backend.BackendResult, ledger.LoadResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, ledger.LoadResult{}, err
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, ledger.LoadResult{}, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}

	opts = append([]ledger.Option{ledger.WithLogger(logger.WithComponent(applog.ComponentLedger).Slog())}, opts...)
	l, load := ledger.Open(ctx, res.Store, opts...)
	logger.DebugContext(ctx, "Ledger opened",
		applog.FieldBackend, bcfg.Type.String(),
		applog.FieldRecords, load.Records,
		"outcome", load.Outcome)
	return l, res, load, nil
}

// ConnectEvents dials the AMQP broker when one is configured. It returns
// nil without error when amqp_url is empty.
func ConnectEvents(cfg *config.Config, logger *applog.Logger) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey,
		logger.WithComponent(applog.ComponentAMQP).Slog())
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to AMQP broker",
		"exchange", cfg.AMQPExchange,
		"routing_key", cfg.AMQPRoutingKey)
	return client, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. The
// returned stop function releases the signal handler.
func GracefulShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
