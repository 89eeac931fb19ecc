// Package cli provides the initialization steps shared by cmd/gagyebu,
// cmd/gagyebu-worker and cmd/gagyebu-token.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"gagyebu/internal/auth"
	"gagyebu/internal/backend"
	"gagyebu/internal/cache"
	"gagyebu/internal/config"
	"gagyebu/internal/core"
	"gagyebu/internal/log"
	"gagyebu/internal/services"
)

func init() {
	// JSON renders amounts and rates as numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// SetupLogger builds the application logger from LOG_LEVEL / LOG_FORMAT and
// makes it the slog default.
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

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Exits the process on validation failure.
func LoadAndValidateConfig() (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenBackend creates the configured store and event client.
// Exits the process on failure.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "type", bcfg.Type)
		os.Exit(1)
	}
	return res
}

// BuildLedger wires the ledger service over an opened backend. The returned
// manager, when non-nil, runs cache cleanup and must be stopped on shutdown.
func BuildLedger(cfg *config.Config, res *backend.BackendResult, vocab core.Vocabulary, logger *log.Logger) (*services.LedgerService, *cache.Manager) {
	opts := []services.Option{services.WithLogger(logger)}

	var manager *cache.Manager
	if cfg.CacheSize > 0 {
		lists := cache.NewLRUCache[[]core.Transaction](cfg.CacheSize, cfg.CacheTTL)
		manager = cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
		manager.Register(lists)
		manager.StartCleanup(cfg.CacheTTL)
		opts = append(opts, services.WithCache(lists))
	}
	if res.Events != nil {
		opts = append(opts, services.WithPublisher(res.Events))
	}
	return services.NewLedgerService(res.Store, res.Store, vocab, opts...), manager
}

// BuildAccounts wires signup and login over the backend's user store.
func BuildAccounts(cfg *config.Config, res *backend.BackendResult, issuer *auth.Issuer, logger *log.Logger) *services.AccountService {
	return services.NewAccountService(res.Store, auth.NewHasher(cfg.BcryptCost), issuer, logger)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when cleanup is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
