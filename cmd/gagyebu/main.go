package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"gagyebu/internal/auth"
	"gagyebu/internal/cli"
	apphttp "gagyebu/internal/http"
	"gagyebu/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		logger.Error("JWT_SECRET is required to serve the API", log.FieldError, err)
		os.Exit(1)
	}

	res := cli.OpenBackend(context.Background(), cfg, logger)
	ledger, cacheManager := cli.BuildLedger(cfg, res, cfg.Vocabulary(), logger)

	opts := []apphttp.Option{apphttp.WithAccounts(cli.BuildAccounts(cfg, res, issuer, logger))}
	if p, ok := res.Store.(interface{ Ping(context.Context) error }); ok {
		opts = append(opts, apphttp.WithReadiness(p.Ping))
	}
	srv := apphttp.NewServer(":"+cfg.Port, ledger, issuer, logger, opts...)
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if cacheManager != nil {
			cacheManager.Stop()
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting gagyebu server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", res.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
