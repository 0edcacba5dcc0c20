package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/hubmirror/internal/auth"
	"github.com/erauner12/hubmirror/internal/db"
	"github.com/erauner12/hubmirror/internal/github"
	"github.com/erauner12/hubmirror/internal/httpapi"
	"github.com/erauner12/hubmirror/internal/jobs"
	"github.com/erauner12/hubmirror/internal/store/pgstore"
)

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	// Configure structured logging
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "hubmirror").Logger()

	// Pretty logging for local dev
	if env("ENV", "dev") == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx := context.Background()

	pgURL := env("DATABASE_URL", "")
	if pgURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	pool, err := db.Open(ctx, pgURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if err := pgstore.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure schema")
	}

	gh, err := github.New(
		env("GITHUB_API_URL", "https://api.github.com"),
		github.StaticTokenSource(env("GITHUB_TOKEN", "")),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build upstream client")
	}

	queue := jobs.NewPool(envInt("SYNC_WORKERS", jobs.DefaultWorkers), log.Logger)

	srv := httpapi.NewServer(pgstore.New(pool), gh, queue, log.Logger)

	jwtCfg := auth.Config{
		HS256Secret: env("JWT_HS256_SECRET", "dev-secret-change-in-production"),
		DevMode:     env("AUTH_DEV_MODE", "") == "true",
	}

	httpAddr := env("HTTP_ADDR", ":8081")
	httpServer := &http.Server{
		Addr:         httpAddr,
		Handler:      srv.Routes(jwtCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", httpAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("worker pool shutdown error")
	}

	log.Info().Msg("server stopped")
}
