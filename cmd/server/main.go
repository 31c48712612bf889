package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Marc-We/Meldeliste/internal/adapters"
	"github.com/Marc-We/Meldeliste/internal/config"
	"github.com/Marc-We/Meldeliste/internal/core"
	"github.com/Marc-We/Meldeliste/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	kv, err := store.OpenKV(cfg.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer kv.Close()

	blobs, err := store.NewBlobDir(cfg.UploadPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open blob dir")
	}

	registry := core.NewRegistry()
	sessions := core.NewSessionManager(registry, kv, blobs)

	r := adapters.SetupRouter(ctx, cfg, sessions)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Meldeliste server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
