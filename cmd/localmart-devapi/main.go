/*
Package main is the entry point for the LocalMart dev API server.

It serves an in-memory implementation of the marketplace REST API and the chat
sockets, so the client can be exercised end to end without the production backend.
It loads configuration, initializes logging, starts the chat hub and shuts down
gracefully on SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"localmart/internal/app/hub"
	"localmart/internal/app/market"
	"localmart/internal/app/storage"
	"localmart/internal/configs"
	"localmart/internal/handler"
	"localmart/internal/pkg/clock"
	"localmart/internal/pkg/logx"
)

func main() {
	if err := configs.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	cfg, err := configs.LoadServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := market.NewStore(clock.Real())
	manager := hub.NewManager(store)

	deps := &handler.AppDeps{
		Config:  cfg,
		Store:   store,
		Manager: manager,
		Media:   storage.NewMemoryService(),
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler.Router(ctx, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("LocalMart dev API starting on http://localhost%s/api", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	manager.Shutdown()

	logx.Info("Server gracefully stopped.")
}
