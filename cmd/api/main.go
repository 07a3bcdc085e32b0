package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-manager/app"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	rt, err := app.Build(app.Options{LoadDotEnv: true})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	logger := rt.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%s", rt.Config.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           rt.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server_start", map[string]any{"addr": addr, "env": rt.Config.Env})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown_requested", nil)
	case runErr = <-serveErr:
		if runErr != nil {
			logger.Error("server_failed", map[string]any{"error": runErr.Error()})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server_shutdown_incomplete", map[string]any{"error": err.Error()})
	}
	if err := rt.Close(); err != nil {
		logger.Error("close_failed", map[string]any{"error": err.Error()})
	}

	logger.Info("server_stopped", nil)
	return runErr
}
