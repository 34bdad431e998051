package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/primebank/guardrail/internal/telemetry"
	"github.com/primebank/guardrail/pkg/guardrail"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("guardrail", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	opts := []guardrail.Option{guardrail.WithLogger(logger)}
	if path := os.Getenv("GUARDRAIL_CONFIG"); path != "" {
		opts = append(opts, guardrail.WithConfigFile(path))
	} else if _, err := os.Stat("config.yaml"); err == nil {
		opts = append(opts, guardrail.WithConfigFile("config.yaml"))
	}

	g, err := guardrail.New(opts...)
	if err != nil {
		log.Fatalf("Failed to create guardrail: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Failed to start guardrail: %v", err)
		}
		return
	case <-sigChan:
		logger.Info("Shutdown signal received, stopping guardrail...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := g.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Guardrail shutdown complete")
}
