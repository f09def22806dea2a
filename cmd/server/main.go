package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/config"
	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/server"
)

func main() {
	envFile := flag.String("env", ".env", "Environment file to load if present")
	port := flag.String("port", "", "Server port (overrides PORT)")
	project := flag.String("project", "", "Stored project to open at startup (overrides SESSION_PROJECT)")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load %s: %v", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *project != "" {
		cfg.Session.Project = *project
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
	}
	logger.Info("Shutting down gracefully...")
	if err := srv.Close(); err != nil {
		os.Exit(1)
	}
}
