package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/agenthands/philograph/internal/app"
	"github.com/agenthands/philograph/internal/config"
	"github.com/agenthands/philograph/internal/logging"
	"github.com/agenthands/philograph/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.WithError(err).Warn("Using default configuration")
		cfg = config.Default()
	}
	if err := config.ApplyOverrides(cfg, config.NewViper()); err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize services")
	}
	defer a.Close(context.Background())

	srv := server.NewServer(a.Knowledge, a.Validation, a.ExtractOptions(), logger)
	if err := srv.Run(ctx, ":"+cfg.Server.Port); err != nil {
		logger.WithError(err).Error("Server stopped with error")
	}
}
