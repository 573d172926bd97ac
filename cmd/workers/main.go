package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"caseflow/casework-backend/internal/config"
	"caseflow/casework-backend/internal/integrity"
)

// Runs the audit-trail integrity sweep on a cron schedule.
func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err))
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	checker := integrity.NewChecker(db, logger)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Integrity.Schedule, func() {
		if _, err := checker.Run(context.Background()); err != nil {
			logger.Error("integrity sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("Invalid integrity schedule", zap.Error(err),
			zap.String("schedule", cfg.Integrity.Schedule))
	}

	logger.Info("Starting integrity worker", zap.String("schedule", cfg.Integrity.Schedule))
	scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Stopping integrity worker")
	<-scheduler.Stop().Done()
}
