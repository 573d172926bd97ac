package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"caseflow/casework-backend/internal/auth"
	"caseflow/casework-backend/internal/cases"
	"caseflow/casework-backend/internal/config"
	"caseflow/casework-backend/internal/directory"
	"caseflow/casework-backend/internal/labels"
	"caseflow/casework-backend/internal/predicates"
	"caseflow/casework-backend/internal/statemachine"
)

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

	logger := newLogger(cfg.Logger.Level)
	defer logger.Sync()

	gormDB, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(&cases.Case{}, &cases.CaseTransition{}); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	sqlxDB, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlxDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	defer sqlxDB.Close()

	dir := directory.NewRepository(sqlxDB)

	registry := statemachine.NewRegistry()
	predicates.Register(registry, dir, logger)

	configs, err := statemachine.NewLoader(registry).LoadDir(cfg.Workflows.ConfigDir)
	if err != nil {
		logger.Fatal("Failed to load workflow configuration", zap.Error(err))
	}
	translator, err := labels.Load(cfg.Workflows.LabelsPath)
	if err != nil {
		logger.Fatal("Failed to load event labels", zap.Error(err))
	}

	caseRepo := cases.NewRepository(gormDB)
	caseService := cases.NewService(caseRepo, dir, configs, registry, translator, logger)
	caseHandler := cases.NewHandler(caseService, logger)

	authService := auth.NewService(dir, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authHandler := auth.NewHandler(authService, logger)

	router := gin.Default()
	auth.RegisterRoutes(router, authHandler)

	api := router.Group("/api/v1")
	api.Use(auth.Middleware(authService))
	caseHandler.RegisterRoutes(api)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API alive!"})
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
