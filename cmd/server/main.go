package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"catdog-api/internal/config"
	"catdog-api/internal/handlers"
	"catdog-api/internal/middleware"
	"catdog-api/internal/service"
	"catdog-api/pkg/log"
)

func main() {
	// .env is optional outside local development.
	_ = godotenv.Load()

	logger := log.NewLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	classifier := service.New(cfg.ModelPath, logger)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadBytes()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS())

	handler := handlers.New(classifier, cfg, logger)
	handler.Register(router)

	logger.Infof("Model checkpoint: %s", cfg.ModelPath)
	logger.Infof("Server starting on port %s", cfg.Port)

	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
}
