package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vendmart/server/internal/api"
	"github.com/vendmart/server/internal/config"
	"github.com/vendmart/server/internal/observability/metrics"
	"github.com/vendmart/server/internal/repository"
	"github.com/vendmart/server/internal/service"
	"github.com/vendmart/server/internal/utils"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	logger := utils.NewLogger()

	// Set up database connection and run migrations
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to set up database: %v", err)
	}
	defer db.Close()

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create service
	svc := service.NewDefaultService(repo, cfg.Auth.JWTSecret, logger)

	// Create API handler
	handler := api.NewHandler(svc)

	// Set up Gin router
	router := gin.Default()
	router.Use(metrics.HTTPMetricsMiddleware())

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("starting server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
