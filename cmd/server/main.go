package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"birdwatch/internal/api"
	"birdwatch/internal/api/middleware"
	"birdwatch/internal/app/service"
	"birdwatch/internal/app/session"
	"birdwatch/internal/common/security"
	"birdwatch/internal/domain/repository"
	"birdwatch/internal/platform/cache"
	"birdwatch/internal/platform/config"
	"birdwatch/internal/platform/database"
	"birdwatch/internal/platform/ebird"
)

func main() {
	// 1. Load Configuration
	config.Load()
	fmt.Println("Configuration loaded.")

	if config.AppConfig.EBirdAPIKey == "" {
		log.Println("WARNING: EBIRD_API_KEY is not set; observation queries will fail with a config error")
	}

	// 2. Initialize JWT
	security.InitJWT()
	fmt.Println("JWT initialized.")

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	database.Migrate()
	fmt.Println("Database connected.")

	// 4. Initialize Redis (session registry)
	cache.ConnectRedis()
	defer cache.CloseRedis()
	fmt.Println("Redis connected.")

	// 5. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	favRepo := repository.NewPgFavoriteRepository(database.DB)

	// 6. Initialize Services
	sessions := session.NewRedisStore(cache.RDB)
	authService := service.NewAuthService(userRepo, sessions, config.AppConfig.JWTExp)
	obsService := service.NewObservationService(
		ebird.NewHTTPClient(ebird.DefaultBaseURL, config.AppConfig.EBirdAPIKey),
		config.AppConfig.EBirdAPIKey,
	)
	favService := service.NewFavoritesService(favRepo)

	// 7. Initialize Router & HTTP Server
	gate := middleware.NewSessionGate(sessions)
	router := api.NewRouter(authService, obsService, favService, gate, config.AppConfig.StaticDir)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server stopped gracefully.")
}
