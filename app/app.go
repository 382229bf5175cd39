// File: app/app.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-dine-api/config"
	"go-dine-api/db"
	"go-dine-api/handler"
	"go-dine-api/logger"
	"go-dine-api/repository"
	"go-dine-api/router"
	"go-dine-api/service"
)

// App is the wired server: the database it runs against and the router
// serving the API.
type App struct {
	DB     *sql.DB
	Router http.Handler
}

// NewApp wires repositories, services and handlers on top of database and
// cache. apiKey is the value every request must carry in X-API-KEY.
func NewApp(database *sql.DB, cache service.ICacheClient, apiKey string) *App {
	userRepo := repository.NewUserRepository(database)
	tokenRepo := repository.NewTokenRepository(database)
	orderRepo := repository.NewOrderRepository(database)

	authService := service.NewAuthService(userRepo, tokenRepo)
	userService := service.NewUserService(userRepo)
	orderService := service.NewOrderService(database, orderRepo, cache)

	r := router.NewRouter(router.Deps{
		Auth:   handler.NewAuthHandler(authService),
		Users:  handler.NewUserHandler(userService),
		Orders: handler.NewOrderHandler(orderService),
		Tokens: authService,
		APIKey: apiKey,
	})

	return &App{DB: database, Router: r}
}

func Run() {
	config.LoadConfig(".")
	logger.Init()
	logger.Log.Info("Configuration loaded successfully")

	cfg := config.AppConfig
	if cfg.JWT.SecretKey == "" {
		logger.Log.Fatal("jwt.secret_key must be set")
	}
	if cfg.API.Key == "" {
		logger.Log.Warn("api.key is empty, X-API-KEY will not be checked")
	}

	database, err := db.Connect(cfg)
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		logger.Log.Fatalf("Error running migrations: %v", err)
	}

	redisClient, err := db.ConnectRedis(context.Background(), cfg)
	if err != nil {
		logger.Log.Fatalf("Error connecting to redis: %v", err)
	}
	defer redisClient.Close()

	a := NewApp(database, redisClient, cfg.API.Key)

	port := cfg.Server.Port
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Log.Info("Server exited properly")
}
