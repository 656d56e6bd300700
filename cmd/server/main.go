package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"taskmanager/config"
	"taskmanager/internal/handler"
	"taskmanager/internal/httpserver"
	"taskmanager/internal/repository"
	"taskmanager/internal/service/auth"
	"taskmanager/internal/service/task"
	"taskmanager/pkg/circuitbreaker"
	"taskmanager/pkg/db"
	"taskmanager/pkg/logger"
	"taskmanager/pkg/mq"
	"taskmanager/pkg/redis"
	"taskmanager/pkg/throttle"
)

func main() {
	// 1. Load config
	cfg := config.Load()

	log := logger.NewLogger(cfg.App.Env)
	defer log.Sync()

	log.Info("Starting task manager API",
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
	)

	// 2. Init DB and schema
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx, dbConn, log); err != nil {
		migrateCancel()
		log.Fatal("Schema migration failed", zap.Error(err))
	}
	migrateCancel()

	// 3. Login throttle (optional, needs Redis)
	var limiter auth.LoginLimiter
	rdb, err := redis.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Fatal("Redis initialization failed", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
		limiter = throttle.NewLimiter(rdb, "login_fail", cfg.Throttle.MaxFailures, cfg.Throttle.Window, log)
	}

	// 4. Task event publisher (optional, best-effort)
	var publisher task.EventPublisher
	if cfg.MQ.URL != "" {
		pub, err := mq.NewPublisher(cfg.MQ.URL, circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()))
		if err != nil {
			log.Warn("MQ publisher unavailable, task events disabled", zap.Error(err))
		} else {
			defer pub.Close()
			publisher = pub
			log.Info("MQ publisher ready", zap.String("exchange", mq.ExchangeName))
		}
	} else {
		log.Info("MQ not configured, task events disabled")
	}

	// 5. Repositories and services
	userRepo := repository.NewUserRepository(dbConn, log)
	taskRepo := repository.NewTaskRepository(dbConn, log)

	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)
	authService := auth.NewService(userRepo, tokens, limiter, log)
	taskService := task.NewService(taskRepo, publisher, log)

	// 6. Handlers and router
	authHandler := handler.NewAuthHandler(authService, cfg.App.IsProduction(), log)
	taskHandler := handler.NewTaskHandler(taskService, log)

	router := httpserver.NewRouter(
		authHandler,
		taskHandler,
		authService,
		dbConn,
		httpserver.Options{
			Name:        cfg.App.Name,
			Version:     cfg.App.Version,
			CORSOrigins: cfg.Server.CORSOrigins,
			WebDistDir:  cfg.Server.WebDistDir,
		},
		log,
	)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("Closing database connection...")
	dbConn.Close()

	log.Info("Shutdown complete")
}
