// main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/api/handlers"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/api/middleware"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/config"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/cron"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/db"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/logging"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/notification"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/repository"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/seed"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/service"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/socket"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	envErr := godotenv.Load()

	// ============================================
	// Load configuration and logging
	// ============================================
	cfg := config.Load()
	logging.Init(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		SystemName: "workspace-engine",
	})
	log := logging.For("main")
	if envErr != nil {
		log.Debug("No .env file found, using environment variables")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// ============================================
	// Storage
	// ============================================
	var (
		repos       *repository.Repositories
		seedMembers *repository.MemoryMemberRepository
		dbStatus    = "memory"
	)
	switch cfg.StorageBackend {
	case config.StorageBackendMemory:
		repos, seedMembers = repository.NewMemoryRepositories()
		log.Warn("Using in-memory storage, data is lost on restart")

	case config.StorageBackendPostgres:
		// Run Database Migrations FIRST
		log.Info("Running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			log.WithError(err).Fatal("Migration failed")
		}

		pg, err := db.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to PostgreSQL")
		}
		defer pg.Close()
		repos = repository.NewRepositories(pg.Pool, pg.SQL)
		dbStatus = "connected"

	default:
		log.WithField("backend", cfg.StorageBackend).Fatal("Unknown storage backend")
	}

	// ============================================
	// Initialize Redis (optional)
	// ============================================
	var redisDB *db.RedisDB
	if cfg.RedisURL != "" {
		var err error
		redisDB, err = db.NewRedisDB(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Failed to connect to Redis, continuing without event fan-out")
			redisDB = nil
		} else {
			defer redisDB.Close()
		}
	}

	// ============================================
	// Initialize WebSocket Hub
	// ============================================
	memberSvc := service.NewMemberService(repos.MemberRepo)
	hub := socket.NewHub(func(userID, room string) bool {
		workspaceID, ok := strings.CutPrefix(room, socket.WorkspaceRoom(""))
		if !ok {
			return false
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		allowed, err := memberSvc.HasAccess(ctx, workspaceID, userID)
		if err != nil {
			log.WithError(err).WithField("room", room).Warn("Room authorization failed")
			return false
		}
		return allowed
	})
	go hub.Run()
	defer hub.Stop()
	broadcaster := socket.NewBroadcaster(hub)
	wsHandler := socket.NewHandler(hub, cfg.JWTSecret, cfg.CORSOrigins)

	// ============================================
	// Initialize change event dispatcher
	// ============================================
	dispatcher := notification.NewService(cfg.EventBufferSize,
		notification.NewLogSink(),
		notification.NewActivitySink(repos.ActivityRepo),
	)
	dispatcher.SetBroadcaster(broadcaster)
	if redisDB != nil {
		dispatcher.AddSink(notification.NewRedisSink(redisDB, cfg.RedisEventPrefix))
		log.WithField("prefix", cfg.RedisEventPrefix).Info("Redis event fan-out enabled")
	}
	dispatcher.Start()
	defer dispatcher.Close()

	// ============================================
	// Initialize All Services
	// ============================================
	services := service.NewServices(&service.ServiceDeps{
		Repos:     repos,
		Publisher: dispatcher,
	})

	// ============================================
	// Seed Data (in-memory development only)
	// ============================================
	if seedMembers != nil && cfg.SeedDevData && !cfg.IsProduction() {
		if err := seed.SeedData(context.Background(), seedMembers, services.Task); err != nil {
			log.WithError(err).Error("Seeding development data failed")
		}
	}

	// ============================================
	// Initialize Cron Scheduler
	// ============================================
	cronScheduler := cron.NewScheduler(services.Task, cfg.SessionIdleTTL, hub.GetConnectedClientsCount)
	if err := cronScheduler.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start scheduler")
	}
	defer cronScheduler.Stop()

	// ============================================
	// Create Gin Router
	// ============================================
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"timestamp":  time.Now(),
			"database":   dbStatus,
			"events":     getEventsStatus(redisDB),
			"workspaces": services.Task.LoadedWorkspaces(),
			"ws_clients": hub.GetConnectedClientsCount(),
		})
	})

	api := r.Group("/api")
	{
		// WebSocket route authenticates itself from the token query
		api.GET("/ws", wsHandler.HandleWebSocket)

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))
		handlers.RegisterRoutes(protected, handlers.NewHandlers(services))
	}

	// ============================================
	// Start server
	// ============================================
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}

func getEventsStatus(redisDB *db.RedisDB) string {
	if redisDB == nil {
		return "local"
	}
	return "redis"
}
