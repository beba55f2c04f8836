package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"nighttangerine-pos/internal/config"
	custommiddleware "nighttangerine-pos/internal/middleware"
	"nighttangerine-pos/internal/realtime"
	"nighttangerine-pos/internal/repository"
	"nighttangerine-pos/internal/service"
	"nighttangerine-pos/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	hub    *realtime.Hub
	redis  *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.RequestSize(10 << 20)) // embedded product images arrive base64-encoded
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	// Rate limiting is only enforced in production; local development and
	// tests run without a Redis dependency.
	var redisClient *redis.Client
	if cfg.Server.Env == "production" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            time.Duration(cfg.RateLimit.WindowMS) * time.Millisecond,
			KeyPrefix:         "ratelimit",
		}, logger))
	}

	// Health check endpoint
	started := time.Now()
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"env":    cfg.Server.Env,
			"uptime": time.Since(started).String(),
		})
	})
	router.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "nighttangerine-pos",
		})
	})

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	backupRepo := repository.NewBackupRepository(db)

	// The hub needs the order service for snapshots and the order service
	// needs the hub for change notifications, so the hub is built first and
	// the snapshot source attached after.
	hub := realtime.NewHub(logger)

	// Initialize services
	productService := service.NewProductService(productRepo)
	orderService := service.NewOrderService(orderRepo, hub, cfg.Realtime.FinishedLimit)
	backupService := service.NewBackupService(backupRepo, hub)

	hub.SetSnapshotter(orderService)

	// Initialize handlers
	productHandler := transport.NewProductHandler(productService, logger)
	orderHandler := transport.NewOrderHandler(orderService, logger)
	backupHandler := transport.NewBackupHandler(backupService, logger)

	// Register routes
	productHandler.RegisterRoutes(router)
	orderHandler.RegisterRoutes(router)
	backupHandler.RegisterRoutes(router)
	router.Get("/ws", hub.ServeHTTP)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		hub:    hub,
		redis:  redisClient,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.hub != nil {
		s.hub.Close()
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
