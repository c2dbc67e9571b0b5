package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"product-catalog/internal/config"
	"product-catalog/internal/database"
	"product-catalog/internal/gallery"
	custommiddleware "product-catalog/internal/middleware"
	"product-catalog/internal/repository"
	"product-catalog/internal/service"
	"product-catalog/internal/storage"
	"product-catalog/internal/transport"
	"product-catalog/internal/upload"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const rateLimitPrefix = "catalog:rate_limit"

type Server struct {
	*http.Server
	config  *config.Config
	logger  *zap.Logger
	db      database.Service
	redis   *redis.Client
	sweeper *service.Sweeper
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client, store *storage.LocalStore) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.Origins, !cfg.Server.IsProduction()))

	// Health check endpoint
	router.Get("/health", healthHandler(db, redisClient))

	// Stored gallery files, addressed by their client path
	router.Handle("/uploads/*", http.StripPrefix("/uploads/", store.Handler()))

	// Initialize repositories
	productRepo := repository.NewProductRepository(db.Pool())
	categoryRepo := repository.NewCategoryRepository(db.Pool())

	// Initialize gallery pipeline
	paths := gallery.Paths{BaseURL: cfg.Upload.BaseURL}
	decoder := upload.NewDecoder(store, cfg.Upload.MaxFiles, logger)
	ledger := service.NewRedisDeletionLedger(redisClient, service.DefaultLedgerKey)
	collector := service.NewGarbageCollector(store, ledger, cfg.GC.Concurrency, cfg.GC.Timeout, logger)

	// Initialize services
	productService := service.NewProductService(
		productRepo,
		service.NewCategoryLinker(categoryRepo),
		decoder,
		gallery.NewReconciler(paths),
		collector,
		cfg.Server.PersistTimeout,
		logger,
	)

	// Initialize handlers
	productHandler := transport.NewProductHandler(productService, paths, cfg.Upload.MaxBytes, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	staffOnly := custommiddleware.RequireRole(logger, custommiddleware.StaffRoles...)

	// Register routes
	router.Group(func(r chi.Router) {
		r.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         rateLimitPrefix,
		}, logger))
		productHandler.RegisterRoutes(r, authMiddleware, staffOnly)
	})

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		config:  cfg,
		logger:  logger,
		db:      db,
		redis:   redisClient,
		sweeper: service.NewSweeper(ledger, store, cfg.GC.SweepInterval, logger),
	}

	return server
}

// RunSweeper retries pending file deletions until ctx is done
func (s *Server) RunSweeper(ctx context.Context) {
	s.sweeper.Run(ctx)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		s.db.Close()
	}

	s.logger.Sync()
	return nil
}

func healthHandler(db database.Service, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		dbHealth := db.Health(r.Context())
		if dbHealth["status"] != "up" {
			status = http.StatusServiceUnavailable
		}

		redisStatus := "up"
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			// Redis only backs rate limiting and the deletion ledger
			redisStatus = "down"
		}

		custommiddleware.RespondWithJSON(w, status, map[string]interface{}{
			"status":   http.StatusText(status),
			"database": dbHealth,
			"redis":    redisStatus,
		})
	}
}
