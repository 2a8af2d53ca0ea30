package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/pulseform/servicecore/internal/api/http"
	"github.com/pulseform/servicecore/internal/api/middleware"
	"github.com/pulseform/servicecore/internal/auth"
	"github.com/pulseform/servicecore/internal/client"
	"github.com/pulseform/servicecore/internal/infrastructure/config"
	"github.com/pulseform/servicecore/internal/infrastructure/logging"
	"github.com/pulseform/servicecore/internal/infrastructure/monitoring"
	"github.com/pulseform/servicecore/internal/infrastructure/resilience"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	breakers   *resilience.Registry
	client     *client.Client
	validator  *auth.Validator
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing server",
		zap.String("port", cfg.Server.Port),
		zap.String("auth_service", cfg.Dependencies.AuthServiceURL),
	)

	// Metrics first, everything else reports into them.
	metrics := monitoring.NewMetrics()

	breakers := resilience.NewRegistry(resilience.Settings{
		Threshold:                cfg.Breaker.Threshold,
		ResetTimeout:             cfg.Breaker.ResetTimeout(),
		ErrorThresholdPercentage: cfg.Breaker.ErrorThresholdPercentage,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("dependency", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.RecordBreakerTransition(name, to.String(), float64(to))
		},
	})

	resilientClient := client.New(client.Config{
		MaxRetries:      cfg.Client.MaxRetries,
		RetryDelay:      cfg.Client.RetryDelay(),
		Timeout:         cfg.Client.ConnectionTimeout(),
		IdleConnTimeout: cfg.Client.IdleConnTimeout(),
	}, breakers, logger).WithMetrics(metrics)

	validator := auth.NewValidatorForService(auth.Config{
		CacheTTL:                cfg.Auth.CacheTTL(),
		SweepInterval:           cfg.Auth.CacheSweepInterval(),
		AllowStaleOnCircuitOpen: cfg.Auth.AllowStaleOnCircuitOpen,
		StaleGrace:              cfg.Auth.StaleGrace(),
	}, cfg.Dependencies.AuthServiceURL, resilientClient, logger).WithMetrics(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(breakers, validator, metrics, cfg.Auth.StaleGrace())

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/breakers", handlers.ListBreakers)
		v1.GET("/breakers/:dependency", handlers.GetBreaker)
		v1.POST("/breakers/:dependency/reset", handlers.ResetBreaker)
		v1.GET("/cache/stats", handlers.CacheStats)
		v1.POST("/cache/sweep", handlers.SweepCache)
		v1.GET("/stats", handlers.Stats)

		protected := v1.Group("")
		protected.Use(middleware.Auth(validator))
		protected.GET("/me", handlers.Me)
	}

	logger.Info("Server initialized successfully")

	return &Server{
		router:    router,
		breakers:  breakers,
		client:    resilientClient,
		validator: validator,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

// Router exposes the gin engine, primarily for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases background resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	// Stops the cache sweeper goroutine.
	s.validator.Close()

	s.logger.Sync()
	return err
}
