package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/taiso/routes-service/db"
	"github.com/taiso/routes-service/internal/routes"
	"github.com/taiso/routes-service/internal/weather"
	"github.com/taiso/routes-service/pkg/cache"
	"github.com/taiso/routes-service/pkg/common"
	"github.com/taiso/routes-service/pkg/config"
	"github.com/taiso/routes-service/pkg/database"
	"github.com/taiso/routes-service/pkg/errors"
	"github.com/taiso/routes-service/pkg/eventbus"
	"github.com/taiso/routes-service/pkg/health"
	"github.com/taiso/routes-service/pkg/logger"
	"github.com/taiso/routes-service/pkg/middleware"
	"github.com/taiso/routes-service/pkg/ratelimit"
	redisClient "github.com/taiso/routes-service/pkg/redis"
	"github.com/taiso/routes-service/pkg/storage"
	"github.com/taiso/routes-service/pkg/tracing"
	"go.uber.org/zap"
)

const (
	serviceName = "routes-service"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if err := logger.Init(cfg.Server.Environment, serviceName); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting routes service",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	if cfg.Sentry.DSN != "" {
		sentryConfig := &errors.SentryConfig{
			DSN:              cfg.Sentry.DSN,
			Environment:      cfg.Server.Environment,
			Release:          version,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
			ServerName:       serviceName,
		}
		if err := errors.InitSentry(sentryConfig); err != nil {
			logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
		} else {
			defer errors.Flush(2 * time.Second)
			logger.Info("Sentry error tracking initialized")
		}
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.Config{
			ServiceName:    serviceName,
			ServiceVersion: version,
			Environment:    cfg.Server.Environment,
			OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
			SampleRate:     cfg.Tracing.SampleRate,
			Enabled:        true,
		})
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else if tp != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Failed to shutdown tracer", zap.Error(err))
				}
			}()
			logger.Info("OpenTelemetry tracing initialized")
		}
	}

	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(db.Migrations, "migrations", cfg.Database.URL()); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Database migrations applied")
	}

	pool, err := database.NewPostgresPool(&cfg.Database, cfg.Timeout.DatabaseQueryTimeoutDuration())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)
	logger.Info("Connected to database")

	redis, err := redisClient.NewRedisClient(&cfg.Redis, cfg.Timeout)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	cacheManager := cache.NewManager(redis)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter(redis.Client, cfg.RateLimit)
		logger.Info("Rate limiting enabled",
			zap.Int("default_limit", cfg.RateLimit.DefaultLimit),
			zap.Int("anonymous_limit", cfg.RateLimit.AnonymousLimit),
		)
	}

	routeOpts := []routes.Option{routes.WithCache(cacheManager)}

	var archive storage.Storage
	if cfg.Storage.Enabled {
		s3Storage, err := storage.NewS3Storage(rootCtx, cfg.Storage)
		if err != nil {
			logger.Fatal("Failed to initialize GPX archive", zap.Error(err))
		}
		archive = s3Storage
		routeOpts = append(routeOpts, routes.WithArchive(archive))
		logger.Info("GPX archive enabled", zap.String("bucket", cfg.Storage.Bucket))
	}

	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		busCfg := eventbus.DefaultConfig()
		busCfg.URL = cfg.NATS.URL
		busCfg.Name = serviceName
		bus, err = eventbus.New(busCfg)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer bus.Close()
		routeOpts = append(routeOpts, routes.WithEvents(bus))

		if archive != nil {
			if err := routes.NewArchiveCleaner(archive).Start(rootCtx, bus); err != nil {
				logger.Fatal("Failed to start archive cleanup consumer", zap.Error(err))
			}
		}
		logger.Info("Route events enabled", zap.String("url", cfg.NATS.URL))
	}

	routeService := routes.NewService(routes.NewRepository(pool), routeOpts...)

	forecastService, err := newForecastService(cfg, cacheManager)
	if err != nil {
		logger.Fatal("Failed to initialize forecast service", zap.Error(err))
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoRoute(common.NoRouteHandler())
	router.NoMethod(common.NoMethodHandler())
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(&cfg.Timeout))
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Metrics(serviceName))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware(serviceName))
	}
	router.Use(middleware.ErrorHandler())

	router.GET("/healthz", common.HealthCheck(serviceName, version))
	router.GET("/health/live", common.LivenessProbe(serviceName, version))

	healthChecks := map[string]common.CheckFunc{
		"database": health.NewCachedChecker(health.PostgresChecker(pool), 5*time.Second).Check,
		"redis":    health.NewCachedChecker(health.RedisChecker(redis.Client), 5*time.Second).Check,
	}
	if bus != nil {
		healthChecks["nats"] = health.ConnectionChecker("nats", bus.Connected)
	}
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": serviceName, "version": version})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.NewHandler(routeService).RegisterRoutes(router, cfg.JWT.Secret, limiter)
	weather.NewHandler(forecastService).RegisterRoutes(router, limiter)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancelRoot()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func newForecastService(cfg *config.Config, cacheManager *cache.Manager) (*weather.Service, error) {
	loc, err := time.LoadLocation(cfg.Weather.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load forecast timezone: %w", err)
	}

	provider := weather.NewOpenMeteoProvider(
		weather.NewProviderClient(cfg.Weather.BaseURL),
		weather.NewProviderBreaker(cfg.Resilience.CircuitBreaker),
		loc,
	)
	if cfg.Resilience.CircuitBreaker.Enabled {
		logger.Info("Circuit breaker enabled for forecast provider")
	}

	return weather.NewService(provider, cacheManager, cfg.Weather)
}
