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
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/internal/courier"
	"github.com/richxcame/courier-dispatch/internal/delivery"
	"github.com/richxcame/courier-dispatch/internal/dispatch"
	"github.com/richxcame/courier-dispatch/internal/issues"
	"github.com/richxcame/courier-dispatch/internal/location"
	"github.com/richxcame/courier-dispatch/internal/messages"
	"github.com/richxcame/courier-dispatch/internal/notifications"
	"github.com/richxcame/courier-dispatch/internal/payments"
	"github.com/richxcame/courier-dispatch/internal/pricing"
	"github.com/richxcame/courier-dispatch/internal/promos"
	"github.com/richxcame/courier-dispatch/internal/ratings"
	"github.com/richxcame/courier-dispatch/internal/settings"
	"github.com/richxcame/courier-dispatch/internal/tracking"
	"github.com/richxcame/courier-dispatch/pkg/cache"
	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/config"
	"github.com/richxcame/courier-dispatch/pkg/database"
	"github.com/richxcame/courier-dispatch/pkg/errors"
	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/health"
	"github.com/richxcame/courier-dispatch/pkg/jwtkeys"
	"github.com/richxcame/courier-dispatch/pkg/logger"
	"github.com/richxcame/courier-dispatch/pkg/middleware"
	"github.com/richxcame/courier-dispatch/pkg/models"
	"github.com/richxcame/courier-dispatch/pkg/ratelimit"
	redisclient "github.com/richxcame/courier-dispatch/pkg/redis"
	"github.com/richxcame/courier-dispatch/pkg/resilience"
	"github.com/richxcame/courier-dispatch/pkg/tracing"
)

const (
	serviceName = "dispatch-service"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting dispatch service",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	// Initialize Sentry for error tracking
	sentryConfig := errors.DefaultSentryConfig()
	sentryConfig.ServerName = serviceName
	sentryConfig.Release = version
	if err := errors.InitSentry(sentryConfig); err != nil {
		logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
	} else {
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized successfully")
	}

	// Initialize OpenTelemetry tracer
	tracerEnabled := os.Getenv("OTEL_ENABLED") == "true"
	if tracerEnabled {
		tracerCfg := tracing.Config{
			ServiceName:    os.Getenv("OTEL_SERVICE_NAME"),
			ServiceVersion: os.Getenv("OTEL_SERVICE_VERSION"),
			Environment:    cfg.Server.Environment,
			OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Enabled:        true,
		}

		tp, err := tracing.InitTracer(tracerCfg, logger.Get())
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Failed to shutdown tracer", zap.Error(err))
				}
			}()
			logger.Info("OpenTelemetry tracing initialized successfully")
		}
	}

	db, err := database.NewPostgresPool(&cfg.Database, cfg.Timeout.DatabaseQueryTimeout)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	redisClient, err := redisclient.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}()
	logger.Info("Connected to Redis")

	cacheManager := cache.NewManager(redisClient)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit)
		logger.Info("Rate limiting enabled",
			zap.Int("default_limit", cfg.RateLimit.DefaultLimit),
			zap.Int("default_burst", cfg.RateLimit.DefaultBurst),
			zap.Duration("window", cfg.RateLimit.Window()),
		)
	}

	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		bus, err = eventbus.New(eventbus.Config{
			URL:        cfg.NATS.URL,
			Name:       serviceName,
			StreamName: cfg.NATS.StreamName,
		})
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer bus.Close()
	} else {
		logger.Warn("NATS disabled; offers, live updates and notifications will not flow")
	}

	// Payment gateway: Stripe behind a circuit breaker, or the offline
	// gateway when no key is configured.
	var gateway payments.GatewayInterface
	if cfg.Stripe.Enabled && cfg.Stripe.APIKey != "" {
		gateway = payments.NewStripeGateway(cfg.Stripe.APIKey)
		logger.Info("Stripe payment gateway configured")
	} else {
		gateway = payments.NewOfflineGateway()
		logger.Warn("Stripe not configured, using offline payment gateway")
	}
	if cfg.Resilience.CircuitBreaker.Enabled {
		breakerCfg := cfg.Resilience.CircuitBreaker.SettingsFor("stripe")
		stripeBreaker := resilience.NewCircuitBreaker(resilience.Settings{
			Name:             "stripe",
			Interval:         time.Duration(breakerCfg.IntervalSeconds) * time.Second,
			Timeout:          time.Duration(breakerCfg.TimeoutSeconds) * time.Second,
			FailureThreshold: uint32(breakerCfg.FailureThreshold),
			SuccessThreshold: uint32(breakerCfg.SuccessThreshold),
		}, nil)
		gateway = payments.NewResilientGateway(gateway, stripeBreaker)
		logger.Info("Circuit breaker configured for payment gateway",
			zap.Int("failure_threshold", breakerCfg.FailureThreshold),
			zap.Int("timeout_seconds", breakerCfg.TimeoutSeconds),
		)
	}

	// Leaf services first, the lifecycle engine on top of them.
	settingsSvc := settings.NewService(settings.NewRepository(db))
	settingsSvc.SetCache(cacheManager)

	pricingSvc := pricing.NewService(pricing.NewRepository(db), settingsSvc)
	pricingSvc.SetCache(cacheManager)

	promoSvc := promos.NewService(promos.NewRepository(db))
	trackingSvc := tracking.NewService(tracking.NewRepository(db))

	paymentSvc := payments.NewService(payments.NewRepository(db), gateway)
	paymentSvc.SetEventBus(bus)

	deliverySvc := delivery.NewService(
		delivery.NewRepository(db),
		pricingSvc,
		promoSvc,
		paymentSvc,
		trackingSvc,
		settingsSvc,
		cfg.Server.PublicBaseURL,
	)
	deliverySvc.SetEventBus(bus)

	offerStore := dispatch.NewOfferStore(redisClient)
	dispatchSvc := dispatch.NewService(dispatch.NewRepository(db), offerStore, deliverySvc, settingsSvc, redisClient)
	dispatchSvc.SetEventBus(bus)

	locationSvc := location.NewService(location.NewRepository(db), deliverySvc, redisClient)
	locationSvc.SetEventBus(bus)

	courierSvc := courier.NewService(courier.NewRepository(db), locationSvc)
	courierSvc.SetEventBus(bus)

	messageSvc := messages.NewService(messages.NewRepository(db), trackingSvc)
	messageSvc.SetEventBus(bus)

	notificationSvc := notifications.NewService(notifications.NewRepository(db))
	notificationSvc.SetEventBus(bus)

	ratingSvc := ratings.NewService(ratings.NewRepository(db))
	ratingSvc.SetEventBus(bus)

	issueSvc := issues.NewService(issues.NewRepository(db))
	issueSvc.SetEventBus(bus)

	if bus != nil {
		if err := dispatch.NewEventHandler(dispatchSvc).RegisterSubscriptions(rootCtx, bus); err != nil {
			logger.Fatal("Failed to register dispatch subscriptions", zap.Error(err))
		}
		if err := location.NewEventHandler(locationSvc).RegisterSubscriptions(rootCtx, bus); err != nil {
			logger.Fatal("Failed to register location subscriptions", zap.Error(err))
		}
		if err := payments.NewEventHandler(paymentSvc).RegisterSubscriptions(rootCtx, bus); err != nil {
			logger.Fatal("Failed to register payment subscriptions", zap.Error(err))
		}
		if err := notifications.NewEventHandler(notificationSvc).RegisterSubscriptions(rootCtx, bus); err != nil {
			logger.Fatal("Failed to register notification subscriptions", zap.Error(err))
		}
		logger.Info("Event subscriptions registered")
	}

	deliveryHandler := delivery.NewHandler(deliverySvc)
	dispatchHandler := dispatch.NewHandler(dispatchSvc)
	locationHandler := location.NewHandler(locationSvc)
	courierHandler := courier.NewHandler(courierSvc)
	messageHandler := messages.NewHandler(messageSvc)
	notificationHandler := notifications.NewHandler(notificationSvc)
	paymentHandler := payments.NewHandler(paymentSvc)
	ratingHandler := ratings.NewHandler(ratingSvc)
	issueHandler := issues.NewHandler(issueSvc)
	promoHandler := promos.NewHandler(promoSvc)

	jwtProvider, err := jwtkeys.NewManagerFromConfig(rootCtx, cfg.JWT, true)
	if err != nil {
		logger.Fatal("Failed to initialize JWT key manager", zap.Error(err))
	}
	jwtProvider.StartAutoRefresh(rootCtx, time.Duration(cfg.JWT.RefreshMinutes)*time.Minute)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(&cfg.Timeout))
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.SanitizeRequest())
	router.Use(middleware.Metrics(serviceName))
	if tracerEnabled {
		router.Use(middleware.TracingMiddleware(serviceName))
	}
	router.Use(middleware.ErrorHandler())
	if limiter != nil {
		router.Use(middleware.RateLimit(limiter, cfg.RateLimit))
	}

	// Health check endpoints
	router.GET("/healthz", common.HealthCheck(serviceName, version))
	router.GET("/health/live", common.LivenessProbe(serviceName, version))

	healthChecks := map[string]func() error{
		"database": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Ping(ctx)
		},
		"redis": health.RedisChecker(redisClient.Client),
	}
	if bus != nil {
		healthChecks["nats"] = func() error {
			if !bus.Connected() {
				return fmt.Errorf("nats disconnected")
			}
			return nil
		}
	}
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": serviceName,
			"version": version,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.AuthMiddlewareWithProvider(jwtProvider)
	optionalAuth := middleware.OptionalAuthMiddlewareWithProvider(jwtProvider)

	api := router.Group("/api/v1")

	deliveries := api.Group("/deliveries")
	{
		deliveries.POST("/estimate", auth, deliveryHandler.Estimate)
		deliveries.POST("", auth, middleware.Idempotency(redisClient), deliveryHandler.Create)
		deliveries.GET("", auth, deliveryHandler.List)
		// Tracking-token holders read the public view without a bearer token.
		deliveries.GET("/:id", optionalAuth, deliveryHandler.Get)
		deliveries.PUT("/:id/cancel", auth, deliveryHandler.Cancel)
		deliveries.POST("/:id/tip", auth, paymentHandler.AddTip)
		deliveries.POST("/:id/rate", auth, ratingHandler.Rate)
		deliveries.POST("/:id/report-issue", auth, issueHandler.Report)
		deliveries.GET("/:id/receipt", auth, paymentHandler.GetReceipt)
	}

	courierRoutes := api.Group("/courier")
	courierRoutes.Use(auth, middleware.RequireRole(models.RoleCourier))
	{
		courierRoutes.POST("/profile", courierHandler.CreateProfile)
		courierRoutes.GET("/profile", courierHandler.GetProfile)
		courierRoutes.PUT("/profile", courierHandler.UpdateProfile)
		courierRoutes.PUT("/availability", courierHandler.SetAvailability)
		courierRoutes.POST("/location", locationHandler.Update)
		courierRoutes.POST("/accept-delivery/:id", deliveryHandler.AcceptDelivery)
		courierRoutes.PUT("/delivery-status/:id", deliveryHandler.UpdateDeliveryStatus)
		courierRoutes.GET("/delivery-requests", dispatchHandler.ListOffers)
		courierRoutes.GET("/active-delivery", deliveryHandler.GetActiveDelivery)
		courierRoutes.GET("/earnings", courierHandler.Earnings)
		courierRoutes.POST("/payouts", courierHandler.RequestPayout)
	}

	messageRoutes := api.Group("/messages")
	{
		messageRoutes.GET("/:delivery_id", optionalAuth, messageHandler.GetConversation)
		messageRoutes.POST("/:delivery_id", optionalAuth, messageHandler.Send)
		messageRoutes.PUT("/:id/read", auth, messageHandler.MarkRead)
	}

	notificationRoutes := api.Group("/notifications")
	notificationRoutes.Use(auth)
	{
		notificationRoutes.GET("", notificationHandler.List)
		notificationRoutes.PUT("/:id/read", notificationHandler.MarkRead)
		notificationRoutes.PUT("/read-all", notificationHandler.MarkAllRead)
	}

	api.POST("/promo-codes/validate", auth, promoHandler.ValidatePromoCode)

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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
