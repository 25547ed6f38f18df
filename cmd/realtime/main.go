package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/internal/realtime"
	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/config"
	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/health"
	"github.com/richxcame/courier-dispatch/pkg/jwtkeys"
	"github.com/richxcame/courier-dispatch/pkg/logger"
	"github.com/richxcame/courier-dispatch/pkg/middleware"
	ws "github.com/richxcame/courier-dispatch/pkg/websocket"
)

const (
	serviceName = "realtime-gateway"
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

	logger.Info("Starting realtime gateway",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	// Admission queries (delivery parties, tracking tokens) run against the
	// shared store over database/sql.
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Connected to database")

	// The gateway is a bus bridge; without NATS there is nothing to push.
	if !cfg.NATS.Enabled {
		logger.Fatal("NATS is required for the realtime gateway (set NATS_ENABLED=true)")
	}
	bus, err := eventbus.New(eventbus.Config{
		URL:        cfg.NATS.URL,
		Name:       serviceName,
		StreamName: cfg.NATS.StreamName,
	})
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer bus.Close()

	hub := ws.NewHub()
	go hub.Run()
	logger.Info("WebSocket hub started")

	service := realtime.NewService(hub, db, bus)

	if err := realtime.NewEventHandler(service).RegisterSubscriptions(rootCtx, bus); err != nil {
		logger.Fatal("Failed to register event subscriptions", zap.Error(err))
	}
	logger.Info("Event subscriptions registered")

	jwtProvider, err := jwtkeys.NewManagerFromConfig(rootCtx, cfg.JWT, true)
	if err != nil {
		logger.Fatal("Failed to initialize JWT key manager", zap.Error(err))
	}
	jwtProvider.StartAutoRefresh(rootCtx, time.Duration(cfg.JWT.RefreshMinutes)*time.Minute)

	handler := realtime.NewHandler(service, jwtProvider)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics(serviceName))

	router.GET("/healthz", handler.HealthCheck)
	router.GET("/health/live", common.LivenessProbe(serviceName, version))

	healthChecks := map[string]func() error{
		"database": health.DatabaseChecker(db),
		"nats": func() error {
			if !bus.Connected() {
				return fmt.Errorf("nats disconnected")
			}
			return nil
		},
	}
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))

	deep := health.NewDeepChecker(health.DeepCheckerConfig{
		Version: version,
	})
	deep.SetDatabase(db)
	router.GET("/health/deep", gin.WrapF(deep.Handler()))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		// Authentication happens inside the handler: bearer token for
		// senders/couriers/admins, tracking token for recipients.
		api.GET("/ws", handler.HandleWebSocket)

		// Connection stats for operators and sibling services.
		api.GET("/stats", middleware.InternalAPIKey(), handler.GetStats)
	}

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
