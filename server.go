package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/middlewares"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/realtime"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/mmdatafocus/kitchen_backend/workflow"
	"github.com/sirupsen/logrus"
)

// app holds the process-wide pieces the handlers share.
type app struct {
	// instanceId scopes push-delivery dedupe to this process.
	instanceId string
	registry   *realtime.Registry
	notifier   *workflow.AsyncNotifier
	ws         *realtime.Handler
}

func newApp() *app {
	registry := realtime.NewRegistry()
	instanceId, err := os.Hostname()
	if err != nil || instanceId == "" {
		instanceId = uuid.NewString()
	}
	return &app{
		instanceId: instanceId,
		registry:   registry,
		notifier:   workflow.NewAsyncNotifier(&workflow.RegistryPublisher{Registry: registry}),
		ws:         realtime.NewHandler(registry),
	}
}

// orders builds the lifecycle per request; the database handle is installed
// after the router is already serving.
func (a *app) orders() *models.OrderLifecycle {
	return models.NewOrderLifecycle(a.notifier)
}

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	limit  int64
	window time.Duration
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func correlationIdMiddleware(c *gin.Context) {
	cid := c.GetHeader("x-correlation-id")
	if cid == "" {
		cid = uuid.NewString()
	}
	c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
	c.Header("x-correlation-id", cid)
	c.Next()
}

// readinessGate answers 503 until the database is connected. Redis is
// optional: locks and caches are skipped without it.
func readinessGate(c *gin.Context) {
	if c.Request.URL.Path == "/healthz" {
		c.Status(http.StatusNoContent)
		c.Abort()
		return
	}
	if config.GetDB() == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	c.Next()
}

func corsConfig(settings config.Settings) cors.Config {
	cfg := cors.DefaultConfig()
	if settings.IsProduction() {
		cfg.AllowOrigins = settings.CorsAllowedOrigins
		if cfg.AllowOrigins == nil {
			cfg.AllowOrigins = []string{}
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-correlation-id")
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", "x-correlation-id", "x-next-cursor")
	cfg.AllowCredentials = !cfg.AllowAllOrigins
	return cfg
}

func newRouter(a *app, settings config.Settings) *gin.Engine {
	logger := config.GetLogger()

	r := gin.New()
	r.Use(correlationIdMiddleware)
	r.Use(readinessGate)
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.Use(cors.New(corsConfig(settings)))

	// Env: RATE_LIMIT_ENABLED, RATE_LIMIT_MAX_REQUESTS, RATE_LIMIT_WINDOW_SECONDS
	env := config.Env()
	if env.GetBool("RATE_LIMIT_ENABLED") {
		limit := env.GetInt64("RATE_LIMIT_MAX_REQUESTS")
		if limit <= 0 {
			limit = 600
		}
		windowSec := env.GetInt64("RATE_LIMIT_WINDOW_SECONDS")
		if windowSec <= 0 {
			windowSec = 60
		}
		r.Use(NewRateLimiter(limit, time.Duration(windowSec)*time.Second).RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	// the socket authenticates itself with an AUTH message
	r.GET("/ws", a.ws.ServeWS)
	r.POST("/pubsub/order-events", a.orderEventsPushHandler)

	api := r.Group("/api", middlewares.RequireAuth())
	registerCatalogRoutes(api)
	a.registerOrderRoutes(api)

	admin := r.Group("/api", middlewares.RequireRole(models.RoleAdmin, models.RoleRoot))
	admin.GET("/reports/sales-consumption", salesConsumptionHandler)
	admin.GET("/realtime/stats", a.realtimeStatsHandler)

	ops := r.Group("/internal/ops/order-events", middlewares.RequireRole(models.RoleAdmin, models.RoleRoot))
	ops.GET("", orderEventBacklogHandler)
	ops.GET("/orders/:orderId", orderEventStatusHandler)
	ops.POST("/replay", orderEventReplayHandler)

	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	settings := config.LoadSettings()
	logger := config.GetLogger()
	if settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	a := newApp()
	srv := &http.Server{
		Addr:    ":" + settings.Port,
		Handler: newRouter(a, settings),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !settings.SkipMigrations {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	if config.NotifyOutboxEnabled() {
		publisher := workflow.NewOrderEventPublisher(a.registry)
		go workflow.NewOrderEventDispatcher(db, logger, publisher).Run(dispatcherCtx)
	}

	logger.WithFields(logrus.Fields{
		"info":   "Connection Established",
		"outbox": config.NotifyOutboxEnabled(),
		"pubsub": config.PubSubRelayEnabled(),
	}).Info("listening on :", settings.Port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	// in-flight confirmation notices
	a.notifier.Wait()

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func NewRateLimiter(limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	client := config.GetRedisDB()
	if client == nil {
		c.Next()
		return
	}
	key := "ratelimit:" + realtime.ClientIP(c.Request)

	exists, err := client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if exists == 0 {
		err := client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}
