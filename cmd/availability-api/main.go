package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/schoolnet/availability-api/api/swagger"
	"github.com/schoolnet/availability-api/internal/handler"
	"github.com/schoolnet/availability-api/internal/middleware"
	"github.com/schoolnet/availability-api/internal/models"
	"github.com/schoolnet/availability-api/internal/outlook"
	"github.com/schoolnet/availability-api/internal/repository"
	"github.com/schoolnet/availability-api/internal/service"
	"github.com/schoolnet/availability-api/pkg/cache"
	"github.com/schoolnet/availability-api/pkg/config"
	"github.com/schoolnet/availability-api/pkg/database"
	"github.com/schoolnet/availability-api/pkg/logger"
	corsmiddleware "github.com/schoolnet/availability-api/pkg/middleware/cors"
	reqidmiddleware "github.com/schoolnet/availability-api/pkg/middleware/requestid"
	"github.com/schoolnet/availability-api/pkg/response"
)

// @title Availability API
// @version 1.0.0
// @description Availability computation service for tutors and counselors
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, outlook token caching disabled", "error", err)
		redisClient = nil
	}

	providerRepo := repository.NewProviderRepository(db)
	windowRepo := repository.NewAvailabilityRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	recurringRepo := repository.NewRecurringAvailabilityRepository(db)

	metricsService := service.NewMetricsService()
	tokenService := service.NewTokenService(cfg.JWT.Secret)

	var calendar *outlook.Client
	if cfg.Outlook.Enabled {
		calendar = outlook.NewClient(cfg.Outlook, redisClient, logr)
	}

	recurringService := service.NewRecurringAvailabilityService(recurringRepo, providerRepo, locationRepo, nil, logr)
	availabilityService := service.NewAvailabilityService(providerRepo, windowRepo, sessionRepo, recurringService, calendarOrNil(calendar), metricsService, nil, logr)
	availabilityService.SetDefaultWindow(cfg.Availability.DefaultWindow)

	availabilityHandler := handler.NewAvailabilityHandler(availabilityService)
	recurringHandler := handler.NewRecurringAvailabilityHandler(recurringService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenService))

	registerProviderRoutes(api.Group("/tutors"), models.RoleTutor, availabilityHandler, recurringHandler)
	registerProviderRoutes(api.Group("/counselors"), models.RoleCounselor, availabilityHandler, recurringHandler)

	r.NoRoute(func(c *gin.Context) {
		response.JSON(c, http.StatusNotFound, gin.H{"error": "route not found"}, nil)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func registerProviderRoutes(g *gin.RouterGroup, role models.Role, availability *handler.AvailabilityHandler, recurring *handler.RecurringAvailabilityHandler) {
	g.GET("/:id/availability", availability.List(role))
	g.POST("/:id/availability", availability.ReplaceDays(role))
	g.GET("/:id/availability/check", availability.Check(role))

	g.GET("/:id/recurring-availability", recurring.Get(role))
	g.POST("/:id/recurring-availability", recurring.Replace(role))
	g.PUT("/:id/recurring-availability", recurring.Replace(role))
	g.DELETE("/:id/recurring-availability", recurring.Reset(role))
}

// calendarOrNil keeps the service's calendarClient interface nil when the
// integration is disabled, instead of a typed nil that would pass the nil
// check inside the collector.
func calendarOrNil(c *outlook.Client) service.CalendarClient {
	if c == nil {
		return nil
	}
	return c
}
