package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/truecosmic/calbook-api/api/swagger"
	"github.com/truecosmic/calbook-api/internal/calendar"
	"github.com/truecosmic/calbook-api/internal/crm"
	"github.com/truecosmic/calbook-api/internal/handler"
	"github.com/truecosmic/calbook-api/internal/mailer"
	internalmiddleware "github.com/truecosmic/calbook-api/internal/middleware"
	"github.com/truecosmic/calbook-api/internal/repository"
	"github.com/truecosmic/calbook-api/internal/service"
	"github.com/truecosmic/calbook-api/pkg/cache"
	"github.com/truecosmic/calbook-api/pkg/config"
	"github.com/truecosmic/calbook-api/pkg/database"
	"github.com/truecosmic/calbook-api/pkg/logger"
	corsmiddleware "github.com/truecosmic/calbook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/truecosmic/calbook-api/pkg/middleware/requestid"
)

// @title Calbook API
// @version 1.0.0
// @description Availability and booking engine for coaching sessions
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	metricsService := service.NewMetricsService()

	cacheEnabled := true
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Slot lookups fall back to recomputing on every request.
		logr.Sugar().Warnw("redis unavailable, availability cache disabled", "error", err)
		cacheEnabled = false
	}
	var cacheService *service.CacheService
	if cacheEnabled {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Availability.CacheTTL, logr, true)
		defer cacheRepo.Close()
	}

	hostRepo := repository.NewHostRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	googleAdapter := calendar.NewGoogleAdapter(cfg.Google, logr)

	notificationService := service.NewNotificationService(service.NotificationServiceParams{
		Mailer:     mailer.NewSMTPSender(cfg.SMTP),
		CRM:        crm.NewClient(cfg.CRM, logr),
		Metrics:    metricsService,
		Logger:     logr,
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.MaxRetries,
		RetryDelay: cfg.Notify.RetryDelay,
	})
	notificationService.Start(ctx)
	defer notificationService.Stop()

	availabilityService := service.NewAvailabilityService(service.AvailabilityServiceParams{
		Hosts:    hostRepo,
		Bookings: bookingRepo,
		Busy:     googleAdapter,
		Cache:    cacheService,
		Metrics:  metricsService,
		Logger:   logr,
		CacheTTL: cfg.Availability.CacheTTL,
	})

	bookingService := service.NewBookingService(service.BookingServiceParams{
		Bookings: bookingRepo,
		Hosts:    hostRepo,
		Events:   googleAdapter,
		Slots:    availabilityService,
		Notifier: notificationService,
		Metrics:  metricsService,
		Logger:   logr,
		Config: service.BookingServiceConfig{
			EventName:        cfg.Booking.EventName,
			ObserverEmail:    cfg.Booking.ObserverEmail,
			ReminderLeadTime: cfg.Reminders.LeadTime,
		},
	})

	hostService := service.NewHostService(hostRepo, bookingRepo, availabilityService, logr)
	exportService := service.NewExportService(hostRepo, bookingRepo, logr)
	authService := service.NewAuthService(cfg.JWT, logr)

	if cfg.Reminders.Enabled {
		reminderWorker := service.NewReminderWorker(bookingRepo, hostRepo, googleAdapter, notificationService, logr, service.ReminderWorkerConfig{
			ScanInterval:  cfg.Reminders.ScanInterval,
			BatchSize:     cfg.Reminders.BatchSize,
			ObserverEmail: cfg.Booking.ObserverEmail,
		})
		reminderWorker.Start(ctx)
		defer reminderWorker.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsService))

	metricsHandler := handler.NewMetricsHandler(metricsService)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", metricsHandler.Snapshot)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	availabilityHandler := handler.NewAvailabilityHandler(availabilityService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	hostHandler := handler.NewHostHandler(hostService, exportService)

	api := r.Group(cfg.APIPrefix)
	api.GET("/hosts", hostHandler.List)
	api.GET("/hosts/:slug", hostHandler.Profile)
	api.GET("/availability/:slug", availabilityHandler.Slots)
	api.POST("/hosts/:slug/bookings", bookingHandler.Create)
	api.GET("/bookings/:id/:token", bookingHandler.Get)
	api.POST("/bookings/:id/:token/cancel", bookingHandler.Cancel)
	api.POST("/bookings/:id/:token/reschedule", bookingHandler.Reschedule)

	authed := api.Group("", internalmiddleware.JWT(authService))
	authed.PUT("/hosts/:slug/availability", hostHandler.UpdateAvailability)
	authed.GET("/hosts/:slug/bookings", hostHandler.Bookings)
	if cfg.Exports.Enabled {
		authed.GET("/hosts/:slug/bookings/export", hostHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
