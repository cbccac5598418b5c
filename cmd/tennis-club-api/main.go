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
	"github.com/go-playground/validator/v10"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tennis-club-api/api/swagger"
	"github.com/noah-isme/tennis-club-api/internal/handler"
	internalmiddleware "github.com/noah-isme/tennis-club-api/internal/middleware"
	"github.com/noah-isme/tennis-club-api/internal/repository"
	"github.com/noah-isme/tennis-club-api/internal/service"
	"github.com/noah-isme/tennis-club-api/pkg/cache"
	"github.com/noah-isme/tennis-club-api/pkg/config"
	"github.com/noah-isme/tennis-club-api/pkg/database"
	"github.com/noah-isme/tennis-club-api/pkg/jobs"
	"github.com/noah-isme/tennis-club-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tennis-club-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tennis-club-api/pkg/middleware/requestid"
)

// @title Tennis Club API
// @version 1.0.0
// @description Court scheduling, bookings and slot generation for tennis centers.
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Migrations.Enabled {
		version, err := database.RunMigrations(db, cfg.Migrations.Path)
		if err != nil {
			return err
		}
		logr.Sugar().Infow("migrations applied", "version", version)
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, court cache disabled", "error", err)
		} else {
			defer client.Close()
			cacheRepo = repository.NewCacheRepository(client, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	var notifier service.Notifier
	if cfg.Telegram.Token != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("init telegram bot: %w", err)
		}
		telegram := service.NewTelegramNotifier(bot, service.TelegramNotifierConfig{
			Timeout:    cfg.Telegram.Timeout,
			RatePerSec: cfg.Telegram.RatePerSec,
			Burst:      cfg.Telegram.Burst,
		}, metricsSvc, logr)
		defer telegram.Wait()
		notifier = telegram
	} else {
		notifier = service.NewLogNotifier(metricsSvc, logr)
	}

	trainingRepo := repository.NewTrainingRepository(db)
	centerRepo := repository.NewCenterRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	productRepo := repository.NewProductRepository(db)
	jobRepo := repository.NewGenerationJobRepository(db)

	trainingSvc := service.NewTrainingService(trainingRepo, centerRepo, productRepo, employeeRepo, customerRepo, db, notifier, metricsSvc, validate, logr)
	centerSvc := service.NewCenterService(centerRepo, productRepo, trainingRepo, db, cacheSvc, validate, logr)
	slotGenerator := service.NewSlotGenerator(trainingRepo, centerRepo, employeeRepo, db, service.SlotGeneratorConfig{
		PlaceholderProductID:    cfg.Slots.PlaceholderProductID,
		PlaceholderInstructorID: cfg.Slots.PlaceholderInstructorID,
	}, metricsSvc, logr)

	worker := service.NewGenerationWorker(jobRepo, centerRepo, slotGenerator, metricsSvc, logr)
	queue := jobs.NewQueue("slot-generation", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Slots.Workers,
		BufferSize: cfg.Slots.BufferSize,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	jobSvc := service.NewGenerationJobService(jobRepo, trainingRepo, slotGenerator, queue, metricsSvc, logr)
	jobSvc.RecoverPending(ctx)

	if cfg.Maintenance.Enabled {
		maintenance := service.NewMaintenanceService(trainingRepo, trainingSvc, customerRepo, notifier, metricsSvc, logr, service.MaintenanceConfig{
			FinalizeEvery:  cfg.Maintenance.FinalizeEvery,
			ReminderEvery:  cfg.Maintenance.ReminderEvery,
			ReminderLead:   cfg.Maintenance.ReminderLead,
			ReminderWindow: cfg.Maintenance.ReminderWindow,
		})
		maintenance.Start(ctx)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(internalmiddleware.Identity())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics"))

	probes := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", probes.Health)
	r.GET("/ready", probes.Ready)
	r.GET("/metrics", probes.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix),
		handler.NewTrainingHandler(trainingSvc),
		handler.NewCenterHandler(centerSvc),
		handler.NewSlotHandler(jobSvc),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logr.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func registerRoutes(api *gin.RouterGroup, trainings *handler.TrainingHandler, centers *handler.CenterHandler, slots *handler.SlotHandler) {
	api.GET("/trainings", trainings.List)
	api.POST("/trainings", trainings.Create)
	api.PATCH("/trainings", trainings.BulkUpdate)
	api.GET("/trainings/:id", trainings.Get)
	api.PATCH("/trainings/:id", trainings.Update)
	api.DELETE("/trainings/:id", trainings.Delete)
	api.POST("/trainings/:id/status", trainings.ChangeStatus)
	api.GET("/customers/:id/balance", trainings.Balance)

	api.GET("/centers", centers.List)
	api.POST("/centers", centers.Create)
	api.GET("/centers/:id", centers.Get)
	api.PATCH("/centers/:id", centers.Update)
	api.GET("/centers/:id/courts", centers.Courts)
	api.GET("/centers/:id/products", centers.Products)

	api.POST("/slots/request", internalmiddleware.RequireUser(), slots.Request)
	api.GET("/slots/jobs/:id", slots.Job)
}
