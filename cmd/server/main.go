package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-service/config"
	"market-service/internal/api"
	"market-service/internal/broker"
	"market-service/internal/recommend"
	"market-service/internal/redisclient"
	"market-service/internal/service"
	"market-service/internal/session"
	"market-service/internal/store"
	"market-service/internal/util"
	"market-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting market service", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	db, err := store.NewStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(migrateCtx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	redisClient, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka)
	eventPublisher := broker.NewEventPublisher(producer)
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	recommender := recommend.NewClient(cfg.Recommend, recommend.WithCache(redisClient))
	sessions := session.NewManager(redisClient, cfg.Session, cfg.Server.IsProduction())

	devPayments := cfg.DevPayments()
	if devPayments {
		logger.Warn("Payments are simulated, dev_mode verification is enabled")
	}

	services := api.Services{
		Auth:     service.NewAuthService(db),
		Catalog:  service.NewCatalogService(db, recommender, cfg.Business),
		Cart:     service.NewCartService(db, recommender, cfg.Business),
		Orders:   service.NewOrderService(db, eventPublisher, cfg.Payment, devPayments),
		Payments: service.NewPaymentService(db, redisClient, eventPublisher, cfg.Payment, devPayments),
		Booking:  service.NewBookingService(db, eventPublisher),
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	eventWorker := worker.NewEventWorker(broker.NewConsumer(cfg.Kafka), recommender)
	go func() {
		if err := eventWorker.Start(workerCtx); err != nil {
			logger.Error("Event worker stopped", zap.Error(err))
		}
	}()

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(services, sessions, map[string]api.Pinger{
		"postgres": db,
		"redis":    redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()

	errs := multierr.Combine(
		eventWorker.Stop(),
		producer.Close(),
		redisClient.Close(),
		db.Close(),
		tp.Shutdown(shutdownCtx),
	)
	if errs != nil {
		logger.Error("Errors during shutdown", zap.Errors("errors", multierr.Errors(errs)))
	}

	logger.Info("Server exited")
}
