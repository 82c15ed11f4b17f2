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

	"inventory-service/config"
	"inventory-service/internal/api"
	"inventory-service/internal/broker"
	"inventory-service/internal/redisclient"
	"inventory-service/internal/service"
	"inventory-service/internal/store"
	"inventory-service/internal/store/memory"
	"inventory-service/internal/util"
	"inventory-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting inventory service", zap.String("driver", cfg.Database.Driver))

	tp, err := util.InitTracer("inventory-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	var (
		repo        store.Repository
		locker      service.Locker
		redisClient *redisclient.Client
		checks      = make(map[string]api.ReadinessCheck)
	)

	if cfg.Database.Driver == "memory" {
		repo = memory.New()
		locker = service.NewLocalLocker()
		logger.Warn("Using in-memory repository; data is lost on restart")
	} else {
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		logger.Info("Database connected")

		if cfg.Database.Migrate {
			if err := db.Migrate(context.Background()); err != nil {
				log.Fatalf("Failed to apply schema: %v", err)
			}
		}

		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		logger.Info("Redis connected")

		repo = db
		locker = redisClient
		checks["database"] = func(ctx context.Context) error { return db.GetDB().PingContext(ctx) }
		checks["redis"] = redisClient.Ping
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicInventory)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicInventory))

	eventPublisher := broker.NewEventPublisher(producer)

	validator := service.NewDeviceValidator(repo)
	auditLog := service.NewAuditLog(repo)
	ledger := service.NewLedger(repo, validator, auditLog, locker, eventPublisher, service.LedgerConfig{
		Preferences: util.Preferences{
			CurrencyCode:      cfg.Business.CurrencyCode,
			CurrencySymbol:    cfg.Business.CurrencySymbol,
			LowStockThreshold: cfg.Business.LowStockThreshold,
		},
		LockTTL: cfg.Business.LockTTL,
	})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	// Sale events are deduplicated in Redis, so the worker only runs with it.
	var salesWorker *worker.SalesWorker
	if redisClient != nil {
		salesHandler := service.NewSaleEventHandler(ledger, redisClient, cfg.Business.SaleEventTTL)
		salesConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales, cfg.Kafka.ConsumerGroup)
		salesWorker = worker.NewSalesWorker(salesConsumer, salesHandler)
		go func() {
			if err := salesWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Sales worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(ledger, validator, auditLog, checks)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
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
	if salesWorker != nil {
		if err := salesWorker.Stop(); err != nil {
			logger.Warn("Error stopping sales worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
