package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-service/internal/audit"
	"order-service/internal/gateway"
	"order-service/internal/handler"
	appmiddleware "order-service/internal/middleware"
	"order-service/internal/model"
	"order-service/internal/notifier"
	"order-service/internal/policy"
	"order-service/internal/repository"
	"order-service/internal/scheduler"
	"order-service/internal/service"
	"order-service/pkg/config"
	"order-service/pkg/database"
	"order-service/pkg/jwtutil"
	"order-service/pkg/logger"
	"order-service/pkg/redislock"
	"order-service/prometheus"

	"github.com/labstack/echo/v4"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	conf, err := config.Load("order-service")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.InitLogger(conf)
	log := logger.GetLogger()
	log.Info("Starting order-service", zap.String("environment", conf.Server.Env))

	// Initialize database connection
	if err := database.InitDB(conf); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateModels(log,
		&model.Outlet{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.AuditRecord{},
	); err != nil {
		log.Fatal("Failed to migrate database models", zap.Error(err))
	}
	db := database.GetDB()
	if err := repository.EnsureOrderIndexes(db); err != nil {
		log.Fatal("Failed to create order indexes", zap.Error(err))
	}

	// Initialize JWT utility
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: conf.JWT.SigningKey})

	// Initialize Prometheus metrics
	prometheus.InitMetrics()

	// Redis client backs the scheduler's distributed lock
	rdb := rd.NewClient(&rd.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	locker := redislock.NewRedisLocker(rdb)

	// Outbound collaborators
	paymentGateway := gateway.NewHTTPPaymentGateway(conf.Gateway.PaymentURL, conf.Gateway.Timeout)
	catalog := gateway.NewHTTPCatalog(conf.Gateway.CatalogURL, conf.Gateway.Timeout)
	kafkaNotifier := notifier.NewKafkaNotifier(conf.Kafka.Brokers, conf.Kafka.Topic, log)
	auditSink := audit.NewDBSink(db)

	// Core wiring: policy engine and order service
	policyEngine := policy.NewEngine(auditSink)
	orderService := service.NewOrderService(db, policyEngine, paymentGateway, catalog, kafkaNotifier, log, service.Options{
		AcceptanceTimeout:  conf.Order.AcceptanceTimeout,
		PickupWindow:       conf.Order.PickupWindow,
		TaxRateBasisPoints: conf.Order.TaxRateBasisPoints,
	})
	handler.Init(orderService)

	// Expiry scheduler runs until shutdown
	schedCtx, stopScheduler := context.WithCancel(context.Background())
	expiryScheduler := scheduler.New(orderService, locker, conf.Scheduler.Interval, conf.Scheduler.LockTTL, log)
	go expiryScheduler.Run(schedCtx)

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true

	// Apply middleware
	e.Use(appmiddleware.RequestIDMiddleware())
	e.Use(logger.Middleware(log))
	e.Use(prometheus.Middleware())

	// Public routes
	e.GET("/health", handler.Health)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	// Secured routes: the security context middleware rejects anonymous
	// callers before any policy check
	orders := e.Group("/orders")
	orders.Use(appmiddleware.SecurityContextMiddleware(jwt))

	orders.POST("", handler.CreateOrder)
	orders.GET("", handler.ListOrders)
	orders.GET("/:id", handler.GetOrder)
	orders.POST("/:id/accept", handler.AcceptOrder)
	orders.POST("/:id/decline", handler.DeclineOrder)
	orders.POST("/:id/cancel", handler.CancelOrder)
	orders.POST("/:id/prepare", handler.StartPreparing)
	orders.POST("/:id/ready", handler.MarkReady)
	orders.POST("/:id/pickup", handler.VerifyPickup)
	orders.POST("/:id/complete", handler.CompleteOrder)
	orders.POST("/:id/refund", handler.RefundOrder)
	orders.POST("/:id/review", handler.AddReview)

	// Start server
	go func() {
		log.Info("Starting order-service on port " + conf.Server.Port)
		if err := e.Start(":" + conf.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server stopped unexpectedly", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down order-service")

	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := kafkaNotifier.Close(); err != nil {
		log.Error("Kafka writer close failed", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		log.Error("Redis client close failed", zap.Error(err))
	}
}
