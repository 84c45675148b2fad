package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"auto-order/config"
	"auto-order/internal/api"
	"auto-order/internal/bot"
	"auto-order/internal/broker"
	"auto-order/internal/checkout"
	"auto-order/internal/gateway"
	"auto-order/internal/redisclient"
	"auto-order/internal/service"
	"auto-order/internal/store"
	"auto-order/internal/util"
	"auto-order/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting auto-order")

	tp, err := util.InitTracer("auto-order", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	eventPublisher := broker.NewEventPublisher(producer)
	logger.Info("Kafka producer initialized")

	telegram, err := bot.NewTelegram(cfg.Telegram.Token, cfg.Telegram.PollTimeout)
	if err != nil {
		logger.Fatal("Failed to start chat transport", zap.Error(err))
	}

	loc := cfg.Location()
	auth := service.NewAuthorizer(cfg.Telegram.AdminIDs)

	// an untyped nil keeps every order in the manual lane
	var payments service.PaymentCreator
	if cfg.GatewayEnabled() {
		gw := gateway.NewClient(gateway.Config{
			VA:      cfg.Gateway.VA,
			APIKey:  cfg.Gateway.APIKey,
			BaseURL: cfg.Gateway.BaseURL,
			Timeout: cfg.Gateway.Timeout,
		})
		payments = service.NewPaymentService(gw, cfg.Server.PublicBaseURL, cfg.Gateway.NotifyPath)
	}

	catalogService := service.NewCatalogService(db, auth, cfg.Business.CatalogPageSize)
	voucherLedger := service.NewVoucherLedger(db, auth, loc)
	orderService := service.NewOrderService(db, eventPublisher, payments, auth, service.OrderSettings{
		GatewayMethods:   cfg.Business.GatewayMethods,
		GatewayEnabled:   cfg.GatewayEnabled(),
		Location:         loc,
		UserOrdersLimit:  cfg.Business.MyOrdersLimit,
		AdminOrdersLimit: cfg.Business.AdminOrdersLimit,
	})

	var sessions checkout.SessionStore
	switch cfg.Business.SessionBackend {
	case "memory":
		sessions = checkout.NewMemoryStore(cfg.Business.SessionTTL)
	default:
		sessions = redisclient.NewSessionStore(redisClient, cfg.Business.SessionTTL)
	}
	flow := &checkout.Flow{
		AccountInfo: cfg.Business.AccountInfoStage,
		Voucher:     cfg.Business.VoucherStage,
		Methods:     cfg.Business.PaymentMethods,
		Fees:        cfg.Business.Fees,
		DefaultFee:  cfg.Business.DefaultFee,
	}
	checkoutService := checkout.NewService(flow, sessions, catalogService, voucherLedger, orderService)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	dispatcher := service.NewNotificationDispatcher(db, bot.NewNotifier(telegram), auth)
	notifyConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(notifyConsumer, dispatcher)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			logger.Error("Notification worker error", zap.Error(err))
		}
	}()

	router := bot.NewRouter(checkoutService, catalogService, orderService, voucherLedger, auth, telegram,
		bot.NewLimiter(cfg.Business.RateLimitPerSecond, cfg.Business.RateLimitBurst),
		bot.RouterConfig{
			ManualInstructions: cfg.Business.ManualInstructions,
			Location:           loc,
		})

	var chatWG sync.WaitGroup
	chatWG.Add(1)
	go func() {
		defer chatWG.Done()
		router.Run(workerCtx, telegram.Events(workerCtx))
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	handler := api.NewHandler(orderService, redisClient, api.Options{
		NotifyPath: cfg.Gateway.NotifyPath,
		ReplayTTL:  cfg.Business.CallbackReplayTTL,
		Checks: map[string]api.Pinger{
			"database": db,
			"redis":    redisClient,
		},
	})
	handler.SetupRoutes(engine)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           engine,
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
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	chatWG.Wait()
	if err := notificationWorker.Stop(); err != nil {
		logger.Warn("Failed to stop notification worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
