package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/api"
	"github.com/sanosuguru/go-hotel-reservation/internal/api/handler"
	custommiddleware "github.com/sanosuguru/go-hotel-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-hotel-reservation/internal/application"
	"github.com/sanosuguru/go-hotel-reservation/internal/config"
	amqpinfra "github.com/sanosuguru/go-hotel-reservation/internal/infrastructure/amqp"
	"github.com/sanosuguru/go-hotel-reservation/internal/infrastructure/checkout"
	"github.com/sanosuguru/go-hotel-reservation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-hotel-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-hotel-reservation/internal/worker"
)

func main() {
	// .env は存在すれば読み込む（本番では環境変数を直接使う）
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Set(logger.NewLogger(cfg.App.Env))
	defer logger.Sync()

	// DB接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer db.Close()

	// マイグレーション実行
	if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}

	// Redis接続
	redisClient, err := redisinfra.NewClient(&redisinfra.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal("Redis接続に失敗しました", zap.Error(err))
	}
	defer redisClient.Close()

	// メトリクス初期化
	m := metrics.Init()

	// インフラストラクチャ層
	lockManager := redisinfra.NewLockManager(redisClient)
	availabilityCache := redisinfra.NewAvailabilityCache(redisClient)

	txManager := postgres.NewTxManager(db)
	bookingRepo := postgres.NewBookingRepository(db)
	roomRepo := postgres.NewRoomRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	anomalyRepo := postgres.NewAnomalyRepository(db)

	gateway := checkout.NewGateway(cfg.Checkout.APIURL, cfg.Checkout.APIKey)
	verifier := checkout.NewHMACVerifier(cfg.Checkout.WebhookSecret, cfg.Checkout.SignatureTolerance)
	notifier := amqpinfra.NewPublisher(cfg.AMQP.URL, cfg.AMQP.PaidQueue)

	// アプリケーション層
	bookingService := application.NewBookingService(
		txManager, bookingRepo, roomRepo, lockManager, availabilityCache, cfg.Checkout.Currency)
	checkoutService := application.NewCheckoutService(
		bookingRepo, sessionRepo, gateway, cfg.Checkout.SuccessURL, cfg.Checkout.CancelURL)
	reconciliationService := application.NewReconciliationService(
		bookingRepo, sessionRepo, anomalyRepo, verifier, notifier, cfg.Checkout.FallbackWindow)

	// ハンドラ
	bookingHandler := handler.NewBookingHandler(bookingService)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService)
	webhookHandler := handler.NewWebhookHandler(reconciliationService)
	healthHandler := handler.NewHealthHandler()

	// Echo セットアップ
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	custommiddleware.SetupMiddleware(e)
	e.Use(custommiddleware.PrometheusMiddleware(m))

	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), custommiddleware.MetricsBasicAuth())

	v1 := e.Group("/api/v1")
	v1.GET("/rooms/:id/availability", bookingHandler.CheckAvailability)
	v1.POST("/bookings", bookingHandler.Create)
	v1.GET("/bookings", bookingHandler.GetUserBookings)
	v1.GET("/bookings/:id", bookingHandler.GetByID)
	v1.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	v1.POST("/bookings/:id/checkout", checkoutHandler.Create)
	v1.GET("/hotels/:id/dashboard", bookingHandler.HotelDashboard)
	v1.POST("/webhooks/payment", webhookHandler.HandlePaymentEvent)

	// 決済待ち監視ワーカー起動
	monitor := worker.NewUnsettledBookingMonitor(
		reconciliationService, cfg.Worker.Interval, cfg.Worker.StaleAfter)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	go monitor.Start(workerCtx)

	// サーバー起動
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	workerCancel()
	monitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
