package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecorder/internal/config"
	"ecorder/internal/events"
	"ecorder/internal/handler"
	"ecorder/internal/infra/db"
	infraRepo "ecorder/internal/infra/repository"
	"ecorder/internal/logging"
	"ecorder/internal/metrics"
	"ecorder/internal/server"
	"ecorder/internal/usecase"
	"ecorder/internal/validator"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	//.envは無くてもよい（コンテナでは環境変数で渡す）
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.GoEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	//DB接続
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gormDB, err := db.Connect(ctx, cfg.DSN())
	cancel()
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	paymentRepo := infraRepo.NewPaymentGormRepository(gormDB)
	refundRepo := infraRepo.NewRefundGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//イベントとメトリクス
	publisher := events.NewPublisher(cfg.KafkaBrokerList(), cfg.KafkaTopicPrefix)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close publisher", zap.Error(err))
		}
	}()
	m := metrics.New(prometheus.DefaultRegisterer)

	policy := usecase.StockPolicy{
		ReleaseOnPaymentReject: cfg.ReleaseStockOnPaymentReject,
		RestockOnRefund:        cfg.RestockOnRefund,
	}

	//Usecase生成
	issuer := usecase.NewJWTIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	authUC := usecase.NewAuthUsecase(userRepo, validator.NewAuthValidator(userRepo), issuer, 12)
	productUC := usecase.NewProductUsecase(txm, productRepo, inventoryRepo)
	cartUC := usecase.NewCartUsecase(cartRepo, cartRepo, productRepo)
	orderUC := usecase.NewOrderUsecase(txm, userRepo, publisher, m)
	paymentUC := usecase.NewPaymentUsecase(txm, policy, publisher, m)
	refundUC := usecase.NewRefundUsecase(txm, paymentRepo, refundRepo, policy, publisher, m)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, auditRepo, publisher, m)

	//Handler生成
	handlers := server.Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		Product:      handler.NewProductHandler(productUC),
		Cart:         handler.NewCartHandler(cartUC),
		Order:        handler.NewOrderHandler(orderUC, refundUC),
		Payment:      handler.NewPaymentHandler(paymentUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC),
		AdminPayment: handler.NewAdminPaymentHandler(paymentUC, refundUC),
	}
	e := server.New(cfg, logger, m, userRepo, handlers)

	//Server起動
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(runCtx, cfg.Addr(), e, logger); err != nil {
		logger.Error("server", zap.Error(err))
	}

	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("stopped")
}
