package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecshop/internal/cache"
	"ecshop/internal/config"
	"ecshop/internal/handler"
	"ecshop/internal/idempotency"
	"ecshop/internal/infra/db"
	infraRepo "ecshop/internal/infra/repository"
	"ecshop/internal/invoice"
	"ecshop/internal/logging"
	"ecshop/internal/middleware"
	"ecshop/internal/notification"
	"ecshop/internal/payment"
	"ecshop/internal/server"
	"ecshop/internal/usecase"
	auth "ecshop/internal/usecase/auth_usecase"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// .envは無くてもよい（コンテナでは環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	log := logging.New(cfg.GoEnv)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg.DSN())
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	txm := infraRepo.NewTxManagerGorm(gormDB)
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)

	//キャッシュと冪等性チェック（Redisが無ければプロセス内、TTL 0ならキャッシュ無し）
	var (
		productCacheBackend cache.Cache         = cache.NewMemory()
		seen                idempotency.Checker = idempotency.NewMemory()
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, falling back to memory", "addr", cfg.RedisAddr, "err", err)
		} else {
			productCacheBackend = cache.NewRedisCache(rdb, "ecshop:")
			seen = idempotency.NewStore(rdb, 24*time.Hour)
		}
	}
	if cfg.CacheTTL <= 0 {
		productCacheBackend = cache.Noop{}
	}

	//通知（Kafkaが無ければログだけ）
	var (
		sender  notification.Sender  = notification.NewLogSender(log)
		alerter notification.Alerter = notification.NewLogAlerter(log)
	)
	if len(cfg.KafkaBrokers) > 0 {
		w := notification.NewWriter(cfg.KafkaBrokers)
		defer w.Close()
		pub := notification.NewKafkaPublisher(log, w)
		sender, alerter = pub, pub
	}

	providers := newPaymentRegistry(cfg, log)

	//Usecase生成
	products := usecase.NewProductCache(productCacheBackend, cfg.CacheTTL, log)
	pricing := usecase.NewPricingEngine(cfg.ShippingFee)
	orderUC := usecase.NewOrderUsecase(txm, pricing, products, userRepo, alerter, invoice.NewPDFRenderer(), log, cfg.Currency)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, orderUC)
	paymentUC := usecase.NewPaymentUsecase(txm, providers, products, userRepo, sender, alerter, seen, log, cfg.Currency)

	clock := auth.SystemClock{}
	registerUC := auth.NewRegisterUserUsecase(userRepo, auth.NewBcryptPasswordHasher(12), clock)
	loginUC := auth.NewLoginUsecase(userRepo, auth.NewBcryptPasswordVerifier(), auth.NewJWTIssuer(cfg.JWTSecret, cfg.AccessTTL), clock)
	forceLogoutUC := auth.NewForceLogoutUsecase(userRepo, auditRepo, clock)

	//Webhookのレート制限。来なくなったIPは定期的に捨てる
	limiter := middleware.NewIPRateLimiter(cfg.WebhookRateLimit, int(cfg.WebhookRateLimit)*2)
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				limiter.Cleanup(10 * time.Minute)
			}
		}
	}()

	//Handler生成
	srv := server.New(cfg, log, userRepo,
		handler.NewAuthHandler(registerUC, loginUC, forceLogoutUC),
		handler.NewProductHandler(usecase.NewProductUsecase(txm, products)),
		handler.NewOrderHandler(orderUC, adminOrderUC),
		handler.NewAdminOrderHandler(adminOrderUC),
		handler.NewPaymentHandler(paymentUC, limiter, log),
		handler.NewShipmentHandler(usecase.NewShipmentUsecase(txm)),
		handler.NewDiscountHandler(usecase.NewCouponUsecase(txm), usecase.NewGiftCardUsecase(txm)),
		handler.NewAuditLogHandler(usecase.NewAuditLogUsecase(txm)),
	)

	return srv.Run(ctx)
}

// CODは常に有効。外部決済はキーがあるものだけ登録する
func newPaymentRegistry(cfg config.Config, log *slog.Logger) *payment.Registry {
	reg := payment.NewRegistry(payment.NewCOD())

	if cfg.Paymob.APIKey != "" {
		reg.Register(payment.NewPaymob(payment.PaymobConfig{
			BaseURL:       cfg.Paymob.BaseURL,
			APIKey:        cfg.Paymob.APIKey,
			IntegrationID: cfg.Paymob.IntegrationID,
			IframeID:      cfg.Paymob.IframeID,
			HMACSecret:    cfg.Paymob.HMACSecret,
		}))
	}
	if cfg.Stripe.SecretKey != "" {
		reg.Register(payment.NewStripe(payment.StripeConfig{
			BaseURL:       cfg.Stripe.BaseURL,
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
		}))
	}
	if cfg.Paypal.ClientID != "" && cfg.Paypal.ClientSecret != "" {
		reg.Register(payment.NewPaypal(payment.PaypalConfig{
			BaseURL:      cfg.Paypal.BaseURL,
			ClientID:     cfg.Paypal.ClientID,
			ClientSecret: cfg.Paypal.ClientSecret,
			WebhookID:    cfg.Paypal.WebhookID,
		}))
	}

	log.Info("payment providers", "enabled", reg.Names())
	return reg
}
