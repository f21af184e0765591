package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あればPOSTGRES_*より優先
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int

	JWTSecret string // JWT署名シークレット
	AccessTTL time.Duration

	GoEnv string // dev/prod

	ShippingFee decimal.Decimal // 送料（固定）
	Currency    string

	RedisAddr    string // 空ならキャッシュ・冪等性チェックはNoop
	CacheTTL     time.Duration
	KafkaBrokers []string // 空なら通知はログのみ

	Paymob PaymobConfig
	Stripe StripeConfig
	Paypal PaypalConfig

	// Webhookの1IPあたり秒間リクエスト数
	WebhookRateLimit float64
}

type PaymobConfig struct {
	APIKey        string
	IntegrationID int64
	IframeID      string
	HMACSecret    string
	BaseURL       string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
}

type PaypalConfig struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	BaseURL      string
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		GoEnv:     os.Getenv("GO_ENV"),
		Currency:  strings.ToUpper(getenv("CURRENCY", "EGP")),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),

		Paymob: PaymobConfig{
			APIKey:     os.Getenv("PAYMOB_API_KEY"),
			IframeID:   os.Getenv("PAYMOB_IFRAME_ID"),
			HMACSecret: os.Getenv("PAYMOB_HMAC_SECRET"),
			BaseURL:    getenv("PAYMOB_BASE_URL", "https://accept.paymob.com/api"),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			BaseURL:       getenv("STRIPE_BASE_URL", "https://api.stripe.com"),
		},
		Paypal: PaypalConfig{
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			WebhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),
			BaseURL:      getenv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
		},
	}

	var err error
	if cfg.PostgresPort, err = atoiOr("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.Paymob.IntegrationID, err = atoi64Or("PAYMOB_INTEGRATION_ID", 0); err != nil {
		return Config{}, err
	}

	ttlSec, err := atoiOr("ACCESS_TOKEN_TTL_MIN", 15)
	if err != nil {
		return Config{}, err
	}
	cfg.AccessTTL = time.Duration(ttlSec) * time.Minute

	cacheSec, err := atoiOr("CACHE_TTL", 100)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheTTL = time.Duration(cacheSec) * time.Second

	fee, err := decimal.NewFromString(getenv("SHIPPING_FEE", "50"))
	if err != nil {
		return Config{}, fmt.Errorf("SHIPPING_FEE must be decimal: %w", err)
	}
	if fee.IsNegative() {
		return Config{}, fmt.Errorf("SHIPPING_FEE must not be negative")
	}
	cfg.ShippingFee = fee

	rate, err := strconv.ParseFloat(getenv("WEBHOOK_RATE_LIMIT", "20"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("WEBHOOK_RATE_LIMIT must be number: %w", err)
	}
	cfg.WebhookRateLimit = rate

	//必須チェック
	if cfg.DatabaseURL == "" {
		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
		if cfg.PostgresHost == "" {
			return Config{}, fmt.Errorf("POSTGRES_HOST is required")
		}
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}

	return cfg, nil
}

// gormに渡すDSN
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB,
		getenv("POSTGRES_SSLMODE", "disable"),
	)
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func atoi64Or(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
