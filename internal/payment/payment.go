package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"

	"ecshop/internal/domain/model"

	"github.com/shopspring/decimal"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrInvalidPayload      = errors.New("invalid webhook payload")
)

// 決済作成時に渡す注文の情報
type Intent struct {
	OrderID         int64
	OrderNumber     string
	Amount          decimal.Decimal
	Currency        string
	Method          model.PaymentMethod
	CustomerEmail   string
	CustomerName    string
	ShippingAddress model.ShippingAddress
}

type IntentResult struct {
	// Webhookとの突合キー
	TransactionID string
	// iframe_url / client_secret / approve_url など
	Payload map[string]any
}

type WebhookRequest struct {
	Header http.Header
	Query  url.Values
	Body   []byte
}

// プロバイダごとの形式を正規化したもの
type WebhookEvent struct {
	EventID       string
	TransactionID string
	Success       bool
	// 決済結果と関係ないイベント
	Ignored bool
	Raw     []byte
}

// プロバイダ1つ分の実装
type Provider interface {
	Name() model.PaymentProvider
	// 代引きのようにWebhookを待たずに確定するもの
	SettlesImmediately() bool
	CreateIntent(ctx context.Context, in Intent) (IntentResult, error)
	ParseWebhook(ctx context.Context, req WebhookRequest) (WebhookEvent, error)
}

// 外部APIの失敗
type ProviderError struct {
	Provider model.PaymentProvider
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

type Registry struct {
	mu        sync.RWMutex
	providers map[model.PaymentProvider]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: map[model.PaymentProvider]Provider{}}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name model.PaymentProvider) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, string(name))
	}
	sort.Strings(out)
	return out
}

// 最小通貨単位（セント）へ
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
