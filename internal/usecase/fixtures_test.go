package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"ecshop/internal/cache"
	"ecshop/internal/domain/model"
	"ecshop/internal/idempotency"
	"ecshop/internal/invoice"
	"ecshop/internal/logging"
	"ecshop/internal/notification"
	"ecshop/internal/payment"
	"ecshop/internal/repository/repotest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

var testAddress = model.ShippingAddress{
	Street:     "12 Tahrir Sq",
	City:       "Cairo",
	State:      "Cairo",
	PostalCode: "11511",
	Country:    "EG",
}

// 送信内容を記録するだけ
type recordingSender struct {
	mu   sync.Mutex
	sent []notification.OrderSnapshot
	err  error
}

func (s *recordingSender) SendOrderConfirmation(_ context.Context, _ string, o notification.OrderSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, o)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []notification.Alert
}

func (a *recordingAlerter) Alert(_ context.Context, al notification.Alert) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, al)
}

func (a *recordingAlerter) kinds() []notification.AlertKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]notification.AlertKind, 0, len(a.alerts))
	for _, al := range a.alerts {
		out = append(out, al.Kind)
	}
	return out
}

// 外部決済のかわり
type fakeProvider struct {
	name      model.PaymentProvider
	intentErr error
	txID      string
	event     payment.WebhookEvent
	parseErr  error

	mu      sync.Mutex
	intents []payment.Intent
}

func (p *fakeProvider) Name() model.PaymentProvider { return p.name }
func (p *fakeProvider) SettlesImmediately() bool    { return false }

func (p *fakeProvider) CreateIntent(_ context.Context, in payment.Intent) (payment.IntentResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents = append(p.intents, in)
	if p.intentErr != nil {
		return payment.IntentResult{}, p.intentErr
	}
	return payment.IntentResult{
		TransactionID: p.txID,
		Payload:       map[string]any{"client_secret": "secret_" + p.txID},
	}, nil
}

func (p *fakeProvider) ParseWebhook(context.Context, payment.WebhookRequest) (payment.WebhookEvent, error) {
	if p.parseErr != nil {
		return payment.WebhookEvent{}, p.parseErr
	}
	return p.event, nil
}

type testEnv struct {
	store    *repotest.Store
	users    *repotest.Users
	cache    *cache.Memory
	products *ProductCache
	sender   *recordingSender
	alerter  *recordingAlerter
	provider *fakeProvider
	seen     *idempotency.Memory
	orders   *OrderUsecase
	admin    *AdminOrderUsecase
	payments *PaymentUsecase
	user     model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    repotest.NewStore(),
		users:    repotest.NewUsers(),
		cache:    cache.NewMemory(),
		sender:   &recordingSender{},
		alerter:  &recordingAlerter{},
		provider: &fakeProvider{name: model.PaymentProviderStripe, txID: "pi_123"},
		seen:     idempotency.NewMemory(),
	}
	log := logging.Discard()
	env.products = NewProductCache(env.cache, time.Minute, log)

	pricing := NewPricingEngine(dec("50"))
	pricing.now = func() time.Time { return fixedNow }

	env.orders = NewOrderUsecase(env.store, pricing, env.products, env.users, env.alerter, invoice.NewPDFRenderer(), log, "EGP")
	env.orders.now = func() time.Time { return fixedNow }
	env.orders.ledger.now = func() time.Time { return fixedNow }

	env.admin = NewAdminOrderUsecase(env.store, env.orders)
	env.admin.now = func() time.Time { return fixedNow }

	registry := payment.NewRegistry(payment.NewCOD(), env.provider)
	env.payments = NewPaymentUsecase(env.store, registry, env.products, env.users, env.sender, env.alerter, env.seen, log, "EGP")
	env.payments.now = func() time.Time { return fixedNow }

	u := &model.User{Name: "Mona", Email: "mona@example.com", Role: model.RoleUser, IsActive: true}
	require.NoError(t, env.users.Create(context.Background(), u))
	env.user = *u
	return env
}

func (e *testEnv) customer() Actor {
	return Actor{UserID: e.user.ID, Role: model.RoleUser}
}

func (e *testEnv) seedProduct(slug string, price string, stock int64) model.Product {
	return e.store.SeedProduct(model.Product{
		Slug:     slug,
		Name:     "Product " + slug,
		Brand:    "Acme",
		Price:    dec(price),
		Stock:    stock,
		IsActive: true,
	})
}

func (e *testEnv) seedCoupon(code string, typ model.DiscountType, value, minPurchase string, limit *int64) model.Coupon {
	return e.store.SeedCoupon(model.Coupon{
		Code:          code,
		DiscountType:  typ,
		DiscountValue: dec(value),
		MinPurchase:   dec(minPurchase),
		ExpiryDate:    fixedNow.Add(30 * 24 * time.Hour),
		UsageLimit:    limit,
		IsActive:      true,
	})
}

func (e *testEnv) seedGiftCard(code, balance string) model.GiftCard {
	return e.store.SeedGiftCard(model.GiftCard{
		Code:           code,
		InitialBalance: dec(balance),
		CurrentBalance: dec(balance),
		IsActive:       true,
	})
}

func line(p model.Product, qty int64) CartLine {
	return CartLine{Ref: model.ProductRefByID(p.ID), Quantity: qty}
}

func (e *testEnv) place(t *testing.T, in PlaceOrderInput) model.Order {
	t.Helper()
	if in.ShippingAddress == (model.ShippingAddress{}) {
		in.ShippingAddress = testAddress
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = model.PaymentMethodCard
	}
	o, err := e.orders.PlaceOrder(context.Background(), e.user.ID, in)
	require.NoError(t, err)
	return o
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	he, ok := AsHTTPError(err)
	require.True(t, ok, "expected HTTPError, got %v", err)
	require.Equal(t, code, he.Code, he.Message)
}
