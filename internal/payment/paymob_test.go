package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"ecshop/internal/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymob_CreateIntent(t *testing.T) {
	var keyReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/tokens":
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "auth-tok"})
		case "/ecommerce/orders":
			assert.Equal(t, "Bearer auth-tok", r.Header.Get("Authorization"))
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, float64(25000), body["amount_cents"])
			assert.Equal(t, "EGP", body["currency"])
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 987})
		case "/acceptance/payment_keys":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&keyReq))
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "pay-key"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewPaymob(PaymobConfig{BaseURL: srv.URL, APIKey: "k", IntegrationID: 5, IframeID: "77"})
	res, err := p.CreateIntent(context.Background(), Intent{
		OrderNumber:  "ORD-1",
		Amount:       decimal.RequireFromString("250"),
		Currency:     "EGP",
		CustomerName: "Taro Yamada",
		ShippingAddress: model.ShippingAddress{
			City: "Cairo",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "987", res.TransactionID)
	assert.Equal(t, srv.URL+"/acceptance/iframes/77?payment_token=pay-key", res.Payload["iframe_url"])
	assert.Equal(t, float64(987), keyReq["order_id"])
	billing := keyReq["billing_data"].(map[string]any)
	assert.Equal(t, "Taro", billing["first_name"])
	assert.Equal(t, "Yamada", billing["last_name"])
	assert.Equal(t, "Cairo", billing["city"])
}

func TestPaymob_CreateIntent_ProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"bad key"}`))
	}))
	defer srv.Close()

	p := NewPaymob(PaymobConfig{BaseURL: srv.URL})
	_, err := p.CreateIntent(context.Background(), Intent{Amount: decimal.NewFromInt(10), Currency: "EGP"})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.Status)
	assert.Equal(t, model.PaymentProviderPaymob, pe.Provider)
}

func paymobBody(success bool) []byte {
	b, _ := json.Marshal(map[string]any{
		"type": "TRANSACTION",
		"obj": map[string]any{
			"id":           1001,
			"amount_cents": 25000,
			"created_at":   "2026-01-01T00:00:00",
			"currency":     "EGP",
			"success":      success,
			"pending":      false,
			"order":        map[string]any{"id": 987},
			"source_data":  map[string]any{"pan": "2346", "sub_type": "MasterCard", "type": "card"},
		},
	})
	return b
}

func signPaymob(t *testing.T, secret string, body []byte) string {
	t.Helper()
	dec := json.NewDecoder(bytesReader(body))
	dec.UseNumber()
	var payload struct {
		Obj map[string]any `json:"obj"`
	}
	require.NoError(t, dec.Decode(&payload))

	concat := ""
	for _, f := range paymobHMACFields {
		concat += lookupString(payload.Obj, f)
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(concat))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaymob_ParseWebhook(t *testing.T) {
	p := NewPaymob(PaymobConfig{HMACSecret: "s3cret"})
	body := paymobBody(true)

	t.Run("署名OK", func(t *testing.T) {
		q := url.Values{"hmac": {signPaymob(t, "s3cret", body)}}
		ev, err := p.ParseWebhook(context.Background(), WebhookRequest{Query: q, Body: body})
		require.NoError(t, err)
		assert.Equal(t, "1001", ev.EventID)
		assert.Equal(t, "987", ev.TransactionID)
		assert.True(t, ev.Success)
		assert.False(t, ev.Ignored)
	})

	t.Run("署名NG", func(t *testing.T) {
		q := url.Values{"hmac": {"deadbeef"}}
		_, err := p.ParseWebhook(context.Background(), WebhookRequest{Query: q, Body: body})
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("壊れたJSON", func(t *testing.T) {
		noSig := NewPaymob(PaymobConfig{})
		_, err := noSig.ParseWebhook(context.Background(), WebhookRequest{Body: []byte("{")})
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("失敗通知", func(t *testing.T) {
		noSig := NewPaymob(PaymobConfig{})
		ev, err := noSig.ParseWebhook(context.Background(), WebhookRequest{Body: paymobBody(false)})
		require.NoError(t, err)
		assert.False(t, ev.Success)
		assert.Equal(t, "987", ev.TransactionID)
	})
}
