package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ecshop/internal/domain/model"
)

type PaymobConfig struct {
	BaseURL       string
	APIKey        string
	IntegrationID int64
	IframeID      string
	// 空なら署名チェックしない
	HMACSecret string
	HTTPClient *http.Client
}

// Accept API（認証 -> 注文作成 -> 支払いキー）
type Paymob struct {
	cfg    PaymobConfig
	client *http.Client
}

func NewPaymob(cfg PaymobConfig) *Paymob {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Paymob{cfg: cfg, client: newHTTPClient(cfg.HTTPClient)}
}

func (p *Paymob) Name() model.PaymentProvider { return model.PaymentProviderPaymob }
func (p *Paymob) SettlesImmediately() bool    { return false }

type paymobAuthRes struct {
	Token string `json:"token"`
}

type paymobOrderRes struct {
	ID int64 `json:"id"`
}

type paymobKeyRes struct {
	Token string `json:"token"`
}

func (p *Paymob) CreateIntent(ctx context.Context, in Intent) (IntentResult, error) {
	//1. 認証
	body, err := jsonBody(map[string]any{"api_key": p.cfg.APIKey})
	if err != nil {
		return IntentResult{}, err
	}
	var auth paymobAuthRes
	if err := p.call(http.MethodPost, "/auth/tokens", "", body).do(ctx, p.client, &auth); err != nil {
		return IntentResult{}, err
	}

	amountCents := minorUnits(in.Amount)

	//2. 注文作成
	body, err = jsonBody(map[string]any{
		"amount_cents":      amountCents,
		"currency":          in.Currency,
		"delivery_needed":   false,
		"merchant_order_id": in.OrderNumber,
		"items":             []any{},
	})
	if err != nil {
		return IntentResult{}, err
	}
	var order paymobOrderRes
	if err := p.call(http.MethodPost, "/ecommerce/orders", auth.Token, body).do(ctx, p.client, &order); err != nil {
		return IntentResult{}, err
	}

	//3. 支払いキー
	first, last := splitName(in.CustomerName)
	body, err = jsonBody(map[string]any{
		"amount_cents":   amountCents,
		"currency":       in.Currency,
		"order_id":       order.ID,
		"integration_id": p.cfg.IntegrationID,
		"billing_data": map[string]string{
			"email":        orDefault(in.CustomerEmail, "NA"),
			"first_name":   first,
			"last_name":    last,
			"phone_number": "NA",
			"apartment":    "NA",
			"floor":        "NA",
			"building":     "NA",
			"street":       orDefault(in.ShippingAddress.Street, "NA"),
			"city":         orDefault(in.ShippingAddress.City, "NA"),
			"state":        orDefault(in.ShippingAddress.State, "NA"),
			"country":      orDefault(in.ShippingAddress.Country, "NA"),
		},
	})
	if err != nil {
		return IntentResult{}, err
	}
	var key paymobKeyRes
	if err := p.call(http.MethodPost, "/acceptance/payment_keys", auth.Token, body).do(ctx, p.client, &key); err != nil {
		return IntentResult{}, err
	}

	txID := fmt.Sprintf("%d", order.ID)
	return IntentResult{
		TransactionID: txID,
		Payload: map[string]any{
			"transaction_id": txID,
			"iframe_url":     fmt.Sprintf("%s/acceptance/iframes/%s?payment_token=%s", p.cfg.BaseURL, p.cfg.IframeID, key.Token),
		},
	}, nil
}

func (p *Paymob) call(method, path, token string, body io.Reader) apiCall {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return apiCall{
		provider:    model.PaymentProviderPaymob,
		method:      method,
		url:         p.cfg.BaseURL + path,
		header:      h,
		body:        body,
		contentType: "application/json",
	}
}

// 取引コールバックのHMAC対象（この順で連結する）
var paymobHMACFields = []string{
	"amount_cents",
	"created_at",
	"currency",
	"error_occured",
	"has_parent_transaction",
	"id",
	"integration_id",
	"is_3d_secure",
	"is_auth",
	"is_capture",
	"is_refunded",
	"is_standalone_payment",
	"is_voided",
	"order.id",
	"owner",
	"pending",
	"source_data.pan",
	"source_data.sub_type",
	"source_data.type",
	"success",
}

func (p *Paymob) ParseWebhook(_ context.Context, req WebhookRequest) (WebhookEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(req.Body))
	dec.UseNumber()

	var payload struct {
		Type string         `json:"type"`
		Obj  map[string]any `json:"obj"`
	}
	if err := dec.Decode(&payload); err != nil || payload.Obj == nil {
		return WebhookEvent{}, ErrInvalidPayload
	}

	if p.cfg.HMACSecret != "" {
		if !p.validHMAC(payload.Obj, req.Query.Get("hmac")) {
			return WebhookEvent{}, ErrInvalidSignature
		}
	}

	orderID := lookupString(payload.Obj, "order.id")
	if orderID == "" {
		return WebhookEvent{}, ErrInvalidPayload
	}
	success, _ := payload.Obj["success"].(bool)
	pending, _ := payload.Obj["pending"].(bool)

	return WebhookEvent{
		EventID:       lookupString(payload.Obj, "id"),
		TransactionID: orderID,
		Success:       success,
		// pendingの通知は結果ではない
		Ignored: pending && !success,
		Raw:     req.Body,
	}, nil
}

func (p *Paymob) validHMAC(obj map[string]any, got string) bool {
	if got == "" {
		return false
	}
	var sb strings.Builder
	for _, f := range paymobHMACFields {
		sb.WriteString(lookupString(obj, f))
	}
	mac := hmac.New(sha512.New, []byte(p.cfg.HMACSecret))
	mac.Write([]byte(sb.String()))
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.ToLower(got)))
}

// "order.id" のようなドット区切りで値を取り出す
func lookupString(m map[string]any, path string) string {
	var cur any = m
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[key]
	}
	switch v := cur.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "NA", "NA"
	case 1:
		return parts[0], "NA"
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
