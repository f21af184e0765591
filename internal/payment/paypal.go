package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"ecshop/internal/domain/model"
)

type PaypalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	// 空なら署名検証APIを呼ばない
	WebhookID  string
	HTTPClient *http.Client
}

// Orders v2 API
type Paypal struct {
	cfg    PaypalConfig
	client *http.Client
}

func NewPaypal(cfg PaypalConfig) *Paypal {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Paypal{cfg: cfg, client: newHTTPClient(cfg.HTTPClient)}
}

func (p *Paypal) Name() model.PaymentProvider { return model.PaymentProviderPaypal }
func (p *Paypal) SettlesImmediately() bool    { return false }

type paypalTokenRes struct {
	AccessToken string `json:"access_token"`
}

func (p *Paypal) accessToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req := apiCall{
		provider:    model.PaymentProviderPaypal,
		method:      http.MethodPost,
		url:         p.cfg.BaseURL + "/v1/oauth2/token",
		header:      http.Header{},
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}
	req.header.Set("Authorization", basicAuth(p.cfg.ClientID, p.cfg.ClientSecret))

	var res paypalTokenRes
	if err := req.do(ctx, p.client, &res); err != nil {
		return "", err
	}
	return res.AccessToken, nil
}

type paypalOrderRes struct {
	ID    string `json:"id"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

func (p *Paypal) CreateIntent(ctx context.Context, in Intent) (IntentResult, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return IntentResult{}, err
	}

	body, err := jsonBody(map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": in.OrderNumber,
			"amount": map[string]string{
				"currency_code": strings.ToUpper(in.Currency),
				"value":         in.Amount.StringFixed(2),
			},
		}},
	})
	if err != nil {
		return IntentResult{}, err
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set("PayPal-Request-Id", "order-"+in.OrderNumber)

	var res paypalOrderRes
	err = apiCall{
		provider:    model.PaymentProviderPaypal,
		method:      http.MethodPost,
		url:         p.cfg.BaseURL + "/v2/checkout/orders",
		header:      h,
		body:        body,
		contentType: "application/json",
	}.do(ctx, p.client, &res)
	if err != nil {
		return IntentResult{}, err
	}

	approve := ""
	for _, l := range res.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			approve = l.Href
			break
		}
	}
	return IntentResult{
		TransactionID: res.ID,
		Payload: map[string]any{
			"paypal_order_id": res.ID,
			"approve_url":     approve,
		},
	}, nil
}

type paypalEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

func (p *Paypal) ParseWebhook(ctx context.Context, req WebhookRequest) (WebhookEvent, error) {
	var ev paypalEvent
	if err := json.Unmarshal(req.Body, &ev); err != nil || ev.ID == "" {
		return WebhookEvent{}, ErrInvalidPayload
	}

	if p.cfg.WebhookID != "" {
		if err := p.verify(ctx, req); err != nil {
			return WebhookEvent{}, err
		}
	}

	out := WebhookEvent{EventID: ev.ID, Raw: req.Body}
	// キャプチャ系は注文IDがsupplementary_dataに入る
	txID := ev.Resource.SupplementaryData.RelatedIDs.OrderID
	if txID == "" {
		txID = ev.Resource.ID
	}
	out.TransactionID = txID

	switch ev.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		out.Success = true
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED", "CHECKOUT.PAYMENT-APPROVAL.REVERSED":
		out.Success = false
	default:
		out.Ignored = true
	}
	return out, nil
}

type paypalVerifyRes struct {
	VerificationStatus string `json:"verification_status"`
}

// PayPal側のverify-webhook-signatureを呼ぶ
func (p *Paypal) verify(ctx context.Context, req WebhookRequest) error {
	token, err := p.accessToken(ctx)
	if err != nil {
		return err
	}
	body, err := jsonBody(map[string]any{
		"auth_algo":         req.Header.Get("Paypal-Auth-Algo"),
		"cert_url":          req.Header.Get("Paypal-Cert-Url"),
		"transmission_id":   req.Header.Get("Paypal-Transmission-Id"),
		"transmission_sig":  req.Header.Get("Paypal-Transmission-Sig"),
		"transmission_time": req.Header.Get("Paypal-Transmission-Time"),
		"webhook_id":        p.cfg.WebhookID,
		"webhook_event":     json.RawMessage(req.Body),
	})
	if err != nil {
		return err
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)

	var res paypalVerifyRes
	err = apiCall{
		provider:    model.PaymentProviderPaypal,
		method:      http.MethodPost,
		url:         p.cfg.BaseURL + "/v1/notifications/verify-webhook-signature",
		header:      h,
		body:        body,
		contentType: "application/json",
	}.do(ctx, p.client, &res)
	if err != nil {
		return err
	}
	if res.VerificationStatus != "SUCCESS" {
		return ErrInvalidSignature
	}
	return nil
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}
