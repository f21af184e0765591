package payment

import (
	"context"

	"ecshop/internal/domain/model"
)

// 代引き。外部呼び出しなし
type COD struct{}

func NewCOD() *COD { return &COD{} }

func (COD) Name() model.PaymentProvider { return model.PaymentProviderCOD }
func (COD) SettlesImmediately() bool    { return true }

func (COD) CreateIntent(_ context.Context, _ Intent) (IntentResult, error) {
	return IntentResult{Payload: map[string]any{}}, nil
}

func (COD) ParseWebhook(context.Context, WebhookRequest) (WebhookEvent, error) {
	return WebhookEvent{}, ErrUnsupportedProvider
}
