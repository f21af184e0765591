package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentProvider string

const (
	PaymentProviderPaymob PaymentProvider = "paymob"
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderPaypal PaymentProvider = "paypal"
	PaymentProviderCOD    PaymentProvider = "cod"
)

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodCOD    PaymentMethod = "cod"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodWallet, PaymentMethodCOD:
		return true
	}
	return false
}

// pending -> paid / failed のみ
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Payment struct {
	ID       int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID  int64           `gorm:"not null;index" json:"order_id"`
	Provider PaymentProvider `gorm:"type:varchar(20);not null;index:idx_payments_provider_tx" json:"provider"`
	Method   PaymentMethod   `gorm:"type:varchar(20);not null" json:"method"`
	Amount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status   PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"status"`

	//プロバイダ側の取引ID（Webhookとの突合キー）
	TransactionID string `gorm:"type:varchar(255);index:idx_payments_provider_tx" json:"transaction_id"`

	PaidAt *time.Time `json:"paid_at,omitempty"`

	//監査用にそのまま保存する
	RawWebhookData string `gorm:"type:text" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
