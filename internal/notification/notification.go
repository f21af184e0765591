package notification

import (
	"context"
	"log/slog"
	"time"
)

// 確認メール用の注文スナップショット
type OrderSnapshot struct {
	OrderID       int64         `json:"order_id"`
	OrderNumber   string        `json:"order_number"`
	UserID        int64         `json:"user_id"`
	Items         []ItemLine    `json:"items"`
	ItemsSubtotal string        `json:"items_subtotal"`
	DiscountTotal string        `json:"discount_total"`
	ShippingFee   string        `json:"shipping_fee"`
	TotalAmount   string        `json:"total_amount"`
	PaymentMethod string        `json:"payment_method"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	ShipTo        ShipToAddress `json:"ship_to"`
}

type ItemLine struct {
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type ShipToAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// 送信失敗は呼び出し側でログに残すだけ
type Sender interface {
	SendOrderConfirmation(ctx context.Context, email string, order OrderSnapshot) error
}

type AlertKind string

const (
	// 決済後に在庫が確保できなかった
	AlertStockReservationFailed AlertKind = "stock_reservation_failed"
	// 支払済み注文のキャンセルなど、手動返金が必要
	AlertRefundRequired AlertKind = "refund_required"
	AlertWebhookFailed  AlertKind = "webhook_failed"
	// 決済の状態とプロバイダの通知が食い違う
	AlertPaymentStateConflict AlertKind = "payment_state_conflict"
)

// 運用者向けの通知
type Alert struct {
	Kind      AlertKind         `json:"kind"`
	OrderID   int64             `json:"order_id,omitempty"`
	PaymentID int64             `json:"payment_id,omitempty"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	At        time.Time         `json:"at"`
}

type Alerter interface {
	Alert(ctx context.Context, a Alert)
}

// Kafkaがないとき
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendOrderConfirmation(_ context.Context, email string, order OrderSnapshot) error {
	s.log.Info("order confirmation",
		"email", email,
		"order_number", order.OrderNumber,
		"total", order.TotalAmount,
	)
	return nil
}

type LogAlerter struct {
	log *slog.Logger
}

func NewLogAlerter(log *slog.Logger) *LogAlerter {
	return &LogAlerter{log: log}
}

func (a *LogAlerter) Alert(_ context.Context, al Alert) {
	a.log.Error("ops alert",
		"kind", al.Kind,
		"order_id", al.OrderID,
		"payment_id", al.PaymentID,
		"message", al.Message,
	)
}
