package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	TopicOrderConfirmed = "order.confirmed"
	TopicOpsAlerts      = "ops.alerts"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

type confirmationMessage struct {
	Email string        `json:"email"`
	Order OrderSnapshot `json:"order"`
}

// メール送信ワーカー向けにKafkaへ流す
type KafkaPublisher struct {
	log      *slog.Logger
	producer Producer
}

func NewKafkaPublisher(log *slog.Logger, producer Producer) *KafkaPublisher {
	return &KafkaPublisher{log: log, producer: producer}
}

func (p *KafkaPublisher) SendOrderConfirmation(ctx context.Context, email string, order OrderSnapshot) error {
	payload, err := json.Marshal(confirmationMessage{Email: email, Order: order})
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic:   TopicOrderConfirmed,
		Key:     []byte(order.OrderNumber),
		Value:   payload,
		Headers: traceHeaders(ctx, "order_confirmed"),
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	p.log.Info("order confirmation published", "order_number", order.OrderNumber)
	return nil
}

// アラートは送れなくてもエラーログには必ず残す
func (p *KafkaPublisher) Alert(ctx context.Context, a Alert) {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	p.log.Error("ops alert",
		"kind", a.Kind,
		"order_id", a.OrderID,
		"payment_id", a.PaymentID,
		"message", a.Message,
	)

	payload, err := json.Marshal(a)
	if err != nil {
		p.log.Error("alert marshal failed", "err", err)
		return
	}
	msg := kafka.Message{
		Topic:   TopicOpsAlerts,
		Key:     []byte(strconv.FormatInt(a.OrderID, 10)),
		Value:   payload,
		Headers: traceHeaders(ctx, string(a.Kind)),
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("alert publish failed", "kind", a.Kind, "err", err)
	}
}

func traceHeaders(ctx context.Context, eventType string) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := []kafka.Header{{Key: "event_type", Value: []byte(eventType)}}
	if tp := carrier.Get("traceparent"); tp != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(tp)})
	}
	return headers
}
