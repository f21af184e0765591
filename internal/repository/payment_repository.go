package repository

import (
	"context"
	"time"

	"ecshop/internal/domain/model"
)

type PaymentListFilter struct {
	Provider string
	Status   string
	Page     int
	Limit    int
}

type PaymentRepository interface {
	Create(ctx context.Context, p model.Payment) (model.Payment, error)
	FindByID(ctx context.Context, id int64) (model.Payment, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.Payment, error)
	FindByTransactionID(ctx context.Context, provider model.PaymentProvider, txID string) (model.Payment, error)
	List(ctx context.Context, f PaymentListFilter) ([]model.Payment, int64, error)

	// pendingのときだけ遷移する
	MarkPaid(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64) (bool, error)

	SaveWebhookData(ctx context.Context, id int64, raw string) error
}
