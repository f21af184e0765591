package repository

import (
	"context"
	"time"

	"ecshop/internal/domain/model"

	"github.com/shopspring/decimal"
)

type GiftCardRepository interface {
	FindByCode(ctx context.Context, code string) (model.GiftCard, error)
	Create(ctx context.Context, g model.GiftCard) (model.GiftCard, error)
	// 残高が足りるときだけ減算
	DebitIfEnough(ctx context.Context, giftCardID int64, amount decimal.Decimal, now time.Time) (bool, error)
	CreateUsage(ctx context.Context, u model.GiftCardUsage) error
	ListUsages(ctx context.Context, giftCardID int64) ([]model.GiftCardUsage, error)
}
