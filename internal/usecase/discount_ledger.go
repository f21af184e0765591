package usecase

import (
	"context"
	"time"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"

	"github.com/shopspring/decimal"
)

// クーポン利用回数とギフトカード残高の更新。呼び出し側のTx内で使う
type DiscountLedger struct {
	now func() time.Time
}

func NewDiscountLedger() DiscountLedger {
	return DiscountLedger{now: time.Now}
}

// 条件付きUPDATEで+1。0件なら上限に達した
func (l DiscountLedger) RedeemCoupon(ctx context.Context, r repo.TxRepos, c model.Coupon) error {
	ok, err := r.Coupons().IncrementUsageIfAvailable(ctx, c.ID, l.now())
	if err != nil {
		return ErrInternal(err)
	}
	if !ok {
		return ErrValidation("coupon usage limit reached")
	}
	return nil
}

// 注文作成後に呼ぶ（利用履歴に注文IDを入れるため）
func (l DiscountLedger) RedeemGiftCard(ctx context.Context, r repo.TxRepos, g model.GiftCard, amount decimal.Decimal, userID, orderID int64) error {
	if !amount.IsPositive() {
		return nil
	}
	now := l.now()
	ok, err := r.GiftCards().DebitIfEnough(ctx, g.ID, amount, now)
	if err != nil {
		return ErrInternal(err)
	}
	if !ok {
		return ErrValidation("insufficient gift card balance")
	}
	if err := r.GiftCards().CreateUsage(ctx, model.GiftCardUsage{
		GiftCardID: g.ID,
		UserID:     userID,
		OrderID:    orderID,
		Amount:     amount,
		UsedAt:     now,
	}); err != nil {
		return ErrInternal(err)
	}
	return nil
}
