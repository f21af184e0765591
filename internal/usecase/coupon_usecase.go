package usecase

import (
	"context"
	"errors"
	"time"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"

	"github.com/shopspring/decimal"
)

type CouponUsecase struct {
	tx  repo.TransactionManager
	now func() time.Time
}

func NewCouponUsecase(tx repo.TransactionManager) *CouponUsecase {
	return &CouponUsecase{tx: tx, now: time.Now}
}

type ValidateCouponOutput struct {
	Code           string          `json:"code"`
	DiscountType   string          `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// POST /coupons/validate（読み取りだけ）
func (u *CouponUsecase) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (ValidateCouponOutput, error) {
	code = normalizeCode(code)
	if code == "" {
		return ValidateCouponOutput{}, ErrValidation("code required")
	}
	if subtotal.IsNegative() {
		return ValidateCouponOutput{}, ErrValidation("subtotal must be >= 0")
	}

	var out ValidateCouponOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		c, err := r.Coupons().FindByCode(ctx, code)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound("coupon")
		}
		if err != nil {
			return ErrInternal(err)
		}
		if err := checkCoupon(c, subtotal, u.now()); err != nil {
			return err
		}
		out = ValidateCouponOutput{
			Code:           c.Code,
			DiscountType:   string(c.DiscountType),
			DiscountValue:  c.DiscountValue,
			DiscountAmount: CouponDiscount(c, subtotal),
		}
		return nil
	})
	if err != nil {
		return ValidateCouponOutput{}, err
	}
	return out, nil
}

type AdminCreateCouponInput struct {
	Code          string
	DiscountType  string
	DiscountValue decimal.Decimal
	MinPurchase   decimal.Decimal
	ExpiryDate    time.Time
	UsageLimit    *int64
}

func (u *CouponUsecase) AdminCreate(ctx context.Context, adminUserID int64, in AdminCreateCouponInput) (model.Coupon, error) {
	if adminUserID <= 0 {
		return model.Coupon{}, ErrUnauthorized()
	}
	code := normalizeCode(in.Code)
	if code == "" {
		return model.Coupon{}, ErrValidation("code required")
	}
	dt := model.DiscountType(in.DiscountType)
	switch dt {
	case model.DiscountTypePercentage:
		if in.DiscountValue.GreaterThan(hundred) {
			return model.Coupon{}, ErrValidation("percentage must be <= 100")
		}
	case model.DiscountTypeFixed:
	default:
		return model.Coupon{}, ErrValidation("invalid discount_type")
	}
	if !in.DiscountValue.IsPositive() {
		return model.Coupon{}, ErrValidation("discount_value must be > 0")
	}
	if in.MinPurchase.IsNegative() {
		return model.Coupon{}, ErrValidation("min_purchase must be >= 0")
	}
	if !in.ExpiryDate.After(u.now()) {
		return model.Coupon{}, ErrValidation("expiry_date must be in the future")
	}
	if in.UsageLimit != nil && *in.UsageLimit < 1 {
		return model.Coupon{}, ErrValidation("usage_limit must be >= 1")
	}

	var out model.Coupon
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		c, err := r.Coupons().Create(ctx, model.Coupon{
			Code:          code,
			DiscountType:  dt,
			DiscountValue: in.DiscountValue.Round(2),
			MinPurchase:   in.MinPurchase.Round(2),
			ExpiryDate:    in.ExpiryDate,
			UsageLimit:    in.UsageLimit,
			IsActive:      true,
		})
		if errors.Is(err, repo.ErrDuplicateKey) {
			return ErrValidation("coupon code already exists")
		}
		if err != nil {
			return ErrInternal(err)
		}
		out = c
		return nil
	})
	if err != nil {
		return model.Coupon{}, err
	}
	return out, nil
}
