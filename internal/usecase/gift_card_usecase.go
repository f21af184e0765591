package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type GiftCardUsecase struct {
	tx      repo.TransactionManager
	now     func() time.Time
	newCode func() string
}

func NewGiftCardUsecase(tx repo.TransactionManager) *GiftCardUsecase {
	return &GiftCardUsecase{tx: tx, now: time.Now, newCode: newGiftCardCode}
}

// GC-XXXX-XXXX-XXXX
func newGiftCardCode() string {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "GC-" + hex[0:4] + "-" + hex[4:8] + "-" + hex[8:12]
}

type CheckGiftCardOutput struct {
	Code           string          `json:"code"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	ExpiryDate     *time.Time      `json:"expiry_date,omitempty"`
}

// POST /gift-cards/check
func (u *GiftCardUsecase) Check(ctx context.Context, code string) (CheckGiftCardOutput, error) {
	code = normalizeCode(code)
	if code == "" {
		return CheckGiftCardOutput{}, ErrValidation("code required")
	}

	var out CheckGiftCardOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		g, err := r.GiftCards().FindByCode(ctx, code)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound("gift card")
		}
		if err != nil {
			return ErrInternal(err)
		}
		if !g.IsUsable(u.now()) {
			return ErrValidation("gift card is not usable")
		}
		out = CheckGiftCardOutput{Code: g.Code, CurrentBalance: g.CurrentBalance, ExpiryDate: g.ExpiryDate}
		return nil
	})
	if err != nil {
		return CheckGiftCardOutput{}, err
	}
	return out, nil
}

type AdminCreateGiftCardInput struct {
	// 空ならランダム
	Code        string
	Balance     decimal.Decimal
	ExpiryDate  *time.Time
	PurchasedBy *int64
}

func (u *GiftCardUsecase) AdminCreate(ctx context.Context, adminUserID int64, in AdminCreateGiftCardInput) (model.GiftCard, error) {
	if adminUserID <= 0 {
		return model.GiftCard{}, ErrUnauthorized()
	}
	if !in.Balance.IsPositive() {
		return model.GiftCard{}, ErrValidation("balance must be > 0")
	}
	if in.ExpiryDate != nil && !in.ExpiryDate.After(u.now()) {
		return model.GiftCard{}, ErrValidation("expiry_date must be in the future")
	}
	code := normalizeCode(in.Code)
	if code == "" {
		code = u.newCode()
	}

	var out model.GiftCard
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		balance := in.Balance.Round(2)
		g, err := r.GiftCards().Create(ctx, model.GiftCard{
			Code:           code,
			InitialBalance: balance,
			CurrentBalance: balance,
			ExpiryDate:     in.ExpiryDate,
			IsActive:       true,
			PurchasedBy:    in.PurchasedBy,
		})
		if errors.Is(err, repo.ErrDuplicateKey) {
			return ErrValidation("gift card code already exists")
		}
		if err != nil {
			return ErrInternal(err)
		}
		out = g
		return nil
	})
	if err != nil {
		return model.GiftCard{}, err
	}
	return out, nil
}

// 利用履歴
func (u *GiftCardUsecase) AdminUsages(ctx context.Context, code string) ([]model.GiftCardUsage, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, ErrValidation("code required")
	}
	var out []model.GiftCardUsage
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		g, err := r.GiftCards().FindByCode(ctx, code)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound("gift card")
		}
		if err != nil {
			return ErrInternal(err)
		}
		out, err = r.GiftCards().ListUsages(ctx, g.ID)
		if err != nil {
			return ErrInternal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
