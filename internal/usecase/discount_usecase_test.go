package usecase

import (
	"context"
	"testing"
	"time"

	"ecshop/internal/domain/model"
	"ecshop/internal/repository/repotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCouponUsecase_Validate(t *testing.T) {
	store := repotest.NewStore()
	store.SeedCoupon(model.Coupon{
		Code: "TENOFF", DiscountType: model.DiscountTypePercentage, DiscountValue: dec("10"),
		MinPurchase: dec("100"), ExpiryDate: fixedNow.Add(time.Hour), IsActive: true,
	})
	uc := NewCouponUsecase(store)
	uc.now = func() time.Time { return fixedNow }

	out, err := uc.Validate(context.Background(), "tenoff", dec("200"))
	require.NoError(t, err)
	assert.Equal(t, "TENOFF", out.Code)
	assert.Equal(t, "20.00", out.DiscountAmount.StringFixed(2))

	_, err = uc.Validate(context.Background(), "TENOFF", dec("50"))
	requireCode(t, err, CodeValidation)

	_, err = uc.Validate(context.Background(), "MISSING", dec("200"))
	requireCode(t, err, CodeNotFound)

	_, err = uc.Validate(context.Background(), "", dec("200"))
	requireCode(t, err, CodeValidation)

	uc.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	_, err = uc.Validate(context.Background(), "TENOFF", dec("200"))
	requireCode(t, err, CodeValidation)
}

func TestCouponUsecase_AdminCreate(t *testing.T) {
	store := repotest.NewStore()
	uc := NewCouponUsecase(store)
	uc.now = func() time.Time { return fixedNow }
	valid := AdminCreateCouponInput{
		Code: "spring", DiscountType: "percentage", DiscountValue: dec("15"),
		ExpiryDate: fixedNow.Add(24 * time.Hour), UsageLimit: ptr[int64](100),
	}

	c, err := uc.AdminCreate(context.Background(), 900, valid)
	require.NoError(t, err)
	assert.Equal(t, "SPRING", c.Code)
	assert.True(t, c.IsActive)

	_, err = uc.AdminCreate(context.Background(), 900, valid)
	requireCode(t, err, CodeValidation)

	bad := []AdminCreateCouponInput{
		{Code: "X1", DiscountType: "percentage", DiscountValue: dec("120"), ExpiryDate: fixedNow.Add(time.Hour)},
		{Code: "X2", DiscountType: "bogo", DiscountValue: dec("5"), ExpiryDate: fixedNow.Add(time.Hour)},
		{Code: "X3", DiscountType: "fixed", DiscountValue: dec("0"), ExpiryDate: fixedNow.Add(time.Hour)},
		{Code: "X4", DiscountType: "fixed", DiscountValue: dec("5"), ExpiryDate: fixedNow.Add(-time.Hour)},
		{Code: "X5", DiscountType: "fixed", DiscountValue: dec("5"), ExpiryDate: fixedNow.Add(time.Hour), UsageLimit: ptr[int64](0)},
	}
	for _, in := range bad {
		_, err := uc.AdminCreate(context.Background(), 900, in)
		requireCode(t, err, CodeValidation)
	}
}

func TestGiftCardUsecase(t *testing.T) {
	env := newTestEnv(t)
	uc := NewGiftCardUsecase(env.store)
	uc.now = func() time.Time { return fixedNow }
	uc.newCode = func() string { return "GC-AAAA-BBBB-CCCC" }

	g, err := uc.AdminCreate(context.Background(), 900, AdminCreateGiftCardInput{Balance: dec("75.5")})
	require.NoError(t, err)
	assert.Equal(t, "GC-AAAA-BBBB-CCCC", g.Code)
	assert.Equal(t, "75.50", g.CurrentBalance.StringFixed(2))

	_, err = uc.AdminCreate(context.Background(), 900, AdminCreateGiftCardInput{Balance: dec("10")})
	requireCode(t, err, CodeValidation)

	_, err = uc.AdminCreate(context.Background(), 900, AdminCreateGiftCardInput{Code: "GC-NEG", Balance: dec("-1")})
	requireCode(t, err, CodeValidation)

	out, err := uc.Check(context.Background(), "gc-aaaa-bbbb-cccc")
	require.NoError(t, err)
	assert.Equal(t, "75.50", out.CurrentBalance.StringFixed(2))

	_, err = uc.Check(context.Background(), "GC-NOPE")
	requireCode(t, err, CodeNotFound)

	a := env.seedProduct("product-a", "100", 5)
	o := env.place(t, PlaceOrderInput{Lines: []CartLine{line(a, 1)}, GiftCardCode: g.Code})

	usages, err := uc.AdminUsages(context.Background(), g.Code)
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, o.ID, usages[0].OrderID)
	assert.Equal(t, env.user.ID, usages[0].UserID)

	// 使い切ったカード
	_, err = uc.Check(context.Background(), g.Code)
	requireCode(t, err, CodeValidation)
}

func TestGiftCardCodeFormat(t *testing.T) {
	code := newGiftCardCode()
	assert.Regexp(t, `^GC-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}$`, code)
	assert.NotEqual(t, code, newGiftCardCode())
}
