//go:build integration

package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ecshop/internal/domain/model"
	"ecshop/internal/infra/db"
	repo "ecshop/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("ecshop"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	gdb, err := db.Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func TestPostgres_ConcurrentStockClaims(t *testing.T) {
	gdb := startPostgres(t)
	ctx := context.Background()
	tm := NewTxManagerGorm(gdb)

	p, err := NewProductGormRepository(gdb).Create(ctx, model.Product{
		Slug: "last-units", Name: "Last Units", Price: decimal.NewFromInt(100), Stock: 3, IsActive: true,
	})
	require.NoError(t, err)

	var won atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tm.WithinTx(ctx, func(r repo.TxRepos) error {
				ok, err := r.Inventory().DecreaseStockIfEnough(ctx, p.ID, 1)
				if err == nil && ok {
					won.Add(1)
				}
				return err
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), won.Load())
	got, err := NewProductGormRepository(gdb).FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Stock)
}

func TestPostgres_CouponLimitAndDuplicate(t *testing.T) {
	gdb := startPostgres(t)
	ctx := context.Background()
	coupons := NewCouponGormRepository(gdb)
	limit := int64(1)

	c, err := coupons.Create(ctx, model.Coupon{
		Code: "once", DiscountType: model.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(10),
		ExpiryDate: time.Now().Add(time.Hour), UsageLimit: &limit, IsActive: true,
	})
	require.NoError(t, err)

	_, err = coupons.Create(ctx, model.Coupon{
		Code: "ONCE", DiscountType: model.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(5),
		ExpiryDate: time.Now().Add(time.Hour), IsActive: true,
	})
	assert.ErrorIs(t, err, repo.ErrDuplicateKey)

	var won atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := coupons.IncrementUsageIfAvailable(ctx, c.ID, time.Now())
			if err == nil && ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), won.Load())
}

func TestPostgres_OrderClaimPaidOnce(t *testing.T) {
	gdb := startPostgres(t)
	ctx := context.Background()
	orders := NewOrderGormRepository(gdb)

	o, err := orders.Create(ctx, model.Order{
		OrderNumber: "ORD-INTEGRATION-1", UserID: 1,
		ItemsSubtotal: decimal.NewFromInt(100), DiscountTotal: decimal.Zero,
		ShippingFee: decimal.NewFromInt(50), TotalAmount: decimal.NewFromInt(150),
		PaymentMethod: string(model.PaymentMethodCard), Status: model.OrderStatusPending,
		PlacedAt: time.Now(),
	})
	require.NoError(t, err)

	first, err := orders.ClaimPaid(ctx, o.ID, time.Now())
	require.NoError(t, err)
	second, err := orders.ClaimPaid(ctx, o.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)

	claimed, err := orders.ClaimStockDecrement(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	assert.True(t, got.StockDecremented)
	assert.Equal(t, model.OrderStatusProcessing, got.Status)
}

func TestPostgres_CancelledOrderStockNotClaimed(t *testing.T) {
	gdb := startPostgres(t)
	ctx := context.Background()
	orders := NewOrderGormRepository(gdb)

	o, err := orders.Create(ctx, model.Order{
		OrderNumber: "ORD-INTEGRATION-2", UserID: 1,
		ItemsSubtotal: decimal.NewFromInt(100), DiscountTotal: decimal.Zero,
		ShippingFee: decimal.NewFromInt(50), TotalAmount: decimal.NewFromInt(150),
		PaymentMethod: string(model.PaymentMethodCard), Status: model.OrderStatusPending,
		PlacedAt: time.Now(),
	})
	require.NoError(t, err)

	paid, err := orders.ClaimPaid(ctx, o.ID, time.Now())
	require.NoError(t, err)
	require.True(t, paid)
	cancelled, err := orders.UpdateStatus(ctx, o.ID, model.OrderStatusProcessing, model.OrderStatusCancelled, time.Now())
	require.NoError(t, err)
	require.True(t, cancelled)

	claimed, err := orders.ClaimStockDecrement(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, got.StockDecremented)
}
