package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)
	return db, mock
}

var at = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestInventory_DecreaseStockIfEnough(t *testing.T) {
	db, mock := newMockDB(t)
	inv := NewInventoryGormRepository(db)

	mock.ExpectExec(`UPDATE "products" SET "stock"=stock - \$1.*WHERE \(id = \$\d+ AND stock >= \$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := inv.DecreaseStockIfEnough(context.Background(), 7, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	// 在庫不足は0行
	mock.ExpectExec(`UPDATE "products" SET "stock"=stock - \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = inv.DecreaseStockIfEnough(context.Background(), 7, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec(`UPDATE "products"`).WillReturnError(errors.New("conn reset"))
	_, err = inv.DecreaseStockIfEnough(context.Background(), 7, 1)
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInventory_DecreaseVariantStockIfEnough(t *testing.T) {
	db, mock := newMockDB(t)
	inv := NewInventoryGormRepository(db)

	mock.ExpectExec(`UPDATE "products" SET "stock"=stock - \$1.*EXISTS \(SELECT 1 FROM product_variants`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "product_variants" SET "stock"=stock - \$1.*WHERE id = \$\d+ AND product_id = \$\d+ AND stock >= \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := inv.DecreaseVariantStockIfEnough(context.Background(), 7, 11, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// 商品側で弾かれたらバリアントは触らない
	mock.ExpectExec(`UPDATE "products"`).WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = inv.DecreaseVariantStockIfEnough(context.Background(), 7, 11, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInventory_SetStockMissingProduct(t *testing.T) {
	db, mock := newMockDB(t)
	inv := NewInventoryGormRepository(db)

	mock.ExpectExec(`UPDATE "products" SET "stock"=\$1`).WillReturnResult(sqlmock.NewResult(0, 0))
	err := inv.SetStock(context.Background(), 404, 3)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCoupon_IncrementUsageIfAvailable(t *testing.T) {
	db, mock := newMockDB(t)
	coupons := NewCouponGormRepository(db)

	mock.ExpectExec(`UPDATE "coupons" SET "usage_count"=usage_count \+ \$1.*expiry_date > \$\d+.*\(usage_limit IS NULL OR usage_count < usage_limit\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := coupons.IncrementUsageIfAvailable(context.Background(), 3, at)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`UPDATE "coupons"`).WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = coupons.IncrementUsageIfAvailable(context.Background(), 3, at)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCoupon_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	coupons := NewCouponGormRepository(db)

	mock.ExpectQuery(`INSERT INTO "coupons"`).WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err := coupons.Create(context.Background(), model.Coupon{Code: "spring", DiscountType: model.DiscountTypeFixed})
	assert.ErrorIs(t, err, repo.ErrDuplicateKey)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCoupon_FindByCodeNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	coupons := NewCouponGormRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "coupons" WHERE code = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := coupons.FindByCode(context.Background(), "spring")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGiftCard_DebitIfEnough(t *testing.T) {
	db, mock := newMockDB(t)
	cards := NewGiftCardGormRepository(db)

	mock.ExpectExec(`UPDATE "gift_cards" SET "current_balance"=current_balance - \$1.*current_balance >= \$\d+.*\(expiry_date IS NULL OR expiry_date > \$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err := cards.DebitIfEnough(context.Background(), 5, decimal.RequireFromString("40.00"), at)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrder_Claims(t *testing.T) {
	db, mock := newMockDB(t)
	orders := NewOrderGormRepository(db)

	mock.ExpectExec(`UPDATE "orders" SET .*"is_paid"=\$\d+.*WHERE \(?id = \$\d+ AND is_paid = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := orders.ClaimPaid(context.Background(), 9, at)
	require.NoError(t, err)
	assert.True(t, ok)

	// 2回目は負ける
	mock.ExpectExec(`UPDATE "orders" SET .*"is_paid"`).WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = orders.ClaimPaid(context.Background(), 9, at)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec(`UPDATE "orders" SET "stock_decremented"=\$1.*stock_decremented = \$\d+ AND is_paid = \$\d+ AND status <> \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err = orders.ClaimStockDecrement(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`UPDATE "orders" SET .*"status"=\$\d+.*WHERE \(?id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = orders.UpdateStatus(context.Background(), 9, model.OrderStatusPending, model.OrderStatusCancelled, at)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTxManagerGorm(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "products"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()
	err := tm.WithinTx(context.Background(), func(r repo.TxRepos) error {
		if _, err := r.Inventory().DecreaseStockIfEnough(context.Background(), 1, 1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "products"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	err = tm.WithinTx(context.Background(), func(r repo.TxRepos) error {
		_, err := r.Inventory().DecreaseStockIfEnough(context.Background(), 1, 1)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	assert.ErrorIs(t, mapErr(gorm.ErrRecordNotFound), repo.ErrNotFound)
	assert.ErrorIs(t, mapErr(gorm.ErrDuplicatedKey), repo.ErrDuplicateKey)
	assert.ErrorIs(t, mapErr(&pgconn.PgError{Code: "23505"}), repo.ErrDuplicateKey)
	other := &pgconn.PgError{Code: "23514"}
	assert.Equal(t, error(other), mapErr(other))
}

func TestNormalizePage(t *testing.T) {
	page, limit := normalizePage(0, 0, 20, 100)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)
	page, limit = normalizePage(3, 500, 20, 100)
	assert.Equal(t, 3, page)
	assert.Equal(t, 20, limit)
}

func TestAuditLog_ListCountsBeforePaging(t *testing.T) {
	db, mock := newMockDB(t)
	logs := NewAuditLogGormRepository(db)

	rt := model.AuditResourceOrder
	mock.ExpectQuery(`SELECT count\(\*\) FROM "audit_logs" WHERE resource_type = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT \* FROM "audit_logs" WHERE resource_type = \$1 ORDER BY id desc LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "action", "resource_type", "resource_id"}).
			AddRow(12, string(model.AuditActionCancelOrder), string(rt), 7).
			AddRow(11, string(model.AuditActionUpdateOrderStatus), string(rt), 7))

	got, total, err := logs.List(context.Background(), repo.AuditLogFilter{ResourceType: &rt, Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, got, 2)
	assert.Equal(t, model.AuditActionCancelOrder, got[0].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderItem_ListByOrderIDsGroupsByOrder(t *testing.T) {
	db, mock := newMockDB(t)
	items := NewOrderItemGormRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "order_items" WHERE order_id IN \(\$1,\$2\) ORDER BY order_id asc, id asc`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "quantity"}).
			AddRow(1, 4, 2).
			AddRow(2, 4, 1).
			AddRow(3, 5, 3))

	got, err := items.ListByOrderIDs(context.Background(), []int64{4, 5})
	require.NoError(t, err)
	require.Len(t, got[4], 2)
	require.Len(t, got[5], 1)
	assert.Equal(t, int64(3), got[5][0].Quantity)

	// 空なら問い合わせない
	empty, err := items.ListByOrderIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	require.NoError(t, mock.ExpectationsWereMet())
}
