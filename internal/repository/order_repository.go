package repository

import (
	"context"
	"time"

	"ecshop/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	// 行ロック付き（SELECT ... FOR UPDATE）。Tx内で使う
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)

	Create(ctx context.Context, order model.Order) (model.Order, error)

	// statusがfromのときだけtoへ。atは遷移に対応する時刻カラムに入る
	UpdateStatus(ctx context.Context, orderID int64, from, to model.OrderStatus, at time.Time) (bool, error)

	// 未払いかつpendingのときだけ支払済みにする（決済の排他）
	ClaimPaid(ctx context.Context, orderID int64, at time.Time) (bool, error)
	// 支払済みかつ未減算のときだけフラグを立てる
	ClaimStockDecrement(ctx context.Context, orderID int64) (bool, error)
	// 在庫を戻したとき
	ClearStockDecremented(ctx context.Context, orderID int64) (bool, error)
}
