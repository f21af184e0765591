package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"
)

type AdminOrderUsecase struct {
	tx     repo.TransactionManager
	orders *OrderUsecase
	now    func() time.Time
}

func NewAdminOrderUsecase(tx repo.TransactionManager, orders *OrderUsecase) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, orders: orders, now: time.Now}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderListOutput{}, ErrValidation("invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, ErrValidation("invalid limit")
	}
	if f.Status != "" && !model.OrderStatus(f.Status).IsValid() {
		return OrderListOutput{}, ErrValidation("invalid status")
	}

	out := OrderListOutput{Page: f.Page, Limit: f.Limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return ErrInternal(err)
		}
		out.Items, err = withItems(ctx, r, orders)
		out.Total = total
		return err
	})
	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

// ステータス更新。遷移表にない変更は409
// cancelledはキャンセル処理（在庫戻し・返金アラート）に回す
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (model.Order, error) {
	if actorAdminUserID <= 0 {
		return model.Order{}, ErrUnauthorized()
	}
	if orderID <= 0 {
		return model.Order{}, ErrValidation("invalid id")
	}

	next := model.OrderStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if !next.IsValid() {
		return model.Order{}, ErrValidation("invalid status")
	}
	if next == model.OrderStatusCancelled {
		return u.orders.Cancel(ctx, Actor{UserID: actorAdminUserID, Role: model.RoleAdmin}, orderID)
	}

	var out model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound("order")
		}
		if err != nil {
			return ErrInternal(err)
		}
		if !o.Status.CanTransitionTo(next) {
			return ErrInvalidTransition(string(o.Status), string(next))
		}
		// 未払いのまま処理中にはしない
		if next == model.OrderStatusProcessing && !o.IsPaid {
			return ErrValidation("order is not paid")
		}

		now := u.now()
		ok, err := r.Orders().UpdateStatus(ctx, orderID, o.Status, next, now)
		if err != nil {
			return ErrInternal(err)
		}
		if !ok {
			return ErrInvalidTransition(string(o.Status), string(next))
		}

		// ★監査ログ（UPDATE_ORDER_STATUS）
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   statusJSON(o.Status),
			AfterJSON:    statusJSON(next),
			CreatedAt:    now,
		}); err != nil {
			return ErrInternal(err)
		}

		out, err = r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return ErrInternal(err)
		}
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return out, nil
}

// 期間パラメータ（handlerで使う）
func ParseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
