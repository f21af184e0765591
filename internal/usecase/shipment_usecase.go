package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"
)

type ShipmentUsecase struct {
	tx  repo.TransactionManager
	now func() time.Time
}

func NewShipmentUsecase(tx repo.TransactionManager) *ShipmentUsecase {
	return &ShipmentUsecase{tx: tx, now: time.Now}
}

type AdminCreateShipmentInput struct {
	OrderID        int64
	Courier        string
	TrackingNumber string
}

// 支払済みの注文にだけ作れる。住所はこの時点で固定
func (u *ShipmentUsecase) AdminCreate(ctx context.Context, adminUserID int64, in AdminCreateShipmentInput) (model.Shipment, error) {
	if adminUserID <= 0 {
		return model.Shipment{}, ErrUnauthorized()
	}
	if in.OrderID <= 0 {
		return model.Shipment{}, ErrValidation("invalid order_id")
	}
	courier := strings.TrimSpace(in.Courier)
	tracking := strings.TrimSpace(in.TrackingNumber)
	if courier == "" || tracking == "" {
		return model.Shipment{}, ErrValidation("courier and tracking_number required")
	}

	var out model.Shipment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, in.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound("order")
		}
		if err != nil {
			return ErrInternal(err)
		}
		if o.Status == model.OrderStatusCancelled {
			return ErrValidation("order is cancelled")
		}
		if !o.IsPaid {
			return ErrValidation("order is not paid")
		}

		now := u.now()
		out, err = r.Shipments().Create(ctx, model.Shipment{
			OrderID:        o.ID,
			Courier:        courier,
			TrackingNumber: tracking,
			Status:         model.ShipmentStatusPreparing,
			Address:        o.ShippingAddress,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return ErrInternal(err)
		}
		return nil
	})
	if err != nil {
		return model.Shipment{}, err
	}
	return out, nil
}

type ShipmentListOutput struct {
	Items []model.Shipment `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

func (u *ShipmentUsecase) List(ctx context.Context, f repo.ShipmentListFilter) (ShipmentListOutput, error) {
	if f.Page < 1 {
		return ShipmentListOutput{}, ErrValidation("invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return ShipmentListOutput{}, ErrValidation("invalid limit")
	}
	if f.Status != "" && !model.ShipmentStatus(f.Status).IsValid() {
		return ShipmentListOutput{}, ErrValidation("invalid status")
	}

	out := ShipmentListOutput{Page: f.Page, Limit: f.Limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		items, total, err := r.Shipments().List(ctx, f)
		if err != nil {
			return ErrInternal(err)
		}
		out.Items = items
		out.Total = total
		return nil
	})
	if err != nil {
		return ShipmentListOutput{}, err
	}
	return out, nil
}

// 本人か管理者
func (u *ShipmentUsecase) Get(ctx context.Context, actor Actor, shipmentID int64) (model.Shipment, error) {
	if actor.UserID <= 0 {
		return model.Shipment{}, ErrUnauthorized()
	}
	if shipmentID <= 0 {
		return model.Shipment{}, ErrValidation("invalid id")
	}

	var out model.Shipment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		sh, err := r.Shipments().FindByID(ctx, shipmentID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound("shipment")
		}
		if err != nil {
			return ErrInternal(err)
		}
		if _, err := findVisibleOrder(ctx, r, actor, sh.OrderID); err != nil {
			if IsCode(err, CodeNotFound) {
				return ErrNotFound("shipment")
			}
			return err
		}
		out = sh
		return nil
	})
	if err != nil {
		return model.Shipment{}, err
	}
	return out, nil
}

// 出荷の遷移に合わせて、注文も進められるなら進める
var orderStatusForShipment = map[model.ShipmentStatus]model.OrderStatus{
	model.ShipmentStatusInTransit: model.OrderStatusShipped,
	model.ShipmentStatusDelivered: model.OrderStatusDelivered,
}

func (u *ShipmentUsecase) AdminUpdateStatus(ctx context.Context, adminUserID int64, shipmentID int64, status string) (model.Shipment, error) {
	if adminUserID <= 0 {
		return model.Shipment{}, ErrUnauthorized()
	}
	if shipmentID <= 0 {
		return model.Shipment{}, ErrValidation("invalid id")
	}
	next := model.ShipmentStatus(strings.ToLower(strings.TrimSpace(status)))
	if !next.IsValid() {
		return model.Shipment{}, ErrValidation("invalid status")
	}

	var out model.Shipment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		sh, err := r.Shipments().FindByID(ctx, shipmentID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound("shipment")
		}
		if err != nil {
			return ErrInternal(err)
		}
		if !sh.Status.CanTransitionTo(next) {
			return ErrInvalidTransition(string(sh.Status), string(next))
		}

		now := u.now()
		ok, err := r.Shipments().UpdateStatus(ctx, shipmentID, sh.Status, next, now)
		if err != nil {
			return ErrInternal(err)
		}
		if !ok {
			return ErrInvalidTransition(string(sh.Status), string(next))
		}

		if orderNext, ok := orderStatusForShipment[next]; ok {
			o, err := r.Orders().FindByIDForUpdate(ctx, sh.OrderID)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return ErrInternal(err)
			}
			if err == nil && o.Status.CanTransitionTo(orderNext) {
				if _, err := r.Orders().UpdateStatus(ctx, o.ID, o.Status, orderNext, now); err != nil {
					return ErrInternal(err)
				}
			}
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateShipment,
			ResourceType: model.AuditResourceShipment,
			ResourceID:   shipmentID,
			BeforeJSON:   statusJSON(sh.Status),
			AfterJSON:    statusJSON(next),
			CreatedAt:    now,
		}); err != nil {
			return ErrInternal(err)
		}

		out, err = r.Shipments().FindByID(ctx, shipmentID)
		if err != nil {
			return ErrInternal(err)
		}
		return nil
	})
	if err != nil {
		return model.Shipment{}, err
	}
	return out, nil
}
