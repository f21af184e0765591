package repository

import (
	"context"
	"time"

	"ecshop/internal/domain/model"
)

type ShipmentListFilter struct {
	Status string
	Page   int
	Limit  int
}

type ShipmentRepository interface {
	Create(ctx context.Context, s model.Shipment) (model.Shipment, error)
	FindByID(ctx context.Context, id int64) (model.Shipment, error)
	FindByOrderID(ctx context.Context, orderID int64) ([]model.Shipment, error)
	List(ctx context.Context, f ShipmentListFilter) ([]model.Shipment, int64, error)
	// statusがfromのときだけ更新。in_transitでshipped_at、deliveredでdelivered_atを入れる
	UpdateStatus(ctx context.Context, id int64, from, to model.ShipmentStatus, at time.Time) (bool, error)
}
