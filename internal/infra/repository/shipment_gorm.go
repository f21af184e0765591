package repository

import (
	"context"
	"time"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"

	"gorm.io/gorm"
)

type ShipmentGormRepository struct {
	db *gorm.DB
}

func NewShipmentGormRepository(db *gorm.DB) *ShipmentGormRepository {
	return &ShipmentGormRepository{db: db}
}

func (r *ShipmentGormRepository) Create(ctx context.Context, s model.Shipment) (model.Shipment, error) {
	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		return model.Shipment{}, mapErr(err)
	}
	return s, nil
}

func (r *ShipmentGormRepository) FindByID(ctx context.Context, id int64) (model.Shipment, error) {
	var s model.Shipment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return model.Shipment{}, mapErr(err)
	}
	return s, nil
}

func (r *ShipmentGormRepository) FindByOrderID(ctx context.Context, orderID int64) ([]model.Shipment, error) {
	var list []model.Shipment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&list).Error; err != nil {
		return []model.Shipment{}, err
	}
	return list, nil
}

func (r *ShipmentGormRepository) List(ctx context.Context, f repo.ShipmentListFilter) ([]model.Shipment, int64, error) {
	f.Page, f.Limit = normalizePage(f.Page, f.Limit, 50, 100)

	q := r.db.WithContext(ctx).Model(&model.Shipment{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Shipment{}, 0, err
	}
	var list []model.Shipment
	if err := q.Order("id desc").Limit(f.Limit).Offset((f.Page - 1) * f.Limit).Find(&list).Error; err != nil {
		return []model.Shipment{}, 0, err
	}
	return list, total, nil
}

func (r *ShipmentGormRepository) UpdateStatus(ctx context.Context, id int64, from, to model.ShipmentStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to}
	switch to {
	case model.ShipmentStatusInTransit:
		updates["shipped_at"] = at
	case model.ShipmentStatusDelivered:
		updates["delivered_at"] = at
	}

	res := r.db.WithContext(ctx).Model(&model.Shipment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
