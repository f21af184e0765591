package repository

import (
	"context"
	"time"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"

	"gorm.io/gorm"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) Create(ctx context.Context, p model.Payment) (model.Payment, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Payment{}, mapErr(err)
	}
	return p, nil
}

func (r *PaymentGormRepository) FindByID(ctx context.Context, id int64) (model.Payment, error) {
	var p model.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return model.Payment{}, mapErr(err)
	}
	return p, nil
}

func (r *PaymentGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.Payment, error) {
	var list []model.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&list).Error; err != nil {
		return []model.Payment{}, err
	}
	return list, nil
}

// Webhookの突合はproviderと取引IDの組で行う
func (r *PaymentGormRepository) FindByTransactionID(ctx context.Context, provider model.PaymentProvider, txID string) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).
		Where("provider = ? AND transaction_id = ?", provider, txID).
		Order("id desc").
		First(&p).Error
	if err != nil {
		return model.Payment{}, mapErr(err)
	}
	return p, nil
}

func (r *PaymentGormRepository) List(ctx context.Context, f repo.PaymentListFilter) ([]model.Payment, int64, error) {
	f.Page, f.Limit = normalizePage(f.Page, f.Limit, 50, 100)

	q := r.db.WithContext(ctx).Model(&model.Payment{})
	if f.Provider != "" {
		q = q.Where("provider = ?", f.Provider)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Payment{}, 0, err
	}
	var list []model.Payment
	if err := q.Order("id desc").Limit(f.Limit).Offset((f.Page - 1) * f.Limit).Find(&list).Error; err != nil {
		return []model.Payment{}, 0, err
	}
	return list, total, nil
}

func (r *PaymentGormRepository) MarkPaid(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":  model.PaymentStatusPaid,
			"paid_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PaymentGormRepository) MarkFailed(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusPending).
		Update("status", model.PaymentStatusFailed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PaymentGormRepository) SaveWebhookData(ctx context.Context, id int64, raw string) error {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ?", id).
		Update("raw_webhook_data", raw)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
