package usecase

import (
	"context"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"
)

// 管理者操作ログの閲覧
type AuditLogUsecase struct {
	tx repo.TransactionManager
}

func NewAuditLogUsecase(tx repo.TransactionManager) *AuditLogUsecase {
	return &AuditLogUsecase{tx: tx}
}

var auditActions = map[model.AuditAction]struct{}{
	model.AuditActionUpdateStock:       {},
	model.AuditActionUpdateOrderStatus: {},
	model.AuditActionCancelOrder:       {},
	model.AuditActionUpdateShipment:    {},
	model.AuditActionForceLogout:       {},
}

var auditResources = map[model.AuditResourceType]struct{}{
	model.AuditResourceProduct:  {},
	model.AuditResourceOrder:    {},
	model.AuditResourceShipment: {},
	model.AuditResourceUser:     {},
}

type AuditLogListOutput struct {
	Items []model.AuditLog `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// 新しい順
func (u *AuditLogUsecase) List(ctx context.Context, f repo.AuditLogFilter) (AuditLogListOutput, error) {
	if f.Action != nil {
		if _, ok := auditActions[*f.Action]; !ok {
			return AuditLogListOutput{}, ErrValidation("invalid action")
		}
	}
	if f.ResourceType != nil {
		if _, ok := auditResources[*f.ResourceType]; !ok {
			return AuditLogListOutput{}, ErrValidation("invalid resource_type")
		}
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedFrom.After(*f.CreatedTo) {
		return AuditLogListOutput{}, ErrValidation("from must be before to")
	}
	if f.Page < 1 {
		return AuditLogListOutput{}, ErrValidation("invalid page")
	}
	if f.Limit < 1 || f.Limit > 200 {
		return AuditLogListOutput{}, ErrValidation("invalid limit")
	}

	out := AuditLogListOutput{Page: f.Page, Limit: f.Limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		logs, total, err := r.AuditLogs().List(ctx, f)
		if err != nil {
			return ErrInternal(err)
		}
		out.Items = logs
		out.Total = total
		return nil
	})
	if err != nil {
		return AuditLogListOutput{}, err
	}
	return out, nil
}
