package repository

import (
	"context"
	"time"

	"ecshop/internal/domain/model"
)

// 管理者操作ログの絞り込み。Page/Limitは注文・決済一覧と同じ
type AuditLogFilter struct {
	ActorUserID  *int64
	Action       *model.AuditAction
	ResourceType *model.AuditResourceType
	ResourceID   *int64
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Page         int
	Limit        int
}

type AuditLogRepository interface {
	// 在庫・注文・出荷・ユーザーへの管理者操作を1件記録
	Create(ctx context.Context, log model.AuditLog) error
	// 新しい順。totalは絞り込み後の件数
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, int64, error)
}
