package usecase

import "ecshop/internal/domain/model"

// 認証済みの呼び出し元
type Actor struct {
	UserID int64
	Role   model.Role
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// 本人か管理者だけが見られる。他人のものは存在しない扱い
func (a Actor) canSee(ownerID int64) bool {
	return a.IsAdmin() || a.UserID == ownerID
}
