package auth

import (
	"context"
	"errors"
	"fmt"

	"ecshop/internal/domain/model"
	"ecshop/internal/repository"
)

// 対象ユーザーがいない
var ErrUserNotFound = errors.New("user not found")

type ForceLogoutOutput struct {
	UserID       int64 `json:"user_id"`
	TokenVersion int   `json:"token_version"`
}

// token_versionを上げて発行済みJWTを無効にする
type ForceLogoutUsecase struct {
	userRepo  repository.UserRepository
	auditRepo repository.AuditLogRepository
	clock     Clock
}

func NewForceLogoutUsecase(userRepo repository.UserRepository, auditRepo repository.AuditLogRepository, clock Clock) *ForceLogoutUsecase {
	return &ForceLogoutUsecase{userRepo: userRepo, auditRepo: auditRepo, clock: clock}
}

func (u *ForceLogoutUsecase) Execute(ctx context.Context, adminUserID, userID int64) (ForceLogoutOutput, error) {
	before, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ForceLogoutOutput{}, ErrUserNotFound
		}
		return ForceLogoutOutput{}, err
	}

	if err := u.userRepo.IncrementTokenVersion(ctx, userID); err != nil {
		return ForceLogoutOutput{}, err
	}

	after := before.TokenVersion + 1
	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  adminUserID,
		Action:       model.AuditActionForceLogout,
		ResourceType: model.AuditResourceUser,
		ResourceID:   userID,
		BeforeJSON:   fmt.Sprintf(`{"token_version":%d}`, before.TokenVersion),
		AfterJSON:    fmt.Sprintf(`{"token_version":%d}`, after),
		CreatedAt:    u.clock.Now(),
	}); err != nil {
		return ForceLogoutOutput{}, err
	}

	return ForceLogoutOutput{UserID: userID, TokenVersion: after}, nil
}
