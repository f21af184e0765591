package repotest

import (
	"context"
	"strings"
	"sync"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"
)

// UserRepositoryのインメモリ実装
type Users struct {
	mu    sync.Mutex
	seq   int64
	users map[int64]model.User
}

func NewUsers() *Users {
	return &Users{users: map[int64]model.User{}}
}

func (u *Users) Create(_ context.Context, user *model.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, ex := range u.users {
		if ex.Email == user.Email {
			return repo.ErrDuplicateKey
		}
	}
	u.seq++
	user.ID = u.seq
	u.users[user.ID] = *user
	return nil
}

func (u *Users) FindByID(_ context.Context, userID int64) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[userID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &user, nil
}

func (u *Users) FindByEmail(_ context.Context, email string) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if user.Email == strings.ToLower(email) {
			cp := user
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (u *Users) Update(_ context.Context, user *model.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.users[user.ID]; !ok {
		return repo.ErrNotFound
	}
	u.users[user.ID] = *user
	return nil
}

func (u *Users) IncrementTokenVersion(_ context.Context, userID int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[userID]
	if !ok {
		return repo.ErrNotFound
	}
	user.TokenVersion++
	u.users[userID] = user
	return nil
}
