package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"ecshop/internal/domain/model"
	"ecshop/internal/repository"
	"ecshop/internal/repository/repotest"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type auditRecorder struct {
	logs []model.AuditLog
	err  error
}

func (a *auditRecorder) Create(_ context.Context, log model.AuditLog) error {
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditRecorder) List(context.Context, repository.AuditLogFilter) ([]model.AuditLog, int64, error) {
	return a.logs, int64(len(a.logs)), nil
}

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func registerUser(t *testing.T, users *repotest.Users, email, password string) model.User {
	t.Helper()
	uc := NewRegisterUserUsecase(users, NewBcryptPasswordHasher(bcrypt.MinCost), fixedClock{testNow})
	out, err := uc.Execute(context.Background(), RegisterUserInput{Name: "Mona", Email: email, Password: password})
	require.NoError(t, err)
	return out.User
}

func TestRegisterUser(t *testing.T) {
	users := repotest.NewUsers()
	u := registerUser(t, users, "  Mona@Example.com ", "correct-horse-battery")

	assert.Equal(t, "mona@example.com", u.Email)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "correct-horse-battery", u.PasswordHash)
	assert.True(t, NewBcryptPasswordVerifier().Verify("correct-horse-battery", u.PasswordHash))

	uc := NewRegisterUserUsecase(users, NewBcryptPasswordHasher(bcrypt.MinCost), fixedClock{testNow})
	tests := []struct {
		name string
		in   RegisterUserInput
		want error
	}{
		{"bad email", RegisterUserInput{Email: "not-an-email", Password: "correct-horse-battery"}, ErrInvalidEmailFormat},
		{"display name email", RegisterUserInput{Email: "Mona <mona@example.com>", Password: "correct-horse-battery"}, ErrInvalidEmailFormat},
		{"short password", RegisterUserInput{Email: "a@example.com", Password: "short"}, ErrPasswordTooShort},
		{"weak password", RegisterUserInput{Email: "a@example.com", Password: "Password1234"}, ErrWeakPassword},
		{"duplicate", RegisterUserInput{Email: "MONA@example.com", Password: "another-long-secret"}, ErrEmailAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Execute(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogin(t *testing.T) {
	users := repotest.NewUsers()
	u := registerUser(t, users, "mona@example.com", "correct-horse-battery")
	issuer := NewJWTIssuer("test-secret", 15*time.Minute)
	uc := NewLoginUsecase(users, NewBcryptPasswordVerifier(), issuer, fixedClock{testNow})

	out, err := uc.Execute(context.Background(), LoginInput{Email: "MONA@example.com", Password: "correct-horse-battery"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, out.User.ID)
	assert.Equal(t, 900, out.Token.ExpiresIn)
	require.NotNil(t, out.User.LastLoginAt)
	assert.True(t, testNow.Equal(*out.User.LastLoginAt))

	stored, err := users.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)

	_, err = uc.Execute(context.Background(), LoginInput{Email: "mona@example.com", Password: "wrong-password-123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = uc.Execute(context.Background(), LoginInput{Email: "nobody@example.com", Password: "correct-horse-battery"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	stored.IsActive = false
	require.NoError(t, users.Update(context.Background(), stored))
	_, err = uc.Execute(context.Background(), LoginInput{Email: "mona@example.com", Password: "correct-horse-battery"})
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestJWTIssuer(t *testing.T) {
	issuer := NewJWTIssuer("test-secret", time.Hour)
	now := time.Now()
	token, exp, err := issuer.Issue(42, model.RoleAdmin, 3, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour).Unix(), exp.Unix())

	parsed, err := jwt.Parse(token, func(tk *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "42", claims["sub"])
	assert.Equal(t, "ADMIN", claims["role"])
	assert.Equal(t, float64(3), claims["tv"])
	assert.Equal(t, "HS256", parsed.Method.Alg())

	_, _, err = NewJWTIssuer("", time.Hour).Issue(42, model.RoleUser, 0, now)
	assert.Error(t, err)
}

func TestForceLogout(t *testing.T) {
	users := repotest.NewUsers()
	u := registerUser(t, users, "mona@example.com", "correct-horse-battery")
	audit := &auditRecorder{}
	uc := NewForceLogoutUsecase(users, audit, fixedClock{testNow})

	out, err := uc.Execute(context.Background(), 900, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, out.TokenVersion)

	stored, err := users.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TokenVersion)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, model.AuditActionForceLogout, audit.logs[0].Action)
	assert.Equal(t, `{"token_version":0}`, audit.logs[0].BeforeJSON)
	assert.Equal(t, `{"token_version":1}`, audit.logs[0].AfterJSON)
	assert.Equal(t, int64(900), audit.logs[0].ActorUserID)

	_, err = uc.Execute(context.Background(), 900, 777)
	assert.ErrorIs(t, err, ErrUserNotFound)

	audit.err = errors.New("insert failed")
	_, err = uc.Execute(context.Background(), 900, u.ID)
	assert.Error(t, err)
}
