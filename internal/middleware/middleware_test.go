package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ecshop/internal/config"
	"ecshop/internal/domain/model"
	"ecshop/internal/repository/repotest"
	auth "ecshop/internal/usecase/auth_usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-secret"

func protectedEcho(users *repotest.Users, admin bool) *echo.Echo {
	e := echo.New()
	mws := []echo.MiddlewareFunc{AuthJWT(config.Config{JWTSecret: testSecret}), TokenVersionGuard(users)}
	if admin {
		mws = append(mws, AdminRoleGuard())
	}
	e.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"id":   c.Get(CtxUserIDKey),
			"role": c.Get(CtxUserRoleKey),
		})
	}, mws...)
	return e
}

func call(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func seedUser(t *testing.T, users *repotest.Users, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Name: "Mona", Email: string(role) + "@example.com", Role: role, IsActive: true}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func issue(t *testing.T, u *model.User, role model.Role, tv int) string {
	t.Helper()
	token, _, err := auth.NewJWTIssuer(testSecret, time.Hour).Issue(u.ID, role, tv, time.Now())
	require.NoError(t, err)
	return token
}

func TestAuthJWT(t *testing.T) {
	users := repotest.NewUsers()
	u := seedUser(t, users, model.RoleUser)
	e := protectedEcho(users, false)

	rec := call(e, issue(t, u, model.RoleUser, 0))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"role":"USER"}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call(e, "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(e, "garbage").Code)

	wrongKey, _, err := auth.NewJWTIssuer("other-secret", time.Hour).Issue(u.ID, model.RoleUser, 0, time.Now())
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(e, wrongKey).Code)

	expired, _, err := auth.NewJWTIssuer(testSecret, time.Minute).Issue(u.ID, model.RoleUser, 0, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(e, expired).Code)

	// tvが無いトークン
	noTV, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1", "role": "USER", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(e, noTV).Code)

	// HS256以外は拒否
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "1", "role": "USER", "tv": 0, "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(e, hs512).Code)
}

func TestTokenVersionGuard(t *testing.T) {
	users := repotest.NewUsers()
	u := seedUser(t, users, model.RoleUser)
	e := protectedEcho(users, false)
	token := issue(t, u, model.RoleUser, 0)

	require.NoError(t, users.IncrementTokenVersion(context.Background(), u.ID))
	rec := call(e, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized","code":"UNAUTHORIZED"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, call(e, issue(t, u, model.RoleUser, 1)).Code)

	stored, err := users.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	stored.IsActive = false
	require.NoError(t, users.Update(context.Background(), stored))
	assert.Equal(t, http.StatusUnauthorized, call(e, issue(t, u, model.RoleUser, 1)).Code)
}

func TestAdminRoleGuard(t *testing.T) {
	users := repotest.NewUsers()
	customer := seedUser(t, users, model.RoleUser)
	admin := seedUser(t, users, model.RoleAdmin)
	e := protectedEcho(users, true)

	rec := call(e, issue(t, customer, model.RoleUser, 0))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"admin only","code":"FORBIDDEN"}`, rec.Body.String())

	// roleはDBの値が優先される
	assert.Equal(t, http.StatusForbidden, call(e, issue(t, customer, model.RoleAdmin, 0)).Code)

	assert.Equal(t, http.StatusOK, call(e, issue(t, admin, model.RoleAdmin, 0)).Code)
}

func TestRequireRole(t *testing.T) {
	users := repotest.NewUsers()
	customer := seedUser(t, users, model.RoleUser)
	admin := seedUser(t, users, model.RoleAdmin)

	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	base := []echo.MiddlewareFunc{AuthJWT(config.Config{JWTSecret: testSecret}), TokenVersionGuard(users)}
	e.GET("/any", ok, append(base, RequireRole(model.RoleUser, model.RoleAdmin))...)
	e.GET("/customers", ok, append(base, RequireRole(model.RoleUser))...)

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/any", issue(t, customer, model.RoleUser, 0)).Code)
	assert.Equal(t, http.StatusOK, get("/any", issue(t, admin, model.RoleAdmin, 0)).Code)
	assert.Equal(t, http.StatusOK, get("/customers", issue(t, customer, model.RoleUser, 0)).Code)

	rec := get("/customers", issue(t, admin, model.RoleAdmin, 0))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden","code":"FORBIDDEN"}`, rec.Body.String())

	// AuthJWTより前に置くとroleが無い
	bare := echo.New()
	bare.GET("/x", ok, AdminRoleGuard())
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec = httptest.NewRecorder()
	bare.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIPRateLimiter(t *testing.T) {
	rl := NewIPRateLimiter(0.001, 2)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	e := echo.New()
	e.POST("/webhooks/:provider", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, rl.Middleware())

	post := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil)
		req.RemoteAddr = ip + ":4242"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, post("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, post("10.0.0.1").Code)
	rec := post("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"too many requests","code":"RATE_LIMITED"}`, rec.Body.String())

	// 別IPは別枠
	assert.Equal(t, http.StatusOK, post("10.0.0.2").Code)

	now = now.Add(11 * time.Minute)
	assert.Equal(t, 2, rl.Cleanup(10*time.Minute))
	assert.Equal(t, 0, rl.Cleanup(10*time.Minute))
}
