package middleware

import (
	"net/http"

	"ecshop/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// /admin 配下（在庫・注文・出荷・決済の管理）はADMINだけ
func AdminRoleGuard() echo.MiddlewareFunc {
	return RequireRole(model.RoleAdmin)
}

// TokenVersionGuardの後に置く。roleはDBの値で判定される
func RequireRole(allowed ...model.Role) echo.MiddlewareFunc {
	set := make(map[model.Role]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	onlyAdmin := len(set) == 1
	if _, ok := set[model.RoleAdmin]; !ok {
		onlyAdmin = false
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			if _, ok := set[model.Role(role)]; ok {
				return next(c)
			}
			if onlyAdmin {
				return c.JSON(http.StatusForbidden, errorJSON("admin only"))
			}
			return c.JSON(http.StatusForbidden, errorJSON("forbidden"))
		}
	}
}
