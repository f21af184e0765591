package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"ecshop/internal/domain/model"
	"ecshop/internal/middleware"
	"ecshop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func errorJSON(code, msg string) ErrorResponse {
	return ErrorResponse{Error: msg, Code: code}
}

// usecaseのHTTPErrorをそのまま返す。それ以外は500
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		if he.Status >= http.StatusInternalServerError {
			slog.ErrorContext(c.Request().Context(), "request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", he.Status,
				"err", err,
			)
		}
		return c.JSON(he.Status, errorJSON(he.Code, he.Message))
	}

	slog.ErrorContext(c.Request().Context(), "unexpected error",
		"method", c.Request().Method,
		"path", c.Path(),
		"err", err,
	)
	return c.JSON(http.StatusInternalServerError, errorJSON(usecase.CodeInternal, "internal error"))
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorJSON(usecase.CodeValidation, msg))
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorJSON(usecase.CodeUnauthorized, "unauthorized"))
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

func actorFromContext(c echo.Context) (usecase.Actor, bool) {
	id, ok := getUserIDFromContext(c)
	if !ok {
		return usecase.Actor{}, false
	}
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	return usecase.Actor{UserID: id, Role: model.Role(role)}, true
}

// パスの:idなど
func parseIDParam(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ?page=&limit=（省略時 1 / 20）
func pageParams(c echo.Context) (int, int, bool) {
	page, limit := 1, 20
	if v := c.QueryParam("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		page = n
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		limit = n
	}
	return page, limit, true
}
