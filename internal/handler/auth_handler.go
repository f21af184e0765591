package handler

import (
	"errors"
	"net/http"

	"ecshop/internal/config"
	"ecshop/internal/middleware"
	"ecshop/internal/repository"
	"ecshop/internal/usecase"
	auth "ecshop/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	registerUC    *auth.RegisterUserUsecase // 会員登録usecase
	loginUC       *auth.LoginUsecase        // ログインusecase
	forceLogoutUC *auth.ForceLogoutUsecase
}

// DIコンストラクタ
func NewAuthHandler(registerUC *auth.RegisterUserUsecase, loginUC *auth.LoginUsecase, forceLogoutUC *auth.ForceLogoutUsecase) *AuthHandler {
	return &AuthHandler{registerUC: registerUC, loginUC: loginUC, forceLogoutUC: forceLogoutUC}
}

// /auth/register のリクエストボディ。
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// /auth/login のリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	e.POST("/auth/register", h.register)
	e.POST("/auth/login", h.login)

	// ★ /admin 配下は「JWT必須 + token_version一致 + ADMIN限定」
	admin := e.Group(
		"/admin",
		middleware.AuthJWT(cfg),
		middleware.TokenVersionGuard(userRepo),
		middleware.AdminRoleGuard(),
	)
	admin.POST("/users/:id/force-logout", h.forceLogout)
}

func (h *AuthHandler) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.registerUC.Execute(c.Request().Context(), auth.RegisterUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, out.User)
	case errors.Is(err, auth.ErrInvalidEmailFormat),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrWeakPassword):
		return badRequest(c, err.Error())
	case errors.Is(err, auth.ErrEmailAlreadyExists):
		return c.JSON(http.StatusConflict, errorJSON("CONFLICT", err.Error()))
	default:
		return writeError(c, err)
	}
}

func (h *AuthHandler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.loginUC.Execute(c.Request().Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, out)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, errorJSON(usecase.CodeUnauthorized, "invalid credentials"))
	case errors.Is(err, auth.ErrUserInactive):
		return c.JSON(http.StatusForbidden, errorJSON(usecase.CodeForbidden, "user is inactive"))
	default:
		return writeError(c, err)
	}
}

func (h *AuthHandler) forceLogout(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid user_id")
	}

	out, err := h.forceLogoutUC.Execute(c.Request().Context(), adminID, userID)
	if errors.Is(err, auth.ErrUserNotFound) {
		return c.JSON(http.StatusNotFound, errorJSON(usecase.CodeNotFound, "user not found"))
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
