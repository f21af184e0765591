package handler

import (
	"io"
	"log/slog"
	"net/http"

	"ecshop/internal/config"
	"ecshop/internal/domain/model"
	"ecshop/internal/middleware"
	"ecshop/internal/payment"
	"ecshop/internal/repository"
	"ecshop/internal/usecase"

	"github.com/labstack/echo/v4"
)

// Webhook本文の上限
const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	uc      *usecase.PaymentUsecase
	limiter *middleware.IPRateLimiter
	log     *slog.Logger
}

func NewPaymentHandler(uc *usecase.PaymentUsecase, limiter *middleware.IPRateLimiter, log *slog.Logger) *PaymentHandler {
	return &PaymentHandler{uc: uc, limiter: limiter, log: log}
}

type createPaymentRequest struct {
	OrderID  int64  `json:"orderId"`
	Provider string `json:"provider"`
	Method   string `json:"method"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	// Webhookは認証なし（署名はプロバイダ実装で検証）
	e.POST("/payments/:provider/webhook", h.webhook, h.limiter.Middleware())

	g := e.Group("/payments")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))
	g.POST("", h.create)
	g.GET("/order/:orderId", h.byOrder)

	admin := e.Group(
		"/admin",
		middleware.AuthJWT(cfg),
		middleware.TokenVersionGuard(userRepo),
		middleware.AdminRoleGuard(),
	)
	admin.GET("/payments", h.list)
}

func (h *PaymentHandler) create(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	var req createPaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.CreatePayment(c.Request().Context(), actor, usecase.CreatePaymentInput{
		OrderID:  req.OrderID,
		Provider: model.PaymentProvider(req.Provider),
		Method:   model.PaymentMethod(req.Method),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *PaymentHandler) byOrder(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	orderID, ok := parseIDParam(c, "orderId")
	if !ok {
		return badRequest(c, "invalid orderId")
	}

	out, err := h.uc.GetByOrder(c.Request().Context(), actor, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 常に200を返す（プロバイダの再送を止めるため）。失敗はエラーログに残す
func (h *PaymentHandler) webhook(c echo.Context) error {
	provider := c.Param("provider")
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		h.log.ErrorContext(ctx, "webhook body read failed", "provider", provider, "err", err)
		return c.JSON(http.StatusOK, map[string]bool{"received": true})
	}

	if err := h.uc.HandleWebhook(ctx, provider, payment.WebhookRequest{
		Header: c.Request().Header,
		Query:  c.QueryParams(),
		Body:   body,
	}); err != nil {
		h.log.ErrorContext(ctx, "webhook processing failed", "provider", provider, "err", err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}

// GET /admin/payments?provider=&status=
func (h *PaymentHandler) list(c echo.Context) error {
	page, limit, ok := pageParams(c)
	if !ok {
		return badRequest(c, "invalid paging")
	}
	out, err := h.uc.List(c.Request().Context(), repository.PaymentListFilter{
		Provider: c.QueryParam("provider"),
		Status:   c.QueryParam("status"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
