package handler

import (
	"net/http"

	"ecshop/internal/config"
	"ecshop/internal/domain/model"
	"ecshop/internal/middleware"
	"ecshop/internal/repository"
	"ecshop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc    *usecase.OrderUsecase
	admin *usecase.AdminOrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase, admin *usecase.AdminOrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc, admin: admin}
}

type orderPreviewRequest struct {
	CartItems       []cartItemRequest      `json:"cartItems"`
	ShippingAddress shippingAddressRequest `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	CouponCode      string                 `json:"couponCode"`
	GiftCardCode    string                 `json:"giftCardCode"`
}

type orderCreateRequest = orderPreviewRequest

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.POST("/preview", h.preview)
	g.POST("", h.create)
	g.GET("/my", h.listMine)
	g.GET("/:id", h.detail)
	g.PUT("/:id/cancel", h.cancel)
	g.GET("/:id/invoice", h.invoice)
	g.PUT("/:id/status", h.updateStatus, middleware.AdminRoleGuard())
}

func (h *OrderHandler) preview(c echo.Context) error {
	var req orderPreviewRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := req.validate(); err != nil {
		return badRequest(c, err.Error())
	}
	lines, err := toCartLines(req.CartItems)
	if err != nil {
		return badRequest(c, "invalid product reference")
	}

	out, err := h.uc.Preview(c.Request().Context(), usecase.PreviewInput{
		Lines:        lines,
		CouponCode:   req.CouponCode,
		GiftCardCode: req.GiftCardCode,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req orderCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := req.validate(); err != nil {
		return badRequest(c, err.Error())
	}
	lines, err := toCartLines(req.CartItems)
	if err != nil {
		return badRequest(c, "invalid product reference")
	}

	out, err := h.uc.PlaceOrder(c.Request().Context(), userID, usecase.PlaceOrderInput{
		Lines:           lines,
		ShippingAddress: req.ShippingAddress.toModel(),
		PaymentMethod:   model.PaymentMethod(req.PaymentMethod),
		CouponCode:      req.CouponCode,
		GiftCardCode:    req.GiftCardCode,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) listMine(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	page, limit, ok := pageParams(c)
	if !ok {
		return badRequest(c, "invalid paging")
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetOrderDetail(c.Request().Context(), actor, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.Cancel(c.Request().Context(), actor, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) invoice(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	pdf, filename, err := h.uc.Invoice(c.Request().Context(), actor, orderID)
	if err != nil {
		return writeError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// 管理者のみ
func (h *OrderHandler) updateStatus(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.admin.UpdateStatus(c.Request().Context(), adminID, orderID, usecase.AdminUpdateOrderStatusInput{Status: req.Status})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
