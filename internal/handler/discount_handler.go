package handler

import (
	"net/http"
	"time"

	"ecshop/internal/config"
	"ecshop/internal/middleware"
	"ecshop/internal/repository"
	"ecshop/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// クーポンとギフトカード
type DiscountHandler struct {
	coupons   *usecase.CouponUsecase
	giftCards *usecase.GiftCardUsecase
}

func NewDiscountHandler(coupons *usecase.CouponUsecase, giftCards *usecase.GiftCardUsecase) *DiscountHandler {
	return &DiscountHandler{coupons: coupons, giftCards: giftCards}
}

type validateCouponRequest struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type createCouponRequest struct {
	Code          string          `json:"code"`
	DiscountType  string          `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	MinPurchase   decimal.Decimal `json:"minPurchase"`
	ExpiryDate    time.Time       `json:"expiryDate"`
	UsageLimit    *int64          `json:"usageLimit"`
}

type checkGiftCardRequest struct {
	Code string `json:"code"`
}

type createGiftCardRequest struct {
	Code        string          `json:"code"`
	Balance     decimal.Decimal `json:"balance"`
	ExpiryDate  *time.Time      `json:"expiryDate"`
	PurchasedBy *int64          `json:"purchasedBy"`
}

func (h *DiscountHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	authed := []echo.MiddlewareFunc{middleware.AuthJWT(cfg), middleware.TokenVersionGuard(userRepo)}
	adminOnly := append(authed, middleware.AdminRoleGuard())

	e.POST("/coupons/validate", h.validateCoupon, authed...)
	e.POST("/coupons", h.createCoupon, adminOnly...)
	e.POST("/gift-cards/check", h.checkGiftCard, authed...)
	e.POST("/gift-cards", h.createGiftCard, adminOnly...)
	e.GET("/admin/gift-cards/:code/usages", h.giftCardUsages, adminOnly...)
}

func (h *DiscountHandler) validateCoupon(c echo.Context) error {
	var req validateCouponRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	out, err := h.coupons.Validate(c.Request().Context(), req.Code, req.Subtotal)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DiscountHandler) createCoupon(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	var req createCouponRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	out, err := h.coupons.AdminCreate(c.Request().Context(), adminID, usecase.AdminCreateCouponInput{
		Code:          req.Code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MinPurchase:   req.MinPurchase,
		ExpiryDate:    req.ExpiryDate,
		UsageLimit:    req.UsageLimit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *DiscountHandler) checkGiftCard(c echo.Context) error {
	var req checkGiftCardRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	out, err := h.giftCards.Check(c.Request().Context(), req.Code)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DiscountHandler) createGiftCard(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	var req createGiftCardRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	out, err := h.giftCards.AdminCreate(c.Request().Context(), adminID, usecase.AdminCreateGiftCardInput{
		Code:        req.Code,
		Balance:     req.Balance,
		ExpiryDate:  req.ExpiryDate,
		PurchasedBy: req.PurchasedBy,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *DiscountHandler) giftCardUsages(c echo.Context) error {
	out, err := h.giftCards.AdminUsages(c.Request().Context(), c.Param("code"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
