package handler

import (
	"net/http"

	"ecshop/internal/config"
	"ecshop/internal/domain/model"
	"ecshop/internal/middleware"
	"ecshop/internal/repository"
	"ecshop/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

type variantRequest struct {
	Size  string `json:"size"`
	Color string `json:"color"`
	SKU   string `json:"sku"`
	Stock int64  `json:"stock"`
}

type createProductRequest struct {
	Slug        string           `json:"slug"`
	Name        string           `json:"name"`
	Brand       string           `json:"brand"`
	Description string           `json:"description"`
	Price       decimal.Decimal  `json:"price"`
	Stock       int64            `json:"stock"`
	IsActive    bool             `json:"is_active"`
	Variants    []variantRequest `json:"variants"`
}

type updateInventoryRequest struct {
	VariantID *int64 `json:"variant_id"`
	Stock     *int64 `json:"stock"`
	Reason    string `json:"reason"`
}

func (h *ProductHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	// 公開API。:refはidかslug
	e.GET("/products/:ref", h.detail)

	admin := e.Group(
		"/admin",
		middleware.AuthJWT(cfg),
		middleware.TokenVersionGuard(userRepo),
		middleware.AdminRoleGuard(),
	)
	admin.POST("/products", h.create)
	admin.PUT("/inventory/:id", h.updateInventory)
}

func (h *ProductHandler) detail(c echo.Context) error {
	ref, err := model.ParseProductRef(c.Param("ref"))
	if err != nil {
		return badRequest(c, "invalid product reference")
	}
	p, err := h.uc.GetProduct(c.Request().Context(), ref)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) create(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	var req createProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	in := usecase.AdminCreateProductInput{
		Slug:        req.Slug,
		Name:        req.Name,
		Brand:       req.Brand,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		IsActive:    req.IsActive,
	}
	for _, v := range req.Variants {
		in.Variants = append(in.Variants, usecase.AdminVariantInput{Size: v.Size, Color: v.Color, SKU: v.SKU, Stock: v.Stock})
	}

	p, err := h.uc.AdminCreateProduct(c.Request().Context(), adminID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *ProductHandler) updateInventory(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid product id")
	}
	var req updateInventoryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Stock == nil {
		return badRequest(c, "stock required")
	}

	if err := h.uc.AdminUpdateInventory(c.Request().Context(), adminID, productID, usecase.AdminUpdateInventoryInput{
		VariantID: req.VariantID,
		Stock:     *req.Stock,
		Reason:    req.Reason,
	}); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
