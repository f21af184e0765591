package handler

import (
	"encoding/json"
	"strconv"

	"ecshop/internal/domain/model"
	"ecshop/internal/usecase"
	"ecshop/internal/validator"
)

// カートの1行。product_id / product_slug / product のどれかで商品を指定する
type cartItemRequest struct {
	ProductID   json.Number `json:"product_id"`
	ProductSlug string      `json:"product_slug"`
	Product     string      `json:"product"`
	VariantID   *int64      `json:"variant_id"`
	Quantity    int64       `json:"quantity"`
}

type shippingAddressRequest struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a shippingAddressRequest) toModel() model.ShippingAddress {
	return model.ShippingAddress{
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

// 境界で一度だけProductRefに変換する
func (r cartItemRequest) ref() (model.ProductRef, error) {
	switch {
	case r.ProductID != "":
		id, err := strconv.ParseInt(r.ProductID.String(), 10, 64)
		if err != nil || id <= 0 {
			return model.ProductRef{}, model.ErrInvalidProductRef
		}
		return model.ProductRefByID(id), nil
	case r.ProductSlug != "":
		return model.ProductRefBySlug(r.ProductSlug), nil
	default:
		return model.ParseProductRef(r.Product)
	}
}

func toCartLines(items []cartItemRequest) ([]usecase.CartLine, error) {
	lines := make([]usecase.CartLine, 0, len(items))
	for _, it := range items {
		ref, err := it.ref()
		if err != nil {
			return nil, err
		}
		lines = append(lines, usecase.CartLine{Ref: ref, VariantID: it.VariantID, Quantity: it.Quantity})
	}
	return lines, nil
}

// 形式だけ先に弾く
func (r orderPreviewRequest) validate() error {
	qty := make([]int64, 0, len(r.CartItems))
	for _, it := range r.CartItems {
		qty = append(qty, it.Quantity)
	}
	if err := validator.ValidateCartQuantities(qty); err != nil {
		return err
	}
	if err := validator.ValidateShippingAddress(r.ShippingAddress.toModel()); err != nil {
		return err
	}
	if err := validator.ValidateCode("couponCode", r.CouponCode); err != nil {
		return err
	}
	return validator.ValidateCode("giftCardCode", r.GiftCardCode)
}
