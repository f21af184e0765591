package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"

	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	tx    repo.TransactionManager
	cache *ProductCache
}

// DI
func NewProductUsecase(tx repo.TransactionManager, cache *ProductCache) *ProductUsecase {
	return &ProductUsecase{tx: tx, cache: cache}
}

// GET /products/:ref
func (u *ProductUsecase) GetProduct(ctx context.Context, ref model.ProductRef) (model.Product, error) {
	if ref.IsZero() {
		return model.Product{}, ErrValidation("invalid product reference")
	}
	if p, ok := u.cache.Get(ctx, ref); ok {
		return p, nil
	}

	var p model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		if ref.IsID() {
			p, err = r.Products().FindByID(ctx, ref.ID())
		} else {
			p, err = r.Products().FindBySlug(ctx, ref.Slug())
		}
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound("product")
		}
		if err != nil {
			return ErrInternal(err)
		}
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}

	// 非公開は存在しない扱い
	if !p.IsActive {
		return model.Product{}, ErrNotFound("product")
	}
	u.cache.Set(ctx, p)
	return p, nil
}

type AdminVariantInput struct {
	Size  string
	Color string
	SKU   string
	Stock int64
}

type AdminCreateProductInput struct {
	Slug        string
	Name        string
	Brand       string
	Description string
	Price       decimal.Decimal
	Stock       int64
	IsActive    bool
	Variants    []AdminVariantInput
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID int64, in AdminCreateProductInput) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, ErrUnauthorized()
	}
	slug := strings.ToLower(strings.TrimSpace(in.Slug))
	if slug == "" {
		return model.Product{}, ErrValidation("slug required")
	}
	// 数字だけのslugはidと区別できない
	if ref, _ := model.ParseProductRef(slug); ref.IsID() {
		return model.Product{}, ErrValidation("slug must not be numeric")
	}
	if strings.TrimSpace(in.Name) == "" {
		return model.Product{}, ErrValidation("name required")
	}
	if in.Price.IsNegative() {
		return model.Product{}, ErrValidation("price must be >= 0")
	}
	if in.Stock < 0 {
		return model.Product{}, ErrValidation("stock must be >= 0")
	}

	variants := make([]model.ProductVariant, 0, len(in.Variants))
	for _, v := range in.Variants {
		if v.Stock < 0 {
			return model.Product{}, ErrValidation("variant stock must be >= 0")
		}
		variants = append(variants, model.ProductVariant{
			Size:  strings.TrimSpace(v.Size),
			Color: strings.TrimSpace(v.Color),
			SKU:   strings.TrimSpace(v.SKU),
			Stock: v.Stock,
		})
	}

	var created model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().Create(ctx, model.Product{
			Slug:        slug,
			Name:        strings.TrimSpace(in.Name),
			Brand:       strings.TrimSpace(in.Brand),
			Description: in.Description,
			Price:       in.Price.Round(2),
			Stock:       in.Stock,
			IsActive:    in.IsActive,
			Variants:    variants,
		})
		if errors.Is(err, repo.ErrDuplicateKey) {
			return ErrValidation("slug already exists")
		}
		if err != nil {
			return ErrInternal(err)
		}
		created = p
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return created, nil
}

type AdminUpdateInventoryInput struct {
	// nilなら商品本体の在庫
	VariantID *int64
	Stock     int64
	Reason    string
}

func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, adminUserID int64, productID int64, in AdminUpdateInventoryInput) error {
	if adminUserID <= 0 {
		return ErrUnauthorized()
	}
	if productID <= 0 {
		return ErrValidation("invalid product id")
	}
	if in.Stock < 0 {
		return ErrValidation("stock must be >= 0")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return ErrValidation("reason required")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（before）
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound("product")
		}
		if err != nil {
			return ErrInternal(err)
		}

		before := p.Stock
		if in.VariantID != nil {
			v, ok := p.FindVariant(*in.VariantID)
			if !ok {
				return ErrNotFound("variant")
			}
			before = v.Stock
			err = r.Inventory().SetVariantStock(ctx, productID, v.ID, in.Stock)
		} else {
			err = r.Inventory().SetStock(ctx, productID, in.Stock)
		}
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound("product")
		}
		if err != nil {
			return ErrInternal(err)
		}

		//履歴を作成（差分）
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			VariantID:   in.VariantID,
			AdminUserID: adminUserID,
			Delta:       in.Stock - before,
			Reason:      reason,
			CreatedAt:   time.Now(),
		}); err != nil {
			return ErrInternal(err)
		}

		//監査ログ（在庫更新）
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   stockJSON(before, in.VariantID),
			AfterJSON:    stockJSON(in.Stock, in.VariantID),
			CreatedAt:    time.Now(),
		}); err != nil {
			return ErrInternal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	u.cache.Invalidate(ctx, productID)
	return nil
}

func stockJSON(stock int64, variantID *int64) string {
	if variantID != nil {
		return fmt.Sprintf(`{"variant_id":%d,"stock":%d}`, *variantID, stock)
	}
	return fmt.Sprintf(`{"stock":%d}`, stock)
}
