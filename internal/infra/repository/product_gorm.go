package repository

import (
	"context"
	"strings"

	"ecshop/internal/domain/model"

	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

func (r *ProductGormRepository) withVariants() *gorm.DB {
	return r.db.Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("product_variants.id asc")
	})
}

// IDで商品を取得
func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	if err := r.withVariants().WithContext(ctx).First(&p, id).Error; err != nil {
		return model.Product{}, mapErr(err)
	}
	return p, nil
}

func (r *ProductGormRepository) FindBySlug(ctx context.Context, slug string) (model.Product, error) {
	var p model.Product
	err := r.withVariants().WithContext(ctx).
		Where("lower(slug) = ?", strings.ToLower(slug)).
		First(&p).Error
	if err != nil {
		return model.Product{}, mapErr(err)
	}
	return p, nil
}

// id IN (...) OR lower(slug) IN (...) の1クエリで引く
func (r *ProductGormRepository) FindByRefs(ctx context.Context, refs []model.ProductRef) ([]model.Product, error) {
	var ids []int64
	var slugs []string
	for _, ref := range refs {
		switch {
		case ref.IsID():
			ids = append(ids, ref.ID())
		case ref.IsSlug():
			slugs = append(slugs, ref.Slug())
		}
	}
	if len(ids) == 0 && len(slugs) == 0 {
		return []model.Product{}, nil
	}

	q := r.withVariants().WithContext(ctx)
	switch {
	case len(ids) > 0 && len(slugs) > 0:
		q = q.Where("id IN ? OR lower(slug) IN ?", ids, slugs)
	case len(ids) > 0:
		q = q.Where("id IN ?", ids)
	default:
		q = q.Where("lower(slug) IN ?", slugs)
	}

	var products []model.Product
	if err := q.Order("id asc").Find(&products).Error; err != nil {
		return []model.Product{}, err
	}
	return products, nil
}

// 商品の作成（バリアントも一緒に作られる）
func (r *ProductGormRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	p.Slug = strings.ToLower(p.Slug)
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Product{}, mapErr(err)
	}
	return p, nil
}
