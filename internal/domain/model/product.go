package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug        string          `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Brand       string          `gorm:"type:varchar(255)" json:"brand"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Stock       int64           `gorm:"not null;check:stock >= 0" json:"stock"`
	IsActive    bool            `gorm:"not null;default:false" json:"is_active"`
	// 並び順はID順
	Variants  []ProductVariant `gorm:"foreignKey:ProductID" json:"variants"`
	CreatedAt time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt   `gorm:"index" json:"-"`
}

// サイズ・色ごとの在庫
// 商品全体のstockとは別に減算する（合計が一致する必要はない）
type ProductVariant struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64     `gorm:"not null;index" json:"product_id"`
	Size      string    `gorm:"type:varchar(50)" json:"size"`
	Color     string    `gorm:"type:varchar(50)" json:"color"`
	SKU       string    `gorm:"type:varchar(100)" json:"sku"`
	Stock     int64     `gorm:"not null;check:stock >= 0" json:"stock"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

// バリアントをIDで探す
func (p Product) FindVariant(variantID int64) (ProductVariant, bool) {
	for _, v := range p.Variants {
		if v.ID == variantID {
			return v, true
		}
	}
	return ProductVariant{}, false
}
