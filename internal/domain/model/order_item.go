package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文時点の商品スナップショット。作成後は変更しない
type OrderItem struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID      int64  `gorm:"not null;index" json:"order_id"`
	ProductID    int64  `gorm:"not null;index" json:"product_id"`
	ProductName  string `gorm:"type:varchar(255);not null" json:"product_name"`
	ProductBrand string `gorm:"type:varchar(255)" json:"product_brand"`

	VariantID    *int64 `json:"variant_id,omitempty"`
	VariantSize  string `gorm:"type:varchar(50)" json:"variant_size,omitempty"`
	VariantColor string `gorm:"type:varchar(50)" json:"variant_color,omitempty"`

	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Quantity  int64           `gorm:"not null;check:quantity >= 1" json:"quantity"`
	LineTotal decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"line_total"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
