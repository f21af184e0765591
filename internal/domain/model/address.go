package model

import "strings"

// 配送先住所のスナップショット
// 注文・出荷に埋め込んで保存する（ユーザーの住所を後から変えても影響しない）
type ShippingAddress struct {
	//番地など
	Street string `gorm:"type:varchar(255)" json:"street"`

	//市区町村
	City string `gorm:"type:varchar(255)" json:"city"`

	//都道府県・州
	State string `gorm:"type:varchar(100)" json:"state"`

	//郵便番号
	PostalCode string `gorm:"type:varchar(20)" json:"postal_code"`

	//国
	Country string `gorm:"type:varchar(100)" json:"country"`
}

// 必須項目が揃っているか
func (a ShippingAddress) IsComplete() bool {
	return strings.TrimSpace(a.Street) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.PostalCode) != "" &&
		strings.TrimSpace(a.Country) != ""
}
