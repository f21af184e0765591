package model

import "time"

type ShipmentStatus string

const (
	ShipmentStatusPreparing ShipmentStatus = "preparing"
	ShipmentStatusInTransit ShipmentStatus = "in_transit"
	ShipmentStatusDelivered ShipmentStatus = "delivered"
	ShipmentStatusReturned  ShipmentStatus = "returned"
)

var shipmentTransitions = map[ShipmentStatus][]ShipmentStatus{
	ShipmentStatusPreparing: {ShipmentStatusInTransit},
	ShipmentStatusInTransit: {ShipmentStatusDelivered, ShipmentStatusReturned},
	ShipmentStatusDelivered: {ShipmentStatusReturned},
}

func (s ShipmentStatus) IsValid() bool {
	switch s {
	case ShipmentStatusPreparing, ShipmentStatusInTransit, ShipmentStatusDelivered, ShipmentStatusReturned:
		return true
	}
	return false
}

func (s ShipmentStatus) CanTransitionTo(next ShipmentStatus) bool {
	for _, to := range shipmentTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// 代引きの自動出荷で使う配送業者
const CODCourier = "Local Delivery"

type Shipment struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID        int64          `gorm:"not null;index" json:"order_id"`
	Courier        string         `gorm:"type:varchar(100);not null" json:"courier"`
	TrackingNumber string         `gorm:"type:varchar(100);not null;index" json:"tracking_number"`
	Status         ShipmentStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	//作成時点で固定
	Address ShippingAddress `gorm:"embedded;embeddedPrefix:addr_" json:"address"`

	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
