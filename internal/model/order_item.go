package model

import "time"

// OrderItem is a line item snapshotting item name and unit price at order
// time. Later catalog changes never retroactively alter historical orders.
// Lifecycle-bound to its Order.
type OrderItem struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	OrderID        uint      `json:"order_id" gorm:"index;not null"`
	ItemID         uint      `json:"item_id" gorm:"not null"`
	Name           string    `json:"name" gorm:"type:varchar(200);not null"`
	UnitPriceCents int64     `json:"unit_price_cents" gorm:"not null"`
	Quantity       int       `json:"quantity" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
}

// LineTotalCents returns quantity times the snapshotted unit price
func (i *OrderItem) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}
