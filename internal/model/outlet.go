package model

import (
	"time"

	"gorm.io/gorm"
)

// Outlet is a merchant's pickup location. It anchors the outlet -> merchant
// ownership chain used by the policy engine and the merchant-level tenant
// filter.
type Outlet struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	MerchantID uint           `json:"merchant_id" gorm:"index;not null"`
	Name       string         `json:"name" gorm:"type:varchar(100);not null"`
	Address    string         `json:"address" gorm:"type:text"`
	Active     bool           `json:"active" gorm:"default:true"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}
