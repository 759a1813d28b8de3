package repository

import "gorm.io/gorm"

// EnsureOrderIndexes creates the indexes AutoMigrate cannot express. The
// pickup code must be unique among non-terminal orders only; a terminal order
// may keep a code that is later issued again.
func EnsureOrderIndexes(db *gorm.DB) error {
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_pickup_code_active
		ON orders (pickup_code)
		WHERE status NOT IN ('COMPLETED', 'DECLINED', 'CANCELLED', 'EXPIRED', 'REFUNDED')`).Error
}
