package repository

import (
	"order-service/internal/auth"
	"order-service/internal/model"

	"gorm.io/gorm"
)

// scopedOrders narrows an order query to the rows the caller's tenant scope
// may see. This is the single enforcement point for data scoping: every order
// read in this package goes through it, so a forgotten manual check cannot
// widen visibility. Rows outside the scope behave exactly like absent rows.
func scopedOrders(db *gorm.DB, base *gorm.DB, sctx *auth.SecurityContext) *gorm.DB {
	if sctx == nil || sctx.Anonymous() {
		return db.Where("1 = 0")
	}

	switch sctx.Role().Scope() {
	case auth.ScopeGlobal:
		return db
	case auth.ScopeUser:
		return db.Where("orders.user_id = ?", sctx.UserID())
	case auth.ScopeOutlet:
		if id := sctx.EffectiveOutletID(); id != nil {
			return db.Where("orders.outlet_id = ?", *id)
		}
	case auth.ScopeMerchant:
		if id := sctx.EffectiveMerchantID(); id != nil {
			sub := base.Session(&gorm.Session{NewDB: true}).
				Model(&model.Outlet{}).
				Select("id").
				Where("merchant_id = ?", *id)
			return db.Where("orders.outlet_id IN (?)", sub)
		}
	}

	// A scoped role without its tenant id sees nothing
	return db.Where("1 = 0")
}
