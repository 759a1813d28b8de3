package repository

import (
	"context"
	"errors"

	"order-service/internal/model"

	"gorm.io/gorm"
)

// OutletRepository resolves outlets and their owning merchants
type OutletRepository struct {
	db *gorm.DB
}

// NewOutletRepository creates an outlet repository on the given database
func NewOutletRepository(db *gorm.DB) *OutletRepository {
	return &OutletRepository{db: db}
}

// GetByID loads an outlet
func (r *OutletRepository) GetByID(ctx context.Context, id uint) (*model.Outlet, error) {
	var outlet model.Outlet
	err := r.db.WithContext(ctx).First(&outlet, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &outlet, nil
}
