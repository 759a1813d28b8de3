package audit

import (
	"context"
	"fmt"
	"order-service/internal/model"
	"order-service/prometheus"

	"gorm.io/gorm"
)

// Sink records global-access operations. Record is synchronous: it must
// return before the audited operation's result is returned to the caller.
type Sink interface {
	Record(ctx context.Context, actorID uint, actorRole, action, resourceType, resourceID string) error
}

// DBSink persists audit records in the service database
type DBSink struct {
	db *gorm.DB
}

// NewDBSink creates an audit sink backed by the given database
func NewDBSink(db *gorm.DB) *DBSink {
	return &DBSink{db: db}
}

// Record writes one audit row
func (s *DBSink) Record(ctx context.Context, actorID uint, actorRole, action, resourceType, resourceID string) error {
	record := model.AuditRecord{
		ActorID:      actorID,
		ActorRole:    actorRole,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("writing audit record: %w", err)
	}
	prometheus.AuditRecordCounter.Inc()
	return nil
}
