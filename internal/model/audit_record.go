package model

import "time"

// AuditRecord logs a global-access (admin or super admin) read or write.
// Written synchronously before the operation's result is returned.
type AuditRecord struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ActorID      uint      `json:"actor_id" gorm:"index;not null"`
	ActorRole    string    `json:"actor_role" gorm:"type:varchar(32);not null"`
	Action       string    `json:"action" gorm:"type:varchar(64);not null"`
	ResourceType string    `json:"resource_type" gorm:"type:varchar(64);index;not null"`
	ResourceID   string    `json:"resource_id" gorm:"type:varchar(64);not null"`
	CreatedAt    time.Time `json:"created_at"`
}
