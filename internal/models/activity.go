package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog captures auditable grading events such as session starts,
// completions, regrades and manual overrides.
type ActivityLog struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	ActorID       uint              `gorm:"not null" json:"actor_id"`
	ActorRole     string            `gorm:"size:32;not null" json:"actor_role"`
	Action        string            `gorm:"size:64;not null;index" json:"action"`
	EntityType    string            `gorm:"size:64;not null;index:idx_activity_logs_entity,priority:1" json:"entity_type"`
	EntityID      *uint             `gorm:"index:idx_activity_logs_entity,priority:2" json:"entity_id"`
	CorrelationID string            `gorm:"size:64" json:"correlation_id,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
}
