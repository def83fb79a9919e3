package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreate          = "CREATE"
	ActionUpdate          = "UPDATE"
	ActionDelete          = "DELETE"
	ActionClose           = "CLOSE"
	ActionReopen          = "REOPEN"
	ActionWorkflowAdvance = "WORKFLOW_ADVANCE"
)

// Entity type tags used in the audit trail
const (
	EntityDMTRecord     = "dmt_records"
	EntityUser          = "users"
	EntityReferenceItem = "reference_items"
)

// AuditLog tracks Who, What, and When for critical system changes.
// Entries are append-only; they are never updated or deleted.
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EntityType string     `gorm:"type:varchar(50);not null;index" json:"entity_type"`
	EntityID   string     `gorm:"type:varchar(64);index" json:"entity_id"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Changes    string     `gorm:"type:text" json:"changes"` // Free-text change description
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
