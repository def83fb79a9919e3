package model

import (
	"time"

	"github.com/google/uuid"
)

// ReferenceKind discriminates the lookup tables the DMT form selectors
// draw from. All kinds share the same shape, so they live in one table.
type ReferenceKind string

const (
	KindWorkCenter     ReferenceKind = "workcenters"
	KindPartNumber     ReferenceKind = "partnumbers"
	KindEmployee       ReferenceKind = "employees"
	KindCustomer       ReferenceKind = "customers"
	KindInspectionItem ReferenceKind = "inspection_items"
	KindPreparedBy     ReferenceKind = "prepared_by"
	KindCarType        ReferenceKind = "car_types"
	KindDisposition    ReferenceKind = "dispositions"
	KindFailureCode    ReferenceKind = "failure_codes"
)

// ReferenceKinds lists every supported lookup kind.
var ReferenceKinds = []ReferenceKind{
	KindWorkCenter,
	KindPartNumber,
	KindEmployee,
	KindCustomer,
	KindInspectionItem,
	KindPreparedBy,
	KindCarType,
	KindDisposition,
	KindFailureCode,
}

// Valid reports whether k is a known reference kind.
func (k ReferenceKind) Valid() bool {
	for _, known := range ReferenceKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ReferenceItem is a single lookup entry (work center, customer, ...).
type ReferenceItem struct {
	ID        uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Kind      ReferenceKind `gorm:"type:varchar(30);not null;index:idx_reference_kind_name" json:"kind"`
	Name      string        `gorm:"type:varchar(255);not null;index:idx_reference_kind_name" json:"name"`
	Code      string        `gorm:"type:varchar(100)" json:"code"` // Optional secondary identifier (e.g. employee number)
	IsActive  bool          `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}
