package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DCA status constants
const (
	DCAStatusActive    = "ACTIVE"
	DCAStatusInactive  = "INACTIVE"
	DCAStatusSuspended = "SUSPENDED"
)

// DCA represents an external debt-collection agency working cases on
// behalf of the network.
type DCA struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name         string `gorm:"not null;uniqueIndex" json:"name"`
	Code         string `gorm:"size:20;not null;uniqueIndex" json:"code"`
	Status       string `gorm:"not null;default:ACTIVE;index" json:"status"`
	ContactEmail string `json:"contact_email,omitempty"`

	// Global performance metrics. Region-scoped metrics on the
	// region assignment take precedence during allocation scoring.
	PerformanceScore  float64 `gorm:"not null;default:0" json:"performance_score"`
	RecoveryRate      float64 `gorm:"not null;default:0" json:"recovery_rate"`
	SLAComplianceRate float64 `gorm:"not null;default:0" json:"sla_compliance_rate"`

	// Capacity
	CapacityLimit int `gorm:"not null;default:0" json:"capacity_limit"`
	CapacityUsed  int `gorm:"not null;default:0" json:"capacity_used"`

	// Relationships
	RegionAssignments []RegionDCAAssignment `gorm:"foreignKey:DCAID" json:"region_assignments,omitempty"`
}

// BeforeCreate hook to generate UUID
func (d *DCA) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for DCA model
func (DCA) TableName() string {
	return "dcas"
}

// IsActive checks if the DCA can receive new work
func (d *DCA) IsActive() bool {
	return d.Status == DCAStatusActive
}

// IsValidDCAStatus checks if the status is valid
func IsValidDCAStatus(status string) bool {
	validStatuses := []string{
		DCAStatusActive,
		DCAStatusInactive,
		DCAStatusSuspended,
	}
	for _, s := range validStatuses {
		if s == status {
			return true
		}
	}
	return false
}
