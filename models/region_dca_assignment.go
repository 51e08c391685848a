package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RegionDCAAssignment links a region to a DCA eligible to serve it and
// carries the region-scoped rolling performance metrics that feed the
// allocation engine. Metrics are updated incrementally after every case
// closure attributable to that DCA in that region.
type RegionDCAAssignment struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	RegionID string `gorm:"type:uuid;not null;index:idx_region_dca,unique" json:"region_id"`
	Region   Region `gorm:"foreignKey:RegionID" json:"region,omitempty"`

	DCAID string `gorm:"type:uuid;not null;index:idx_region_dca,unique" json:"dca_id"`
	DCA   DCA    `gorm:"foreignKey:DCAID" json:"dca,omitempty"`

	// Allocation preferences
	IsPrimary             bool    `gorm:"not null;default:false" json:"is_primary"`
	AllocationPriority    int     `gorm:"not null;default:5" json:"allocation_priority"`       // lower = more preferred
	CapacityAllocationPct float64 `gorm:"not null;default:100" json:"capacity_allocation_pct"` // share of the DCA's total capacity reserved for this region

	// Region-scoped rolling metrics (sliding averages)
	RecoveryRate      *float64 `json:"recovery_rate,omitempty"`
	SLAComplianceRate *float64 `json:"sla_compliance_rate,omitempty"`
	CasesHandled      int      `gorm:"not null;default:0" json:"cases_handled"`
	AmountRecovered   float64  `gorm:"not null;default:0" json:"amount_recovered"`
	AvgRecoveryDays   float64  `gorm:"not null;default:0" json:"avg_recovery_days"`

	// Only active, non-suspended assignments participate in allocation
	IsActive    bool `gorm:"not null;default:true" json:"is_active"`
	IsSuspended bool `gorm:"not null;default:false" json:"is_suspended"`
}

// BeforeCreate hook to generate UUID
func (a *RegionDCAAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (RegionDCAAssignment) TableName() string {
	return "region_dca_assignments"
}

// EffectiveCapacity returns the portion of the DCA's capacity reserved
// for this region, floored to a whole case count.
func (a *RegionDCAAssignment) EffectiveCapacity(capacityLimit int) int {
	return int(float64(capacityLimit) * a.CapacityAllocationPct / 100.0)
}

// EffectiveRecoveryRate returns the region-scoped recovery rate when
// present, falling back to the DCA's global rate otherwise.
func (a *RegionDCAAssignment) EffectiveRecoveryRate(global float64) float64 {
	if a.RecoveryRate != nil {
		return *a.RecoveryRate
	}
	return global
}

// EffectiveSLACompliance returns the region-scoped SLA compliance when
// present, falling back to the DCA's global rate otherwise.
func (a *RegionDCAAssignment) EffectiveSLACompliance(global float64) float64 {
	if a.SLAComplianceRate != nil {
		return *a.SLAComplianceRate
	}
	return global
}
