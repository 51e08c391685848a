package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Case status constants. The transition graph between these lives in the
// state machine service; the model only names the closed set.
const (
	CaseStatusPendingAllocation = "PENDING_ALLOCATION"
	CaseStatusAllocated         = "ALLOCATED"
	CaseStatusInProgress        = "IN_PROGRESS"
	CaseStatusCustomerContacted = "CUSTOMER_CONTACTED"
	CaseStatusPaymentPromised   = "PAYMENT_PROMISED"
	CaseStatusPartialPayment    = "PARTIAL_PAYMENT"
	CaseStatusDisputed          = "DISPUTED"
	CaseStatusEscalated         = "ESCALATED"
	CaseStatusPartialRecovery   = "PARTIAL_RECOVERY"
	CaseStatusFullRecovery      = "FULL_RECOVERY"
	CaseStatusWrittenOff        = "WRITTEN_OFF"
	CaseStatusClosed            = "CLOSED"
)

// Case priority constants
const (
	CasePriorityLow      = "LOW"
	CasePriorityMedium   = "MEDIUM"
	CasePriorityHigh     = "HIGH"
	CasePriorityCritical = "CRITICAL"
)

// Case represents a debt-collection matter tracked through the network.
type Case struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Case identification
	CaseNumber string `gorm:"not null;uniqueIndex" json:"case_number"`
	DebtorName string `gorm:"not null" json:"debtor_name"`

	// Financial
	OriginalAmount    float64 `gorm:"not null" json:"original_amount"`
	OutstandingAmount float64 `gorm:"not null" json:"outstanding_amount"`
	RecoveredAmount   float64 `gorm:"not null;default:0" json:"recovered_amount"`
	Currency          string  `gorm:"size:3;not null;default:USD" json:"currency"`

	// Classification
	Priority        string   `gorm:"not null;default:MEDIUM;index" json:"priority"`
	Status          string   `gorm:"not null;default:PENDING_ALLOCATION;index:idx_case_region_status" json:"status"`
	RiskScore       *float64 `json:"risk_score,omitempty"`
	CustomerSegment *string  `gorm:"size:50" json:"customer_segment,omitempty"`

	// Region is set at creation and immutable afterwards. Region-mutating
	// update payloads are rejected before they reach persistence.
	RegionID *string `gorm:"type:uuid;index:idx_case_region_status" json:"region_id,omitempty"`
	Region   *Region `gorm:"foreignKey:RegionID" json:"region,omitempty"`

	// Assignment - system-only fields. The allocation engine is the single
	// writer; human-originated updates carrying these keys are rejected.
	AssignedDCAID   *string `gorm:"type:uuid;index" json:"assigned_dca_id,omitempty"`
	AssignedDCA     *DCA    `gorm:"foreignKey:AssignedDCAID" json:"assigned_dca,omitempty"`
	AssignedAgentID *string `gorm:"type:uuid;index" json:"assigned_agent_id,omitempty"`
	AssignedAgent   *User   `gorm:"foreignKey:AssignedAgentID" json:"assigned_agent,omitempty"`

	// Flags
	IsDisputed         bool       `gorm:"not null;default:false" json:"is_disputed"`
	DisputeReason      *string    `gorm:"type:text" json:"dispute_reason,omitempty"`
	HighPriorityFlag   bool       `gorm:"not null;default:false" json:"high_priority_flag"`
	VIPCustomer        bool       `gorm:"not null;default:false" json:"vip_customer"`
	EscalatedByManager bool       `gorm:"not null;default:false" json:"escalated_by_manager"`
	EscalatedAt        *time.Time `json:"escalated_at,omitempty"`
	EscalationReason   *string    `gorm:"type:text" json:"escalation_reason,omitempty"`

	// SLA tracking. The clock stops when the case reaches a terminal state.
	SLADueAt       *time.Time `json:"sla_due_at,omitempty"`
	FirstContactAt *time.Time `json:"first_contact_at,omitempty"`

	// Notes and audit fields
	Notes         *string    `gorm:"type:text" json:"notes,omitempty"`
	UpdatedBy     *string    `gorm:"type:uuid" json:"updated_by,omitempty"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	ClosureReason *string    `gorm:"type:text" json:"closure_reason,omitempty"`

	// Relationships
	Timeline  []CaseTimelineEntry `gorm:"foreignKey:CaseID" json:"timeline,omitempty"`
	Documents []CaseDocument      `gorm:"foreignKey:CaseID" json:"documents,omitempty"`
}

// BeforeCreate hook to generate UUID
func (c *Case) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for Case model
func (Case) TableName() string {
	return "cases"
}

// HasRegion checks if the case has a region assigned
func (c *Case) HasRegion() bool {
	return c.RegionID != nil && *c.RegionID != ""
}

// IsAssigned checks if the case is assigned to a DCA
func (c *Case) IsAssigned() bool {
	return c.AssignedDCAID != nil && *c.AssignedDCAID != ""
}

// IsValidCaseStatus checks if the status is part of the closed enum
func IsValidCaseStatus(status string) bool {
	validStatuses := []string{
		CaseStatusPendingAllocation,
		CaseStatusAllocated,
		CaseStatusInProgress,
		CaseStatusCustomerContacted,
		CaseStatusPaymentPromised,
		CaseStatusPartialPayment,
		CaseStatusDisputed,
		CaseStatusEscalated,
		CaseStatusPartialRecovery,
		CaseStatusFullRecovery,
		CaseStatusWrittenOff,
		CaseStatusClosed,
	}
	for _, s := range validStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsValidCasePriority checks if the priority is valid
func IsValidCasePriority(priority string) bool {
	switch priority {
	case CasePriorityLow, CasePriorityMedium, CasePriorityHigh, CasePriorityCritical:
		return true
	}
	return false
}
