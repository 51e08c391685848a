package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditAction represents the type of operation performed
type AuditAction string

const (
	AuditActionCreate       AuditAction = "CREATE"
	AuditActionUpdate       AuditAction = "UPDATE"
	AuditActionDelete       AuditAction = "DELETE"
	AuditActionStatusChange AuditAction = "STATUS_CHANGE"
	AuditActionAllocate     AuditAction = "ALLOCATE"
	AuditActionImport       AuditAction = "IMPORT"
	AuditActionGrantAccess  AuditAction = "GRANT_ACCESS"
	AuditActionRevokeAccess AuditAction = "REVOKE_ACCESS"
	AuditActionLogin        AuditAction = "LOGIN"
	AuditActionLogout       AuditAction = "LOGOUT"
	AuditActionSecurity     AuditAction = "SECURITY"
)

// Actor types
const (
	ActorTypeSystem = "SYSTEM"
	ActorTypeHuman  = "HUMAN"
)

// Audit severities
const (
	AuditSeverityInfo     = "INFO"
	AuditSeverityWarning  = "WARNING"
	AuditSeverityError    = "ERROR"
	AuditSeverityCritical = "CRITICAL"
)

// AuditLog is an immutable record of one mutating action. Every entry is
// attributed to either a named automated service or a human user, and the
// region on the entry is derived from the affected resource rather than
// taken from the request, so a client cannot misattribute an action to
// the wrong region.
type AuditLog struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index:idx_audit_created_at" json:"created_at"`

	// Actor identification
	ActorType   string  `gorm:"not null;index:idx_audit_actor" json:"actor_type"` // SYSTEM | HUMAN
	ServiceName *string `gorm:"size:50" json:"service_name,omitempty"`            // SYSTEM actors only, from the service registry
	UserID      *string `gorm:"type:uuid;index:idx_audit_user" json:"user_id,omitempty"`
	UserEmail   string  `json:"user_email,omitempty"` // Denormalized for historical accuracy
	UserRole    string  `json:"user_role,omitempty"`  // Denormalized

	// Region provenance. RegionFallback marks entries where derivation
	// failed and the configured default region was recorded instead.
	RegionID       *string `gorm:"type:uuid;index:idx_audit_region" json:"region_id,omitempty"`
	RegionFallback bool    `gorm:"not null;default:false" json:"region_fallback"`

	// Target resource
	ResourceType string `gorm:"not null;index:idx_audit_resource" json:"resource_type"` // e.g., "Case", "DCA"
	ResourceID   string `gorm:"not null;index:idx_audit_resource" json:"resource_id"`
	ResourceName string `json:"resource_name,omitempty"` // Human-readable identifier (e.g., case number)

	// Operation details
	Action   AuditAction `gorm:"not null;index:idx_audit_action" json:"action"`
	Severity string      `gorm:"not null;default:INFO;index" json:"severity"`
	Details  string      `gorm:"type:text" json:"details,omitempty"` // JSON encoded

	// Request metadata (human actions only)
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// Relationships (for reading, not for data integrity)
	User   *User   `gorm:"foreignKey:UserID" json:"-"`
	Region *Region `gorm:"foreignKey:RegionID" json:"-"`
}

// BeforeCreate generates UUID
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// BeforeUpdate prevents modification of audit logs (immutability)
func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrRecordNotFound // Prevent any updates
}

// BeforeDelete prevents deletion of audit logs (immutability)
func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return gorm.ErrRecordNotFound // Prevent any deletes
}

// TableName specifies the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

// IsSystemAction checks if the entry was produced by an automated service
func (a *AuditLog) IsSystemAction() bool {
	return a.ActorType == ActorTypeSystem
}
