package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User role constants. SUPER_ADMIN and FEDEX_ADMIN are global roles that
// bypass all region filters; every other role is restricted to its
// explicitly granted regions.
const (
	RoleSuperAdmin   = "SUPER_ADMIN"
	RoleFedexAdmin   = "FEDEX_ADMIN"
	RoleFedexManager = "FEDEX_MANAGER"
	RoleFedexAnalyst = "FEDEX_ANALYST"
	RoleDCAAdmin     = "DCA_ADMIN"
	RoleDCAManager   = "DCA_MANAGER"
	RoleDCAAgent     = "DCA_AGENT"
)

type User struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name            string     `gorm:"not null" json:"name"`
	Email           string     `gorm:"uniqueIndex;not null" json:"email"`
	Password        string     `gorm:"not null" json:"-"`
	Role            string     `gorm:"not null;default:FEDEX_ANALYST" json:"role"`
	DCAID           *string    `gorm:"type:uuid;index" json:"dca_id,omitempty"` // Only for DCA-side roles
	PrimaryRegionID *string    `gorm:"type:uuid" json:"primary_region_id,omitempty"`
	IsActive        bool       `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt     *time.Time `json:"last_login_at"`

	// Relationships
	DCA           *DCA               `gorm:"foreignKey:DCAID" json:"dca,omitempty"`
	PrimaryRegion *Region            `gorm:"foreignKey:PrimaryRegionID" json:"primary_region,omitempty"`
	RegionGrants  []UserRegionAccess `gorm:"foreignKey:UserID" json:"region_grants,omitempty"`
}

// BeforeCreate hook to generate UUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// IsGlobalRole reports whether the role bypasses region filtering
func IsGlobalRole(role string) bool {
	return role == RoleSuperAdmin || role == RoleFedexAdmin
}

// IsDCARole reports whether the role belongs to a collection agency
func IsDCARole(role string) bool {
	switch role {
	case RoleDCAAdmin, RoleDCAManager, RoleDCAAgent:
		return true
	}
	return false
}

// IsFedexRole reports whether the role belongs to the FedEx side
func IsFedexRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleFedexAdmin, RoleFedexManager, RoleFedexAnalyst:
		return true
	}
	return false
}

// IsValidRole checks if the role is part of the closed set
func IsValidRole(role string) bool {
	return IsDCARole(role) || IsFedexRole(role)
}

// HasDCA checks if the user belongs to a collection agency
func (u *User) HasDCA() bool {
	return u.DCAID != nil && *u.DCAID != ""
}
