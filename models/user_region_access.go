package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Region access levels, ordered READ < WRITE < ADMIN
const (
	AccessLevelRead  = "READ"
	AccessLevelWrite = "WRITE"
	AccessLevelAdmin = "ADMIN"
)

// AccessLevelRank maps an access level to its ordering value. Unknown
// levels rank at zero so they never satisfy a requirement.
func AccessLevelRank(level string) int {
	switch level {
	case AccessLevelRead:
		return 1
	case AccessLevelWrite:
		return 2
	case AccessLevelAdmin:
		return 3
	}
	return 0
}

// UserRegionAccess is an explicit per-user region grant. Revocation keeps
// the row with a revoke trail instead of deleting it, so grants remain
// auditable.
type UserRegionAccess struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID string `gorm:"type:uuid;not null;index:idx_user_region_access" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"-"`

	RegionID string `gorm:"type:uuid;not null;index:idx_user_region_access" json:"region_id"`
	Region   Region `gorm:"foreignKey:RegionID" json:"region,omitempty"`

	AccessLevel string `gorm:"not null;default:READ" json:"access_level"`
	IsPrimary   bool   `gorm:"not null;default:false" json:"is_primary"`

	// Grant/revoke trail
	GrantedBy    string     `gorm:"type:uuid;not null" json:"granted_by"`
	GrantedAt    time.Time  `gorm:"not null" json:"granted_at"`
	GrantReason  *string    `gorm:"type:text" json:"grant_reason,omitempty"`
	RevokedBy    *string    `gorm:"type:uuid" json:"revoked_by,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokeReason *string    `gorm:"type:text" json:"revoke_reason,omitempty"`
}

// BeforeCreate hook to generate UUID and set grant timestamp
func (a *UserRegionAccess) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.GrantedAt.IsZero() {
		a.GrantedAt = time.Now()
	}
	return nil
}

// TableName specifies the table name
func (UserRegionAccess) TableName() string {
	return "user_region_access"
}

// IsRevoked checks if the grant has been revoked
func (a *UserRegionAccess) IsRevoked() bool {
	return a.RevokedAt != nil
}

// IsValidAccessLevel checks if the level is part of the closed set
func IsValidAccessLevel(level string) bool {
	return AccessLevelRank(level) > 0
}
