package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification types
const (
	NotificationTypeCaseUpdate       = "CASE_UPDATE"
	NotificationTypeEscalation       = "ESCALATION"
	NotificationTypeAllocation       = "ALLOCATION"
	NotificationTypeAllocationFailed = "ALLOCATION_FAILED"
	NotificationTypeSystem           = "SYSTEM"
)

type Notification struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Targeting: a specific user, everyone in a region, or everyone in a DCA
	UserID   *string `gorm:"type:uuid;index" json:"user_id,omitempty"`
	RegionID *string `gorm:"type:uuid;index" json:"region_id,omitempty"`
	DCAID    *string `gorm:"type:uuid;index" json:"dca_id,omitempty"`

	// Context
	CaseID *string `gorm:"type:uuid" json:"case_id,omitempty"`

	// Content
	Type    string `gorm:"not null" json:"type"`
	Title   string `gorm:"not null" json:"title"`
	Message string `gorm:"type:text" json:"message"`
	LinkURL string `json:"link_url,omitempty"` // e.g., "/cases/{case_id}"

	// Read tracking
	ReadAt *time.Time `json:"read_at,omitempty"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"-"`
	Case *Case `gorm:"foreignKey:CaseID" json:"case,omitempty"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
