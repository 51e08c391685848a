package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Region represents a geographic/organizational partition. Regions scope
// access control and DCA eligibility. The region on a record is set at
// creation and never changes afterwards.
type Region struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Code     string `gorm:"size:20;not null;uniqueIndex" json:"code"` // e.g. APAC, EMEA, AMER
	Name     string `gorm:"not null" json:"name"`
	Country  string `json:"country,omitempty"`
	IsActive bool   `gorm:"not null;default:true" json:"is_active"`
}

// BeforeCreate hook to generate UUID
func (r *Region) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for Region model
func (Region) TableName() string {
	return "regions"
}
