package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Timeline entry types
const (
	TimelineEntryStatusChange = "STATUS_CHANGE"
	TimelineEntryAllocation   = "ALLOCATION"
	TimelineEntryEscalation   = "ESCALATION"
	TimelineEntryDispute      = "DISPUTE"
	TimelineEntryClosure      = "CLOSURE"
	TimelineEntryNote         = "NOTE"
	TimelineEntryImport       = "IMPORT"
)

// CaseTimelineEntry is a human-readable record of something that happened
// to a case, rendered on the case detail view. Entries are append-only.
type CaseTimelineEntry struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	CaseID string `gorm:"type:uuid;not null;index" json:"case_id"`
	Case   Case   `gorm:"foreignKey:CaseID" json:"-"`

	EntryType string `gorm:"not null;index" json:"entry_type"`
	Message   string `gorm:"type:text;not null" json:"message"`

	// Attribution mirrors the audit log: SYSTEM or HUMAN
	ActorType string  `gorm:"not null" json:"actor_type"`
	ActorID   *string `gorm:"type:uuid" json:"actor_id,omitempty"`
	ActorName string  `json:"actor_name,omitempty"` // Denormalized service or user name
}

// BeforeCreate hook to generate UUID
func (e *CaseTimelineEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (CaseTimelineEntry) TableName() string {
	return "case_timeline_entries"
}
