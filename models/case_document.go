package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CaseDocument is a file attached to a case (payment proofs, dispute
// correspondence, write-off approvals). The binary lives in object
// storage; this row keeps the metadata and the storage key.
type CaseDocument struct {
	ID        string         `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	CaseID string `gorm:"type:uuid;not null;index" json:"case_id"`
	Case   Case   `gorm:"foreignKey:CaseID" json:"-"`

	FileName         string `gorm:"not null" json:"file_name"`
	FileOriginalName string `gorm:"not null" json:"file_original_name"`
	FileSize         int64  `gorm:"not null" json:"file_size"`
	MimeType         string `json:"mime_type"`
	StorageKey       string `gorm:"not null" json:"-"`

	UploadedBy string `gorm:"type:uuid;not null" json:"uploaded_by"`
	Uploader   *User  `gorm:"foreignKey:UploadedBy" json:"uploader,omitempty"`
}

// BeforeCreate hook to generate UUID
func (d *CaseDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (CaseDocument) TableName() string {
	return "case_documents"
}
