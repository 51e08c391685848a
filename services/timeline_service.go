package services

import (
	"fmt"
	"log"

	"dca_flow_app_go/models"

	"gorm.io/gorm"
)

// AppendTimelineEntry adds one human-readable entry to a case's
// timeline. Timeline writes piggyback on business mutations, so like
// audit writes they are logged but never fail the operation.
func AppendTimelineEntry(
	db *gorm.DB,
	caseID string,
	entryType string,
	message string,
	actorType string,
	actorID *string,
	actorName string,
) {
	entry := models.CaseTimelineEntry{
		CaseID:    caseID,
		EntryType: entryType,
		Message:   message,
		ActorType: actorType,
		ActorID:   actorID,
		ActorName: actorName,
	}
	if err := db.Create(&entry).Error; err != nil {
		log.Printf("[TIMELINE] Failed to append entry for case %s: %v", caseID, err)
	}
}

// StatusChangeMessage builds the timeline message for a status change
func StatusChangeMessage(from, to, reason string) string {
	msg := fmt.Sprintf("Status changed from %s to %s", from, to)
	if reason != "" {
		msg += fmt.Sprintf(": %s", reason)
	}
	return msg
}

// GetCaseTimeline returns a case's timeline newest-first
func GetCaseTimeline(db *gorm.DB, caseID string) ([]models.CaseTimelineEntry, error) {
	var entries []models.CaseTimelineEntry
	err := db.Where("case_id = ?", caseID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}
