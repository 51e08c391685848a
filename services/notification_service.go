package services

import (
	"fmt"
	"time"

	"dca_flow_app_go/models"

	"gorm.io/gorm"
)

type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// visibleTo scopes notifications to a user: their own, their regions',
// and (for agency users) their DCA's
func (s *NotificationService) visibleTo(user *models.User, regionIDs []string) *gorm.DB {
	query := s.DB.Where("user_id = ?", user.ID)
	if len(regionIDs) > 0 {
		query = query.Or("user_id IS NULL AND region_id IN ?", regionIDs)
	}
	if user.HasDCA() {
		query = query.Or("user_id IS NULL AND dca_id = ?", *user.DCAID)
	}
	return s.DB.Where(query)
}

func (s *NotificationService) GetUnreadNotifications(user *models.User, regionIDs []string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.visibleTo(user, regionIDs).
		Where("read_at IS NULL").
		Order("created_at DESC").
		Limit(5).
		Find(&notifications).Error
	return notifications, err
}

func (s *NotificationService) MarkAsRead(notificationID string, user *models.User, regionIDs []string) error {
	now := time.Now()
	return s.visibleTo(user, regionIDs).
		Model(&models.Notification{}).
		Where("id = ?", notificationID).
		Update("read_at", now).Error
}

func (s *NotificationService) MarkAllAsRead(user *models.User, regionIDs []string) error {
	now := time.Now()
	return s.visibleTo(user, regionIDs).
		Model(&models.Notification{}).
		Where("read_at IS NULL").
		Update("read_at", now).Error
}

func (s *NotificationService) GetNotificationCount(user *models.User, regionIDs []string) (int64, error) {
	var count int64
	err := s.visibleTo(user, regionIDs).
		Model(&models.Notification{}).
		Where("read_at IS NULL").
		Count(&count).Error
	return count, err
}

func (s *NotificationService) CreateNotification(notification *models.Notification) error {
	return s.DB.Create(notification).Error
}

// NotifyEscalation fans an escalation out to the case's region feed
func (s *NotificationService) NotifyEscalation(caseRecord *models.Case, reason string) error {
	return s.CreateNotification(&models.Notification{
		RegionID: caseRecord.RegionID,
		CaseID:   &caseRecord.ID,
		Type:     models.NotificationTypeEscalation,
		Title:    fmt.Sprintf("Case %s escalated", caseRecord.CaseNumber),
		Message:  reason,
		LinkURL:  fmt.Sprintf("/cases/%s", caseRecord.ID),
	})
}

// NotifyAllocationFailure tells the region feed an allocation attempt
// cannot succeed without operator intervention
func (s *NotificationService) NotifyAllocationFailure(caseRecord *models.Case, code string) error {
	return s.CreateNotification(&models.Notification{
		RegionID: caseRecord.RegionID,
		CaseID:   &caseRecord.ID,
		Type:     models.NotificationTypeAllocationFailed,
		Title:    fmt.Sprintf("Allocation failed for case %s", caseRecord.CaseNumber),
		Message:  fmt.Sprintf("Allocation failed with %s; capacity or eligibility must change before retrying", code),
		LinkURL:  fmt.Sprintf("/cases/%s", caseRecord.ID),
	})
}
