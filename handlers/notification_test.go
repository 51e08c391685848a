package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"dca_flow_app_go/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func seedNotification(t *testing.T, testDB *gorm.DB, n *models.Notification) *models.Notification {
	t.Helper()
	if n.Type == "" {
		n.Type = models.NotificationTypeSystem
	}
	if n.Title == "" {
		n.Title = "Test notification"
	}
	assert.NoError(t, testDB.Create(n).Error)
	return n
}

func TestListNotificationsHandler(t *testing.T) {
	testDB := setupTestDB(t)
	amer := seedRegion(t, testDB, "AMER")
	emea := seedRegion(t, testDB, "EMEA")
	analyst := seedUser(t, testDB, "analyst@example.com", models.RoleFedexAnalyst)
	grantRegion(t, testDB, analyst, amer, models.AccessLevelRead)

	seedNotification(t, testDB, &models.Notification{UserID: &analyst.ID, Title: "Personal"})
	seedNotification(t, testDB, &models.Notification{RegionID: &amer.ID, Title: "Regional"})
	seedNotification(t, testDB, &models.Notification{RegionID: &emea.ID, Title: "Other region"})

	_, c, rec := setupEcho(http.MethodGet, "/api/notifications", nil)
	asUser(c, analyst)

	assert.NoError(t, ListNotificationsHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Notifications []models.Notification `json:"notifications"`
		UnreadCount   int64                 `json:"unread_count"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.Notifications, 2)
	assert.Equal(t, int64(2), payload.UnreadCount)
	for _, n := range payload.Notifications {
		assert.NotEqual(t, "Other region", n.Title)
	}
}

func TestMarkNotificationReadHandler(t *testing.T) {
	testDB := setupTestDB(t)
	analyst := seedUser(t, testDB, "analyst@example.com", models.RoleFedexAnalyst)
	notification := seedNotification(t, testDB, &models.Notification{UserID: &analyst.ID})

	_, c, rec := setupEcho(http.MethodPost, "/api/notifications/"+notification.ID+"/read", nil)
	c.SetParamNames("id")
	c.SetParamValues(notification.ID)
	asUser(c, analyst)

	assert.NoError(t, MarkNotificationReadHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var refreshed models.Notification
	assert.NoError(t, testDB.First(&refreshed, "id = ?", notification.ID).Error)
	assert.True(t, refreshed.IsRead())
}

func TestMarkNotificationReadHandlerScoping(t *testing.T) {
	testDB := setupTestDB(t)
	owner := seedUser(t, testDB, "owner@example.com", models.RoleFedexAnalyst)
	outsider := seedUser(t, testDB, "outsider@example.com", models.RoleFedexAnalyst)
	notification := seedNotification(t, testDB, &models.Notification{UserID: &owner.ID})

	_, c, _ := setupEcho(http.MethodPost, "/api/notifications/"+notification.ID+"/read", nil)
	c.SetParamNames("id")
	c.SetParamValues(notification.ID)
	asUser(c, outsider)

	assert.NoError(t, MarkNotificationReadHandler(c))

	// Someone else's notification stays unread
	var refreshed models.Notification
	assert.NoError(t, testDB.First(&refreshed, "id = ?", notification.ID).Error)
	assert.False(t, refreshed.IsRead())
}

func TestMarkAllNotificationsReadHandler(t *testing.T) {
	testDB := setupTestDB(t)
	amer := seedRegion(t, testDB, "AMER")
	analyst := seedUser(t, testDB, "analyst@example.com", models.RoleFedexAnalyst)
	grantRegion(t, testDB, analyst, amer, models.AccessLevelRead)

	seedNotification(t, testDB, &models.Notification{UserID: &analyst.ID})
	seedNotification(t, testDB, &models.Notification{RegionID: &amer.ID})

	_, c, rec := setupEcho(http.MethodPost, "/api/notifications/read-all", nil)
	asUser(c, analyst)

	assert.NoError(t, MarkAllNotificationsReadHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var unread int64
	testDB.Model(&models.Notification{}).Where("read_at IS NULL").Count(&unread)
	assert.Equal(t, int64(0), unread)
}
