package handlers

import (
	"net/http"

	"dca_flow_app_go/db"
	"dca_flow_app_go/middleware"
	"dca_flow_app_go/models"
	"dca_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

func userRegionIDs(user *models.User) ([]string, error) {
	if models.IsGlobalRole(user.Role) {
		return nil, nil
	}
	return services.AccessibleRegionIDs(db.DB, user.ID)
}

// ListNotificationsHandler returns the user's unread notifications
func ListNotificationsHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	regionIDs, err := userRegionIDs(user)
	if err != nil {
		return respondError(c, err)
	}

	svc := services.NewNotificationService(db.DB)
	notifications, err := svc.GetUnreadNotifications(user, regionIDs)
	if err != nil {
		return respondError(c, err)
	}
	count, err := svc.GetNotificationCount(user, regionIDs)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"unread_count":  count,
	})
}

// MarkNotificationReadHandler marks a single notification as read
func MarkNotificationReadHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	regionIDs, err := userRegionIDs(user)
	if err != nil {
		return respondError(c, err)
	}

	svc := services.NewNotificationService(db.DB)
	if err := svc.MarkAsRead(c.Param("id"), user, regionIDs); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "read"})
}

// MarkAllNotificationsReadHandler marks all visible notifications read
func MarkAllNotificationsReadHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	regionIDs, err := userRegionIDs(user)
	if err != nil {
		return respondError(c, err)
	}

	svc := services.NewNotificationService(db.DB)
	if err := svc.MarkAllAsRead(user, regionIDs); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "read"})
}
