package handlers

import (
	"net/http"
	"time"

	"dca_flow_app_go/db"
	"dca_flow_app_go/middleware"
	"dca_flow_app_go/models"
	"dca_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

// ResourceAuditHistoryHandler returns the audit trail for one resource
func ResourceAuditHistoryHandler(c echo.Context) error {
	return resourceAuditHistory(c, c.Param("type"), c.Param("id"))
}

// CaseAuditHistoryHandler returns the audit trail for a case
func CaseAuditHistoryHandler(c echo.Context) error {
	return resourceAuditHistory(c, "Case", c.Param("id"))
}

func resourceAuditHistory(c echo.Context, resourceType, resourceID string) error {
	// Case audit trails honor the same visibility rules as the case
	if resourceType == "Case" {
		user := middleware.GetCurrentUser(c)
		access, err := services.CanAccessCase(db.DB, user.ID, resourceID)
		if err != nil {
			return respondError(c, err)
		}
		if !access.Allowed {
			return respondError(c, services.NewDomainError(services.ErrCodeForbidden, access.Reason))
		}
	}

	logs, err := services.GetResourceAuditHistory(db.DB, resourceType, resourceID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"logs": logs})
}

// ListAuditLogsHandler returns paginated audit logs scoped to the
// regions the caller can see
func ListAuditLogsHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	var regionIDs []string
	if !models.IsGlobalRole(user.Role) {
		ids, err := services.AccessibleRegionIDs(db.DB, user.ID)
		if err != nil {
			return respondError(c, err)
		}
		if len(ids) == 0 {
			return c.JSON(http.StatusOK, map[string]interface{}{
				"logs": []models.AuditLog{}, "total": 0,
			})
		}
		regionIDs = ids
	}

	filters := services.AuditLogFilters{
		UserID:       c.QueryParam("user_id"),
		ActorType:    c.QueryParam("actor_type"),
		ResourceType: c.QueryParam("resource_type"),
		Action:       c.QueryParam("action"),
		Severity:     c.QueryParam("severity"),
	}
	if from := c.QueryParam("date_from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filters.DateFrom = t
		}
	}
	if to := c.QueryParam("date_to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			// Include the whole end day
			filters.DateTo = t.Add(24*time.Hour - time.Second)
		}
	}

	page, pageSize := paginationParams(c)

	logs, total, err := services.GetRegionAuditLogs(db.DB, regionIDs, filters, page, pageSize)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"logs":      logs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// SecurityAlertsHandler exposes recent in-memory security alerts
func SecurityAlertsHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"alerts": services.Monitor.GetRecentAlerts(),
	})
}
