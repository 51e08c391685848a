package handlers

import (
	"net/http"
	"time"

	"dca_flow_app_go/db"
	"dca_flow_app_go/middleware"
	"dca_flow_app_go/models"
	"dca_flow_app_go/services"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// DashboardHandler returns headline numbers scoped to the regions the
// caller can see. DCA users additionally only count their own book.
func DashboardHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	scoped := func() *gorm.DB {
		query := db.DB.Model(&models.Case{})
		query = services.ApplyRegionFilter(db.DB, user, query, "region_id")
		if models.IsDCARole(user.Role) && user.HasDCA() {
			query = query.Where("assigned_dca_id = ?", *user.DCAID)
		}
		return query
	}

	var totalCases, pendingAllocation, disputed, escalated, overdue int64
	if err := scoped().Count(&totalCases).Error; err != nil {
		return respondError(c, err)
	}
	scoped().Where("status = ?", models.CaseStatusPendingAllocation).Count(&pendingAllocation)
	scoped().Where("status = ?", models.CaseStatusDisputed).Count(&disputed)
	scoped().Where("status = ?", models.CaseStatusEscalated).Count(&escalated)
	scoped().Where("sla_due_at < ? AND status NOT IN ?", time.Now(), terminalStatuses()).Count(&overdue)

	var amounts struct {
		Outstanding float64 `json:"outstanding"`
		Recovered   float64 `json:"recovered"`
	}
	scoped().Select("COALESCE(SUM(outstanding_amount),0) as outstanding, COALESCE(SUM(recovered_amount),0) as recovered").
		Scan(&amounts)

	var byStatus []struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	scoped().Select("status, COUNT(*) as count").Group("status").Scan(&byStatus)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"total_cases":        totalCases,
		"pending_allocation": pendingAllocation,
		"disputed":           disputed,
		"escalated":          escalated,
		"sla_overdue":        overdue,
		"total_outstanding":  amounts.Outstanding,
		"total_recovered":    amounts.Recovered,
		"cases_by_status":    byStatus,
	})
}
