package handlers

import (
	"net/http"

	"dca_flow_app_go/config"
	"dca_flow_app_go/db"
	"dca_flow_app_go/middleware"
	"dca_flow_app_go/models"
	"dca_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

// AllocateCaseHandler runs the allocation engine for a pending case.
// The actual assignment write is attributed to the engine, not the
// requesting user; the user's trigger is recorded separately.
func AllocateCaseHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	cfg, _ := c.Get("config").(*config.Config)
	caseID := c.Param("id")

	var caseRecord models.Case
	if err := db.DB.First(&caseRecord, "id = ?", caseID).Error; err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeNotFound, "case not found"))
	}

	if !models.IsGlobalRole(user.Role) && caseRecord.HasRegion() {
		access, err := services.HasRegionAccess(db.DB, user.ID, *caseRecord.RegionID, models.AccessLevelWrite)
		if err != nil {
			return respondError(c, err)
		}
		if !access.Allowed {
			return respondError(c, services.NewDomainError(services.ErrCodeForbidden, access.Reason))
		}
	}

	result, err := services.ApplyAllocation(db.DB, cfg, caseID)
	if err != nil {
		if de, ok := services.AsDomainError(err); ok &&
			(de.Code == services.ErrCodeNoEligibleDCA || de.Code == services.ErrCodeNoCapacity) {
			notifyAllocationFailure(cfg, &caseRecord, de.Code)
		}
		return respondError(c, err)
	}

	services.LogHumanAction(db.DB, cfg, middleware.GetAuditContext(c),
		models.AuditActionUpdate, "Case", caseID, caseRecord.CaseNumber,
		map[string]interface{}{"triggered": "allocation", "selected_dca": result.DCA.ID})

	return c.JSON(http.StatusOK, map[string]interface{}{"allocation": result})
}

// PreviewAllocationHandler scores candidates without persisting anything.
// Previews expose DCA capacity and performance data, so they carry the
// same region WRITE requirement as the allocation itself.
func PreviewAllocationHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	caseID := c.Param("id")

	var caseRecord models.Case
	if err := db.DB.First(&caseRecord, "id = ?", caseID).Error; err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeNotFound, "case not found"))
	}
	if !caseRecord.HasRegion() {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, "case has no region, cannot allocate"))
	}

	if !models.IsGlobalRole(user.Role) {
		access, err := services.HasRegionAccess(db.DB, user.ID, *caseRecord.RegionID, models.AccessLevelWrite)
		if err != nil {
			return respondError(c, err)
		}
		if !access.Allowed {
			return respondError(c, services.NewDomainError(services.ErrCodeForbidden, access.Reason))
		}
	}

	result, err := services.AllocateDCA(db.DB, services.AllocationInput{
		CaseID:            caseRecord.ID,
		RegionID:          *caseRecord.RegionID,
		OutstandingAmount: caseRecord.OutstandingAmount,
		Priority:          caseRecord.Priority,
		RiskScore:         caseRecord.RiskScore,
		CustomerSegment:   caseRecord.CustomerSegment,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"allocation": result})
}

// notifyAllocationFailure fans out an in-app notification and an ops
// alert email when no DCA can take the case
func notifyAllocationFailure(cfg *config.Config, caseRecord *models.Case, code string) {
	notifier := services.NewNotificationService(db.DB)
	if err := notifier.NotifyAllocationFailure(caseRecord, code); err == nil && cfg != nil && cfg.OpsAlertEmail != "" {
		services.SendEmailAsync(cfg, services.BuildAllocationFailureEmail(cfg.OpsAlertEmail, caseRecord, code))
	}
}
