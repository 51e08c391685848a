package handlers

import (
	"fmt"
	"net/http"
	"time"

	"dca_flow_app_go/db"
	"dca_flow_app_go/middleware"
	"dca_flow_app_go/models"
	"dca_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

// ExportCaseSummaryHandler renders a case summary PDF and streams it
func ExportCaseSummaryHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	caseID := c.Param("id")

	access, err := services.CanAccessCase(db.DB, user.ID, caseID)
	if err != nil {
		return respondError(c, err)
	}
	if !access.Allowed {
		return respondError(c, services.NewDomainError(services.ErrCodeForbidden, access.Reason))
	}

	var caseRecord models.Case
	err = db.DB.Preload("Region").
		Preload("AssignedDCA").
		First(&caseRecord, "id = ?", caseID).Error
	if err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeNotFound, "case not found"))
	}

	timeline, err := services.GetCaseTimeline(db.DB, caseID)
	if err != nil {
		return respondError(c, err)
	}

	html := services.BuildCaseSummaryHTML(&caseRecord, timeline)
	pdf, err := services.GeneratePDF(html, services.DefaultPDFOptions())
	if err != nil {
		return respondError(c, err)
	}

	filename := fmt.Sprintf("%s_%s.pdf", caseRecord.CaseNumber, time.Now().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}
