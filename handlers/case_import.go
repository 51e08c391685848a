package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"dca_flow_app_go/config"
	"dca_flow_app_go/db"
	"dca_flow_app_go/middleware"
	"dca_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

const maxImportFileSize = 10 << 20 // 10 MB

// DownloadImportTemplateHandler streams the Excel import template
func DownloadImportTemplateHandler(c echo.Context) error {
	buf, err := services.GenerateExcelTemplate(db.DB)
	if err != nil {
		return respondError(c, err)
	}

	filename := fmt.Sprintf("case_import_template_%s.xlsx", time.Now().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}

// ImportCasesHandler ingests an uploaded Excel file of cases
func ImportCasesHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	cfg, _ := c.Get("config").(*config.Config)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, "file is required"))
	}
	if fileHeader.Size > maxImportFileSize {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, "file exceeds the 10MB limit"))
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, "only .xlsx files are accepted"))
	}

	src, err := fileHeader.Open()
	if err != nil {
		return respondError(c, err)
	}
	defer src.Close()

	result, err := services.BulkCreateFromExcel(db.DB, cfg, user, middleware.GetAuditContext(c), src)
	if err != nil && result == nil {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, err.Error()))
	}

	status := http.StatusOK
	if result.FailedCount > 0 && result.SuccessCount == 0 {
		status = http.StatusUnprocessableEntity
	}

	return c.JSON(status, map[string]interface{}{
		"total_processed": result.TotalProcessed,
		"success_count":   result.SuccessCount,
		"failed_count":    result.FailedCount,
		"errors":          result.Errors,
	})
}
