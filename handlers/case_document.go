package handlers

import (
	"fmt"
	"net/http"

	"dca_flow_app_go/config"
	"dca_flow_app_go/db"
	"dca_flow_app_go/middleware"
	"dca_flow_app_go/models"
	"dca_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

const maxDocumentSize = 25 << 20 // 25 MB

// caseForDocumentAccess loads the case and enforces visibility
func caseForDocumentAccess(c echo.Context, caseID string) (*models.Case, error) {
	user := middleware.GetCurrentUser(c)

	access, err := services.CanAccessCase(db.DB, user.ID, caseID)
	if err != nil {
		return nil, err
	}
	if !access.Allowed {
		return nil, services.NewDomainError(services.ErrCodeForbidden, access.Reason)
	}

	var caseRecord models.Case
	if err := db.DB.First(&caseRecord, "id = ?", caseID).Error; err != nil {
		return nil, services.NewDomainError(services.ErrCodeNotFound, "case not found")
	}
	return &caseRecord, nil
}

// UploadCaseDocumentHandler attaches a file to a case
func UploadCaseDocumentHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	cfg, _ := c.Get("config").(*config.Config)
	caseID := c.Param("id")

	caseRecord, err := caseForDocumentAccess(c, caseID)
	if err != nil {
		return respondError(c, err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, "file is required"))
	}
	if fileHeader.Size > maxDocumentSize {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, "file exceeds the 25MB limit"))
	}

	regionID := ""
	if caseRecord.RegionID != nil {
		regionID = *caseRecord.RegionID
	}
	key := services.GenerateCaseDocumentKey(regionID, caseID, fileHeader.Filename)

	result, err := services.Storage.Upload(c.Request().Context(), fileHeader, key)
	if err != nil {
		return respondError(c, fmt.Errorf("failed to store document: %w", err))
	}

	doc := models.CaseDocument{
		CaseID:           caseID,
		FileName:         result.FileName,
		FileOriginalName: fileHeader.Filename,
		FileSize:         result.FileSize,
		MimeType:         result.MimeType,
		StorageKey:       result.Key,
		UploadedBy:       user.ID,
	}
	if err := db.DB.Create(&doc).Error; err != nil {
		services.Storage.Delete(c.Request().Context(), result.Key)
		return respondError(c, err)
	}

	services.LogHumanAction(db.DB, cfg, middleware.GetAuditContext(c),
		models.AuditActionCreate, "Case", caseID, caseRecord.CaseNumber,
		map[string]interface{}{"document": fileHeader.Filename})

	return c.JSON(http.StatusCreated, map[string]interface{}{"document": doc})
}

// DownloadCaseDocumentHandler streams a document back to the caller
func DownloadCaseDocumentHandler(c echo.Context) error {
	caseID := c.Param("id")
	docID := c.Param("docId")

	if _, err := caseForDocumentAccess(c, caseID); err != nil {
		return respondError(c, err)
	}

	var doc models.CaseDocument
	if err := db.DB.First(&doc, "id = ? AND case_id = ?", docID, caseID).Error; err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeNotFound, "document not found"))
	}

	reader, contentType, err := services.Storage.Get(c.Request().Context(), doc.StorageKey)
	if err != nil {
		return respondError(c, err)
	}
	defer reader.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, doc.FileOriginalName))
	return c.Stream(http.StatusOK, contentType, reader)
}

// DeleteCaseDocumentHandler removes a document and its stored file
func DeleteCaseDocumentHandler(c echo.Context) error {
	cfg, _ := c.Get("config").(*config.Config)
	caseID := c.Param("id")
	docID := c.Param("docId")

	caseRecord, err := caseForDocumentAccess(c, caseID)
	if err != nil {
		return respondError(c, err)
	}

	var doc models.CaseDocument
	if err := db.DB.First(&doc, "id = ? AND case_id = ?", docID, caseID).Error; err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeNotFound, "document not found"))
	}

	if err := db.DB.Delete(&doc).Error; err != nil {
		return respondError(c, err)
	}
	if err := services.Storage.Delete(c.Request().Context(), doc.StorageKey); err != nil {
		c.Logger().Warnf("failed to delete stored file %s: %v", doc.StorageKey, err)
	}

	services.LogHumanAction(db.DB, cfg, middleware.GetAuditContext(c),
		models.AuditActionDelete, "Case", caseID, caseRecord.CaseNumber,
		map[string]interface{}{"document": doc.FileOriginalName})

	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}
