package handlers

import (
	"net/http"
	"strings"

	"dca_flow_app_go/config"
	"dca_flow_app_go/db"
	"dca_flow_app_go/middleware"
	"dca_flow_app_go/models"
	"dca_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

// ListDCAsHandler returns all agencies with their region assignments
func ListDCAsHandler(c echo.Context) error {
	var dcas []models.DCA
	err := db.DB.Preload("RegionAssignments").
		Preload("RegionAssignments.Region").
		Order("name ASC").
		Find(&dcas).Error
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"dcas": dcas})
}

// GetDCAHandler returns one agency
func GetDCAHandler(c echo.Context) error {
	var dca models.DCA
	err := db.DB.Preload("RegionAssignments").
		Preload("RegionAssignments.Region").
		First(&dca, "id = ?", c.Param("id")).Error
	if err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeNotFound, "DCA not found"))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"dca": dca})
}

type dcaRequest struct {
	Name              string   `json:"name"`
	Code              string   `json:"code"`
	Status            string   `json:"status"`
	ContactEmail      string   `json:"contact_email"`
	PerformanceScore  *float64 `json:"performance_score"`
	RecoveryRate      *float64 `json:"recovery_rate"`
	SLAComplianceRate *float64 `json:"sla_compliance_rate"`
	CapacityLimit     *int     `json:"capacity_limit"`
}

// CreateDCAHandler registers a new agency
func CreateDCAHandler(c echo.Context) error {
	cfg, _ := c.Get("config").(*config.Config)

	var req dcaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if req.Name == "" || req.Code == "" {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, "name and code are required"))
	}
	if req.Status == "" {
		req.Status = models.DCAStatusActive
	}
	if !models.IsValidDCAStatus(req.Status) {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, "invalid DCA status"))
	}

	dca := models.DCA{
		Name:         req.Name,
		Code:         req.Code,
		Status:       req.Status,
		ContactEmail: req.ContactEmail,
	}
	if req.PerformanceScore != nil {
		dca.PerformanceScore = *req.PerformanceScore
	}
	if req.RecoveryRate != nil {
		dca.RecoveryRate = *req.RecoveryRate
	}
	if req.SLAComplianceRate != nil {
		dca.SLAComplianceRate = *req.SLAComplianceRate
	}
	if req.CapacityLimit != nil {
		dca.CapacityLimit = *req.CapacityLimit
	}

	if err := db.DB.Create(&dca).Error; err != nil {
		return respondError(c, err)
	}

	services.LogHumanAction(db.DB, cfg, middleware.GetAuditContext(c),
		models.AuditActionCreate, "DCA", dca.ID, dca.Name, nil)

	return c.JSON(http.StatusCreated, map[string]interface{}{"dca": dca})
}

// UpdateDCAHandler updates agency settings and metrics
func UpdateDCAHandler(c echo.Context) error {
	cfg, _ := c.Get("config").(*config.Config)

	var dca models.DCA
	if err := db.DB.First(&dca, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeNotFound, "DCA not found"))
	}

	var req dcaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	updates := map[string]interface{}{}
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if req.Status != "" {
		if !models.IsValidDCAStatus(req.Status) {
			return respondError(c, services.NewDomainError(services.ErrCodeValidation, "invalid DCA status"))
		}
		updates["status"] = req.Status
	}
	if req.ContactEmail != "" {
		updates["contact_email"] = req.ContactEmail
	}
	if req.PerformanceScore != nil {
		updates["performance_score"] = *req.PerformanceScore
	}
	if req.RecoveryRate != nil {
		updates["recovery_rate"] = *req.RecoveryRate
	}
	if req.SLAComplianceRate != nil {
		updates["sla_compliance_rate"] = *req.SLAComplianceRate
	}
	if req.CapacityLimit != nil {
		updates["capacity_limit"] = *req.CapacityLimit
	}

	if len(updates) > 0 {
		if err := db.DB.Model(&dca).Updates(updates).Error; err != nil {
			return respondError(c, err)
		}
		services.LogHumanAction(db.DB, cfg, middleware.GetAuditContext(c),
			models.AuditActionUpdate, "DCA", dca.ID, dca.Name,
			map[string]interface{}{"changes": updates})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"dca": dca})
}

type assignmentRequest struct {
	RegionID              string   `json:"region_id"`
	IsPrimary             *bool    `json:"is_primary"`
	AllocationPriority    *int     `json:"allocation_priority"`
	CapacityAllocationPct *float64 `json:"capacity_allocation_pct"`
	IsActive              *bool    `json:"is_active"`
	IsSuspended           *bool    `json:"is_suspended"`
}

// UpsertDCAAssignmentHandler creates or updates a region assignment for
// an agency
func UpsertDCAAssignmentHandler(c echo.Context) error {
	cfg, _ := c.Get("config").(*config.Config)
	dcaID := c.Param("id")

	var dca models.DCA
	if err := db.DB.First(&dca, "id = ?", dcaID).Error; err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeNotFound, "DCA not found"))
	}

	var req assignmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.RegionID == "" {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, "region_id is required"))
	}

	var region models.Region
	if err := db.DB.First(&region, "id = ? AND is_active = ?", req.RegionID, true).Error; err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeNotFound, "region not found or inactive"))
	}

	var assignment models.RegionDCAAssignment
	err := db.DB.Where("region_id = ? AND dca_id = ?", req.RegionID, dcaID).First(&assignment).Error
	isNew := err != nil
	if isNew {
		assignment = models.RegionDCAAssignment{
			RegionID:              req.RegionID,
			DCAID:                 dcaID,
			AllocationPriority:    5,
			CapacityAllocationPct: 100,
			IsActive:              true,
		}
	}

	if req.IsPrimary != nil {
		assignment.IsPrimary = *req.IsPrimary
	}
	if req.AllocationPriority != nil {
		assignment.AllocationPriority = *req.AllocationPriority
	}
	if req.CapacityAllocationPct != nil {
		if *req.CapacityAllocationPct <= 0 || *req.CapacityAllocationPct > 100 {
			return respondError(c, services.NewDomainError(services.ErrCodeValidation,
				"capacity_allocation_pct must be between 0 and 100"))
		}
		assignment.CapacityAllocationPct = *req.CapacityAllocationPct
	}
	if req.IsActive != nil {
		assignment.IsActive = *req.IsActive
	}
	if req.IsSuspended != nil {
		assignment.IsSuspended = *req.IsSuspended
	}

	if err := db.DB.Save(&assignment).Error; err != nil {
		return respondError(c, err)
	}

	action := models.AuditActionUpdate
	status := http.StatusOK
	if isNew {
		action = models.AuditActionCreate
		status = http.StatusCreated
	}
	services.LogHumanAction(db.DB, cfg, middleware.GetAuditContext(c),
		action, "DCA", dcaID, dca.Name,
		map[string]interface{}{"assignment_region": region.Code})

	return c.JSON(status, map[string]interface{}{"assignment": assignment})
}
