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

// ListRegionsHandler returns all active regions
func ListRegionsHandler(c echo.Context) error {
	var regions []models.Region
	if err := db.DB.Where("is_active = ?", true).Order("code ASC").Find(&regions).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"regions": regions})
}

// ListUserRegionAccessHandler returns the grants a user holds
func ListUserRegionAccessHandler(c echo.Context) error {
	userID := c.Param("id")

	var user models.User
	if err := db.DB.First(&user, "id = ?", userID).Error; err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeNotFound, "user not found"))
	}

	grants, err := services.GetUserAccessibleRegions(db.DB, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"grants": grants})
}

type grantAccessRequest struct {
	RegionID    string `json:"region_id"`
	AccessLevel string `json:"access_level"`
	Reason      string `json:"reason"`
}

// GrantRegionAccessHandler grants or upgrades region access for a user
func GrantRegionAccessHandler(c echo.Context) error {
	cfg, _ := c.Get("config").(*config.Config)
	userID := c.Param("id")

	var req grantAccessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.RegionID) == "" {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, "region_id is required"))
	}

	var target models.User
	if err := db.DB.First(&target, "id = ?", userID).Error; err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeNotFound, "user not found"))
	}

	// Global roles carry implicit ADMIN everywhere; a grant would be a
	// confusing no-op.
	if models.IsGlobalRole(target.Role) {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation,
			"global roles do not take region grants"))
	}

	grant, err := services.GrantRegionAccess(db.DB, cfg, middleware.GetAuditContext(c),
		userID, req.RegionID, req.AccessLevel, req.Reason)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{"grant": grant})
}

type revokeAccessRequest struct {
	RegionID string `json:"region_id"`
	Reason   string `json:"reason"`
}

// RevokeRegionAccessHandler revokes an active grant
func RevokeRegionAccessHandler(c echo.Context) error {
	cfg, _ := c.Get("config").(*config.Config)
	userID := c.Param("id")

	var req revokeAccessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.RegionID) == "" {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, "region_id is required"))
	}

	err := services.RevokeRegionAccess(db.DB, cfg, middleware.GetAuditContext(c),
		userID, req.RegionID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "revoked"})
}
