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

// ListUsersHandler returns all users with their region grants
func ListUsersHandler(c echo.Context) error {
	var users []models.User
	err := db.DB.Preload("DCA").
		Preload("RegionGrants", "revoked_at IS NULL").
		Preload("RegionGrants.Region").
		Order("email ASC").
		Find(&users).Error
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"users": users})
}

type createUserRequest struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	Role            string  `json:"role"`
	DCAID           *string `json:"dca_id"`
	PrimaryRegionID *string `json:"primary_region_id"`
}

// CreateUserHandler registers a user. DCA-side roles must name their
// agency at creation.
func CreateUserHandler(c echo.Context) error {
	cfg, _ := c.Get("config").(*config.Config)

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" || req.Password == "" {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation,
			"name, email and password are required"))
	}
	if !models.IsValidRole(req.Role) {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, "invalid role"))
	}
	if models.IsDCARole(req.Role) && (req.DCAID == nil || *req.DCAID == "") {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation,
			"DCA-side roles require a dca_id"))
	}
	if len(req.Password) < 8 {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation,
			"password must be at least 8 characters"))
	}

	var existing models.User
	if err := db.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation,
			"a user with this email already exists"))
	}

	hash, err := services.HashPassword(req.Password)
	if err != nil {
		return respondError(c, err)
	}

	user := models.User{
		Name:            req.Name,
		Email:           req.Email,
		Password:        hash,
		Role:            req.Role,
		DCAID:           req.DCAID,
		PrimaryRegionID: req.PrimaryRegionID,
		IsActive:        true,
	}
	if err := db.DB.Create(&user).Error; err != nil {
		return respondError(c, err)
	}

	services.LogHumanAction(db.DB, cfg, middleware.GetAuditContext(c),
		models.AuditActionCreate, "User", user.ID, user.Email,
		map[string]interface{}{"role": user.Role})

	return c.JSON(http.StatusCreated, map[string]interface{}{"user": user})
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// UpdateUserHandler updates profile fields, role and active flag
func UpdateUserHandler(c echo.Context) error {
	cfg, _ := c.Get("config").(*config.Config)

	var user models.User
	if err := db.DB.First(&user, "id = ?", c.Param("id")).Error; err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeNotFound, "user not found"))
	}

	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		if !models.IsValidRole(*req.Role) {
			return respondError(c, services.NewDomainError(services.ErrCodeValidation, "invalid role"))
		}
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := db.DB.Model(&user).Updates(updates).Error; err != nil {
			return respondError(c, err)
		}

		// Deactivation kills live sessions immediately
		if req.IsActive != nil && !*req.IsActive {
			services.DeleteAllUserSessions(db.DB, user.ID)
		}

		services.LogHumanAction(db.DB, cfg, middleware.GetAuditContext(c),
			models.AuditActionUpdate, "User", user.ID, user.Email,
			map[string]interface{}{"changes": updates})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"user": user})
}
