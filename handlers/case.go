package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"dca_flow_app_go/config"
	"dca_flow_app_go/db"
	"dca_flow_app_go/middleware"
	"dca_flow_app_go/models"
	"dca_flow_app_go/services"

	"github.com/labstack/echo/v4"
)

const defaultPageSize = 25

// ListCasesHandler returns the cases visible to the current user.
// Region-scoped users only see cases in their granted regions; DCA
// users additionally only see cases assigned to their agency.
func ListCasesHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)

	query := db.DB.Model(&models.Case{}).
		Preload("Region").
		Preload("AssignedDCA")

	query = services.ApplyRegionFilter(db.DB, user, query, "region_id")

	if models.IsDCARole(user.Role) {
		if !user.HasDCA() {
			return c.JSON(http.StatusOK, paginatedCases(nil, 0, 1, defaultPageSize))
		}
		query = query.Where("assigned_dca_id = ?", *user.DCAID)
	}

	if status := c.QueryParam("status"); status != "" {
		if !models.IsValidCaseStatus(status) {
			return respondError(c, services.NewDomainError(services.ErrCodeValidation, "invalid status filter"))
		}
		query = query.Where("status = ?", status)
	}
	if priority := c.QueryParam("priority"); priority != "" {
		if !models.IsValidCasePriority(priority) {
			return respondError(c, services.NewDomainError(services.ErrCodeValidation, "invalid priority filter"))
		}
		query = query.Where("priority = ?", priority)
	}
	if regionID := c.QueryParam("region_id"); regionID != "" {
		query = query.Where("region_id = ?", regionID)
	}
	if search := strings.TrimSpace(c.QueryParam("q")); search != "" {
		like := "%" + search + "%"
		query = query.Where("case_number LIKE ? OR debtor_name LIKE ?", like, like)
	}
	if c.QueryParam("disputed") == "true" {
		query = query.Where("is_disputed = ?", true)
	}
	if c.QueryParam("overdue") == "true" {
		query = query.Where("sla_due_at < ? AND status NOT IN ?", time.Now(), terminalStatuses())
	}

	page, pageSize := paginationParams(c)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return respondError(c, err)
	}

	var cases []models.Case
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&cases).Error; err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, paginatedCases(cases, total, page, pageSize))
}

// GetCaseHandler returns one case with its timeline and documents
func GetCaseHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	caseID := c.Param("id")

	access, err := services.CanAccessCase(db.DB, user.ID, caseID)
	if err != nil {
		return respondError(c, err)
	}
	if !access.Allowed {
		cfg, _ := c.Get("config").(*config.Config)
		services.LogSecurityEvent(db.DB, cfg, middleware.GetAuditContext(c),
			"CASE_ACCESS_DENIED", "Case", caseID,
			map[string]interface{}{"reason": access.Reason})
		return respondError(c, services.NewDomainError(services.ErrCodeForbidden, access.Reason))
	}

	var caseRecord models.Case
	err = db.DB.Preload("Region").
		Preload("AssignedDCA").
		Preload("AssignedAgent").
		Preload("Documents").
		First(&caseRecord, "id = ?", caseID).Error
	if err != nil {
		return respondError(c, services.NewDomainError(services.ErrCodeNotFound, "case not found"))
	}

	timeline, err := services.GetCaseTimeline(db.DB, caseID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"case":          caseRecord,
		"timeline":      timeline,
		"next_statuses": services.GetNextStatuses(caseRecord.Status),
		"region_policy": access.Policy,
	})
}

type createCaseRequest struct {
	DebtorName        string     `json:"debtor_name"`
	OriginalAmount    float64    `json:"original_amount"`
	OutstandingAmount float64    `json:"outstanding_amount"`
	Currency          string     `json:"currency"`
	RegionID          string     `json:"region_id"`
	RegionCode        string     `json:"region_code"`
	Priority          string     `json:"priority"`
	RiskScore         *float64   `json:"risk_score"`
	CustomerSegment   *string    `json:"customer_segment"`
	SLADueAt          *time.Time `json:"sla_due_at"`
	Notes             *string    `json:"notes"`
}

// CreateCaseHandler creates a case in PENDING_ALLOCATION
func CreateCaseHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	cfg, _ := c.Get("config").(*config.Config)

	var req createCaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	// Creating users need write access to the target region, checked
	// before anything is persisted
	if !models.IsGlobalRole(user.Role) {
		region, err := services.ValidateRegionForInsert(db.DB, map[string]interface{}{
			"region_id":   req.RegionID,
			"region_code": req.RegionCode,
		})
		if err != nil {
			return respondError(c, err)
		}
		access, err := services.HasRegionAccess(db.DB, user.ID, region.ID, models.AccessLevelWrite)
		if err != nil {
			return respondError(c, err)
		}
		if !access.Allowed {
			services.LogSecurityEvent(db.DB, cfg, middleware.GetAuditContext(c),
				"REGION_WRITE_DENIED", "Region", region.ID,
				map[string]interface{}{"region_code": region.Code, "reason": access.Reason})
			return respondError(c, services.NewDomainError(services.ErrCodeForbidden, access.Reason))
		}
	}

	newCase, err := services.CreateCase(db.DB, services.CreateCaseInput{
		DebtorName:        req.DebtorName,
		OriginalAmount:    req.OriginalAmount,
		OutstandingAmount: req.OutstandingAmount,
		Currency:          req.Currency,
		RegionID:          req.RegionID,
		RegionCode:        req.RegionCode,
		Priority:          req.Priority,
		RiskScore:         req.RiskScore,
		CustomerSegment:   req.CustomerSegment,
		SLADueAt:          req.SLADueAt,
		Notes:             req.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}

	services.LogHumanAction(db.DB, cfg, middleware.GetAuditContext(c),
		models.AuditActionCreate, "Case", newCase.ID, newCase.CaseNumber,
		map[string]interface{}{"region_id": newCase.RegionID})

	return c.JSON(http.StatusCreated, map[string]interface{}{"case": newCase})
}

type updateCaseRequest struct {
	ExpectedUpdatedAt time.Time              `json:"expected_updated_at"`
	Fields            map[string]interface{} `json:"fields"`
}

// UpdateCaseHandler applies a field update through the validation
// pipeline. The caller passes the updated_at it last read; a stale
// value comes back as CONCURRENCY_CONFLICT.
func UpdateCaseHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	cfg, _ := c.Get("config").(*config.Config)
	caseID := c.Param("id")

	var req updateCaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if len(req.Fields) == 0 {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, "no fields to update"))
	}
	if req.ExpectedUpdatedAt.IsZero() {
		return respondError(c, services.NewDomainError(services.ErrCodeValidation, "expected_updated_at is required"))
	}

	updated, err := services.UpdateCase(db.DB, cfg, user, middleware.GetAuditContext(c),
		caseID, req.Fields, req.ExpectedUpdatedAt)
	if err != nil {
		return respondError(c, err)
	}

	if requested, ok := req.Fields["status"].(string); ok && requested == models.CaseStatusEscalated {
		reason := ""
		if r, ok := req.Fields["escalation_reason"].(string); ok {
			reason = r
		}
		notifier := services.NewNotificationService(db.DB)
		if err := notifier.NotifyEscalation(updated, reason); err == nil && cfg != nil && cfg.OpsAlertEmail != "" {
			services.SendEmailAsync(cfg, services.BuildEscalationEmail(cfg.OpsAlertEmail, updated, reason))
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"case": updated})
}

func paginationParams(c echo.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.QueryParam("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func paginatedCases(cases []models.Case, total int64, page, pageSize int) map[string]interface{} {
	if cases == nil {
		cases = []models.Case{}
	}
	return map[string]interface{}{
		"cases":     cases,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	}
}

func terminalStatuses() []string {
	return []string{
		models.CaseStatusFullRecovery,
		models.CaseStatusWrittenOff,
		models.CaseStatusClosed,
	}
}
