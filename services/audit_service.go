package services

import (
	"encoding/json"
	"log"
	"time"

	"dca_flow_app_go/config"
	"dca_flow_app_go/models"

	"gorm.io/gorm"
)

// Registry of automated services allowed to appear as SYSTEM actors.
// Every system-attributed audit entry must name one of these.
const (
	ServiceAllocationEngine = "allocation-engine"
	ServiceCaseImport       = "case-import"
	ServiceCaseIngestion    = "case-ingestion"
	ServiceSLAMonitor       = "sla-monitor"
)

var knownServices = map[string]bool{
	ServiceAllocationEngine: true,
	ServiceCaseImport:       true,
	ServiceCaseIngestion:    true,
	ServiceSLAMonitor:       true,
}

// IsKnownService checks a service name against the registry
func IsKnownService(name string) bool {
	return knownServices[name]
}

// AuditContext contains contextual information for human-attributed
// audit logging
type AuditContext struct {
	UserID    string
	UserEmail string
	UserRole  string
	IPAddress string
	UserAgent string
}

// DeriveAuditRegion resolves the region an audit entry belongs to by
// looking up the affected resource. It never reads the region from a
// request payload: case -> its region, DCA -> its primary region
// assignment, user -> primary region, region -> itself. When derivation
// fails the configured default region is used and the entry is flagged,
// so fallback usage stays visible.
func DeriveAuditRegion(db *gorm.DB, cfg *config.Config, resourceType, resourceID string) (*string, bool) {
	switch resourceType {
	case "Case":
		var c models.Case
		if err := db.Select("region_id").First(&c, "id = ?", resourceID).Error; err == nil && c.RegionID != nil {
			return c.RegionID, false
		}
	case "DCA":
		var a models.RegionDCAAssignment
		if err := db.Where("dca_id = ?", resourceID).
			Order("is_primary DESC, allocation_priority ASC").
			First(&a).Error; err == nil {
			regionID := a.RegionID
			return &regionID, false
		}
	case "User":
		var u models.User
		if err := db.Select("primary_region_id").First(&u, "id = ?", resourceID).Error; err == nil && u.PrimaryRegionID != nil {
			return u.PrimaryRegionID, false
		}
	case "Region":
		var r models.Region
		if err := db.Select("id").First(&r, "id = ?", resourceID).Error; err == nil {
			id := r.ID
			return &id, false
		}
	}

	// Fall back to the configured default region rather than leaving the
	// field empty. The entry is flagged so operators can spot it.
	var fallback models.Region
	if err := db.First(&fallback, "code = ?", cfg.DefaultRegionCode).Error; err == nil {
		id := fallback.ID
		return &id, true
	}
	return nil, true
}

func marshalDetails(details interface{}) string {
	if details == nil {
		return ""
	}
	bytes, err := json.Marshal(details)
	if err != nil {
		log.Printf("[AUDIT] Failed to marshal details: %v", err)
		return ""
	}
	return string(bytes)
}

// writeAuditLog persists an entry. Failures are logged and tracked but
// never propagated: a lost audit record must not roll back or block the
// originating business operation.
func writeAuditLog(db *gorm.DB, entry *models.AuditLog) {
	if err := db.Create(entry).Error; err != nil {
		log.Printf("[AUDIT] Failed to create audit log (%s %s/%s): %v", entry.Action, entry.ResourceType, entry.ResourceID, err)
		if Monitor != nil {
			Monitor.TrackAuditFailure(string(entry.Action), entry.ResourceType, entry.ResourceID)
		}
	}
}

// LogSystemAction records an action performed by a named automated
// service. The write happens asynchronously so it cannot block the
// request.
func LogSystemAction(
	db *gorm.DB,
	cfg *config.Config,
	serviceName string,
	action models.AuditAction,
	resourceType string,
	resourceID string,
	resourceName string,
	details interface{},
) {
	if !IsKnownService(serviceName) {
		log.Printf("[AUDIT] Unknown service name %q, refusing to attribute system action", serviceName)
		return
	}

	detailsJSON := marshalDetails(details)

	go func() {
		regionID, usedFallback := DeriveAuditRegion(db, cfg, resourceType, resourceID)
		svc := serviceName
		writeAuditLog(db, &models.AuditLog{
			ActorType:      models.ActorTypeSystem,
			ServiceName:    &svc,
			RegionID:       regionID,
			RegionFallback: usedFallback,
			ResourceType:   resourceType,
			ResourceID:     resourceID,
			ResourceName:   resourceName,
			Action:         action,
			Severity:       models.AuditSeverityInfo,
			Details:        detailsJSON,
		})
	}()
}

// LogHumanAction records an action performed by an authenticated user,
// including request metadata for forensics. Asynchronous like system
// actions.
func LogHumanAction(
	db *gorm.DB,
	cfg *config.Config,
	ctx AuditContext,
	action models.AuditAction,
	resourceType string,
	resourceID string,
	resourceName string,
	details interface{},
) {
	detailsJSON := marshalDetails(details)

	go func() {
		regionID, usedFallback := DeriveAuditRegion(db, cfg, resourceType, resourceID)
		writeAuditLog(db, &models.AuditLog{
			ActorType:      models.ActorTypeHuman,
			UserID:         ptrIfNotEmpty(ctx.UserID),
			UserEmail:      ctx.UserEmail,
			UserRole:       ctx.UserRole,
			RegionID:       regionID,
			RegionFallback: usedFallback,
			ResourceType:   resourceType,
			ResourceID:     resourceID,
			ResourceName:   resourceName,
			Action:         action,
			Severity:       models.AuditSeverityInfo,
			Details:        detailsJSON,
		})
	}()
}

// LogSecurityEvent records a security-relevant violation (blocked
// system-field write, permission denial, cross-region attempt) at
// CRITICAL severity. The event also goes to stdout for immediate
// visibility in log aggregation.
func LogSecurityEvent(
	db *gorm.DB,
	cfg *config.Config,
	ctx AuditContext,
	eventType string,
	resourceType string,
	resourceID string,
	details interface{},
) {
	log.Printf("[SECURITY] %s | User: %s | Resource: %s/%s", eventType, ctx.UserID, resourceType, resourceID)

	detailsJSON := marshalDetails(details)

	go func() {
		regionID, usedFallback := DeriveAuditRegion(db, cfg, resourceType, resourceID)
		writeAuditLog(db, &models.AuditLog{
			ActorType:      models.ActorTypeHuman,
			UserID:         ptrIfNotEmpty(ctx.UserID),
			UserEmail:      ctx.UserEmail,
			UserRole:       ctx.UserRole,
			RegionID:       regionID,
			RegionFallback: usedFallback,
			ResourceType:   resourceType,
			ResourceID:     resourceID,
			ResourceName:   eventType,
			Action:         models.AuditActionSecurity,
			Severity:       models.AuditSeverityCritical,
			Details:        detailsJSON,
			IPAddress:      ctx.IPAddress,
			UserAgent:      ctx.UserAgent,
		})
	}()
}

// ptrIfNotEmpty returns a pointer to the string if not empty, nil otherwise
func ptrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetResourceAuditHistory retrieves the audit history for a specific resource
func GetResourceAuditHistory(db *gorm.DB, resourceType, resourceID string) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := db.Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

// AuditLogFilters contains filter options for audit log queries
type AuditLogFilters struct {
	UserID       string
	ActorType    string
	ResourceType string
	Action       string
	Severity     string
	DateFrom     time.Time
	DateTo       time.Time
}

// GetRegionAuditLogs retrieves paginated audit logs for a set of regions
func GetRegionAuditLogs(
	db *gorm.DB,
	regionIDs []string,
	filters AuditLogFilters,
	page, pageSize int,
) ([]models.AuditLog, int64, error) {
	query := db.Model(&models.AuditLog{})
	if len(regionIDs) > 0 {
		query = query.Where("region_id IN ?", regionIDs)
	}

	// Apply filters
	if filters.UserID != "" {
		query = query.Where("user_id = ?", filters.UserID)
	}
	if filters.ActorType != "" {
		query = query.Where("actor_type = ?", filters.ActorType)
	}
	if filters.ResourceType != "" {
		query = query.Where("resource_type = ?", filters.ResourceType)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.Severity != "" {
		query = query.Where("severity = ?", filters.Severity)
	}
	if !filters.DateFrom.IsZero() {
		query = query.Where("created_at >= ?", filters.DateFrom)
	}
	if !filters.DateTo.IsZero() {
		query = query.Where("created_at <= ?", filters.DateTo)
	}

	// Count total
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Get paginated results
	var logs []models.AuditLog
	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&logs).Error

	return logs, total, err
}
