package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"dca_flow_app_go/config"
	"dca_flow_app_go/models"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

// textPolicy strips all markup from free-text fields crossing the API
// boundary (notes, dispute and escalation reasons)
var textPolicy = bluemonday.StrictPolicy()

// SanitizeText cleans a free-text input field
func SanitizeText(s string) string {
	return strings.TrimSpace(textPolicy.Sanitize(s))
}

// GenerateCaseNumber generates a unique case number for a region
// Format: {REGION_CODE}-{YEAR}-{SEQUENCE}
// Example: APAC-2026-00042
func GenerateCaseNumber(db *gorm.DB, regionID string) (string, error) {
	// Fetch region to get code
	var region models.Region
	if err := db.First(&region, "id = ?", regionID).Error; err != nil {
		return "", fmt.Errorf("failed to fetch region: %w", err)
	}

	// Get current year
	currentYear := time.Now().Year()

	// Find the highest sequence number for this region and year
	var maxCase models.Case
	err := db.Where("region_id = ? AND case_number LIKE ?", regionID, fmt.Sprintf("%s-%d-%%", region.Code, currentYear)).
		Order("case_number DESC").
		First(&maxCase).Error

	sequence := 1
	if err == nil {
		// Parse sequence from existing case number
		var parsedSeq int
		_, scanErr := fmt.Sscanf(maxCase.CaseNumber, fmt.Sprintf("%s-%d-%%d", region.Code, currentYear), &parsedSeq)
		if scanErr == nil {
			sequence = parsedSeq + 1
		}
	} else if err != gorm.ErrRecordNotFound {
		return "", fmt.Errorf("failed to query max case number: %w", err)
	}

	// Format case number with zero-padded sequence
	caseNumber := fmt.Sprintf("%s-%d-%05d", region.Code, currentYear, sequence)
	return caseNumber, nil
}

// EnsureUniqueCaseNumber generates a unique case number with retry logic
// Retries up to maxRetries times if a collision occurs
func EnsureUniqueCaseNumber(db *gorm.DB, regionID string) (string, error) {
	const maxRetries = 10

	for i := 0; i < maxRetries; i++ {
		caseNumber, err := GenerateCaseNumber(db, regionID)
		if err != nil {
			return "", err
		}

		// Check if case number already exists
		var count int64
		if err := db.Model(&models.Case{}).Where("case_number = ?", caseNumber).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check case number uniqueness: %w", err)
		}

		if count == 0 {
			return caseNumber, nil
		}

		// Collision detected, retry
	}

	return "", fmt.Errorf("failed to generate unique case number after %d retries", maxRetries)
}

// CreateCaseInput collects the fields accepted at case creation. The
// region is mandatory; assignment fields are absent here on purpose.
type CreateCaseInput struct {
	CaseNumber        string // Optional, generated when empty
	DebtorName        string
	OriginalAmount    float64
	OutstandingAmount float64
	Currency          string
	RegionID          string
	RegionCode        string
	Priority          string
	RiskScore         *float64
	CustomerSegment   *string
	SLADueAt          *time.Time
	Notes             *string
}

// CreateCase validates and persists a new case in PENDING_ALLOCATION.
// Callers attribute the creation themselves (human entry vs. ingestion
// service).
func CreateCase(db *gorm.DB, input CreateCaseInput) (*models.Case, error) {
	region, err := ValidateRegionForInsert(db, map[string]interface{}{
		"region_id":   input.RegionID,
		"region_code": input.RegionCode,
	})
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.DebtorName) == "" {
		return nil, NewDomainError(ErrCodeValidation, "debtor_name is required")
	}
	if input.OriginalAmount <= 0 {
		return nil, NewDomainError(ErrCodeValidation, "original_amount must be greater than zero")
	}
	if input.OutstandingAmount <= 0 {
		input.OutstandingAmount = input.OriginalAmount
	}
	if input.OutstandingAmount > input.OriginalAmount {
		return nil, NewDomainError(ErrCodeValidation, "outstanding_amount cannot exceed original_amount")
	}

	priority := input.Priority
	if priority == "" {
		priority = models.CasePriorityMedium
	}
	if !models.IsValidCasePriority(priority) {
		return nil, NewDomainError(ErrCodeValidation, fmt.Sprintf("invalid priority %q", priority))
	}

	caseNumber := input.CaseNumber
	if caseNumber == "" {
		caseNumber, err = EnsureUniqueCaseNumber(db, region.ID)
		if err != nil {
			return nil, err
		}
	}

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	regionID := region.ID
	caseRecord := models.Case{
		CaseNumber:        caseNumber,
		DebtorName:        SanitizeText(input.DebtorName),
		OriginalAmount:    input.OriginalAmount,
		OutstandingAmount: input.OutstandingAmount,
		Currency:          currency,
		Priority:          priority,
		Status:            models.CaseStatusPendingAllocation,
		RegionID:          &regionID,
		RiskScore:         input.RiskScore,
		CustomerSegment:   input.CustomerSegment,
		SLADueAt:          input.SLADueAt,
		Notes:             input.Notes,
	}

	if err := db.Create(&caseRecord).Error; err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}
	return &caseRecord, nil
}

// systemFieldsInPayload returns the system-only keys present in a payload
func systemFieldsInPayload(payload map[string]interface{}) []string {
	var blocked []string
	for _, f := range SystemOnlyCaseFields {
		if _, ok := payload[f]; ok {
			blocked = append(blocked, f)
		}
	}
	return blocked
}

// UpdateCase is the single human-facing mutation path for cases. It
// enforces, in order: case access, the system-only-field ban, region
// immutability, the per-role field table, the status state machine, and
// finally an optimistic-lock conditional write. Every rejection comes
// back as a DomainError; authorization violations additionally produce
// a CRITICAL audit entry.
func UpdateCase(
	db *gorm.DB,
	cfg *config.Config,
	user *models.User,
	auditCtx AuditContext,
	caseID string,
	payload map[string]interface{},
	expectedUpdatedAt time.Time,
) (*models.Case, error) {
	var caseRecord models.Case
	if err := db.First(&caseRecord, "id = ?", caseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewDomainError(ErrCodeNotFound, "case not found")
		}
		return nil, fmt.Errorf("failed to fetch case: %w", err)
	}

	// Access check first: users who cannot see the case learn nothing
	// about its fields.
	access, err := CanAccessCase(db, user.ID, caseID)
	if err != nil {
		return nil, err
	}
	if !access.Allowed {
		LogSecurityEvent(db, cfg, auditCtx, "CASE_ACCESS_DENIED", "Case", caseID,
			map[string]interface{}{"reason": access.Reason})
		return nil, NewDomainError(ErrCodeForbidden, access.Reason)
	}

	// The unassigned-region policy grants visibility for triage only.
	if access.Policy == RegionPolicyUnassigned {
		LogSecurityEvent(db, cfg, auditCtx, "REGION_WRITE_DENIED", "Case", caseID,
			map[string]interface{}{"reason": "unassigned-region case is read-only", "policy": access.Policy})
		return nil, NewDomainError(ErrCodeForbidden,
			"cases without a region are read-only until a region is assigned")
	}

	// System-only assignment fields are rejected before anything else,
	// including status validation.
	if blocked := systemFieldsInPayload(payload); len(blocked) > 0 {
		LogSecurityEvent(db, cfg, auditCtx, "SYSTEM_FIELD_WRITE_BLOCKED", "Case", caseID,
			map[string]interface{}{"blocked_fields": blocked})
		return nil, NewDomainErrorWithDetails(
			ErrCodeSystemOnlyField,
			"assignment fields can only be set by the allocation engine",
			map[string]interface{}{"blocked_fields": blocked},
		)
	}

	// Region is immutable after creation.
	if err := RejectIfRegionMutation(payload); err != nil {
		LogSecurityEvent(db, cfg, auditCtx, "REGION_MUTATION_BLOCKED", "Case", caseID,
			map[string]interface{}{"payload_keys": payloadKeys(payload)})
		return nil, err
	}

	// Mutations need write-level access. DCA roles earn WRITE through
	// their agency assignment; FedEx regional roles need a WRITE grant.
	if !models.IsGlobalRole(user.Role) && !models.IsDCARole(user.Role) && caseRecord.HasRegion() {
		writeAccess, err := HasRegionAccess(db, user.ID, *caseRecord.RegionID, models.AccessLevelWrite)
		if err != nil {
			return nil, err
		}
		if !writeAccess.Allowed {
			LogSecurityEvent(db, cfg, auditCtx, "REGION_WRITE_DENIED", "Case", caseID,
				map[string]interface{}{"reason": writeAccess.Reason})
			return nil, NewDomainError(ErrCodeForbidden, writeAccess.Reason)
		}
	}

	// Every remaining key must be in the role's field table.
	var deniedFields []string
	for key := range payload {
		if !RoleMayEditField(user.Role, key) {
			deniedFields = append(deniedFields, key)
		}
	}
	if len(deniedFields) > 0 {
		LogSecurityEvent(db, cfg, auditCtx, "FIELD_WRITE_DENIED", "Case", caseID,
			map[string]interface{}{"denied_fields": deniedFields, "role": user.Role})
		return nil, NewDomainErrorWithDetails(
			ErrCodeForbidden,
			fmt.Sprintf("role %s may not edit these fields", user.Role),
			map[string]interface{}{"denied_fields": deniedFields},
		)
	}

	updates, transition, err := buildCaseUpdates(&caseRecord, payload, user)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return &caseRecord, nil
	}
	updates["updated_by"] = user.ID

	// Optimistic concurrency: the write is conditioned on the updated_at
	// the caller read. Zero rows affected on an existing case means a
	// concurrent writer got there first.
	result := db.Model(&models.Case{}).
		Where("id = ? AND updated_at = ?", caseID, expectedUpdatedAt).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update case: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		db.Model(&models.Case{}).Where("id = ?", caseID).Count(&count)
		if count == 0 {
			return nil, NewDomainError(ErrCodeNotFound, "case not found")
		}
		return nil, NewDomainError(ErrCodeConcurrencyConflict,
			"case was modified by another request, refetch and retry")
	}

	// Attribution and timeline
	action := models.AuditActionUpdate
	if transition != nil {
		action = models.AuditActionStatusChange
	}
	LogHumanAction(db, cfg, auditCtx, action, "Case", caseID, caseRecord.CaseNumber,
		map[string]interface{}{"changes": payloadKeys(payload)})

	if transition != nil {
		userID := user.ID
		AppendTimelineEntry(db, caseID, transition.entryType,
			StatusChangeMessage(caseRecord.Status, transition.to, transition.reason),
			models.ActorTypeHuman, &userID, user.Name)

		if IsTerminalStatus(transition.to) {
			applyClosureSideEffects(db, &caseRecord, transition.to)
		}
	} else {
		userID := user.ID
		AppendTimelineEntry(db, caseID, models.TimelineEntryNote,
			fmt.Sprintf("Case updated (%s)", strings.Join(payloadKeys(payload), ", ")),
			models.ActorTypeHuman, &userID, user.Name)
	}

	var updated models.Case
	if err := db.First(&updated, "id = ?", caseID).Error; err != nil {
		return nil, fmt.Errorf("failed to refetch case: %w", err)
	}
	return &updated, nil
}

// statusTransition captures the validated status change being applied
type statusTransition struct {
	to        string
	reason    string
	entryType string
}

// buildCaseUpdates converts an already field-authorized payload into a
// column update map, running state-machine validation when the payload
// carries a status change.
func buildCaseUpdates(caseRecord *models.Case, payload map[string]interface{}, user *models.User) (map[string]interface{}, *statusTransition, error) {
	updates := map[string]interface{}{}
	var transition *statusTransition

	recoveredAmount := caseRecord.RecoveredAmount
	if v, ok := payload["recovered_amount"]; ok {
		f, ok := toFloat(v)
		if !ok || f < 0 {
			return nil, nil, NewDomainError(ErrCodeValidation, "recovered_amount must be a non-negative number")
		}
		recoveredAmount = f
		updates["recovered_amount"] = f
	}

	if v, ok := payload["outstanding_amount"]; ok {
		f, ok := toFloat(v)
		if !ok || f < 0 {
			return nil, nil, NewDomainError(ErrCodeValidation, "outstanding_amount must be a non-negative number")
		}
		if f > caseRecord.OriginalAmount {
			return nil, nil, NewDomainError(ErrCodeValidation, "outstanding_amount cannot exceed original_amount")
		}
		updates["outstanding_amount"] = f
	}

	reason := ""
	for _, key := range []string{"dispute_reason", "escalation_reason", "closure_reason"} {
		if v, ok := payload[key].(string); ok {
			clean := SanitizeText(v)
			updates[key] = clean
			if reason == "" {
				reason = clean
			}
		}
	}

	if v, ok := payload["notes"].(string); ok {
		updates["notes"] = SanitizeText(v)
	}
	if v, ok := payload["debtor_name"].(string); ok {
		clean := SanitizeText(v)
		if clean == "" {
			return nil, nil, NewDomainError(ErrCodeValidation, "debtor_name cannot be empty")
		}
		updates["debtor_name"] = clean
	}
	if v, ok := payload["currency"].(string); ok {
		updates["currency"] = strings.ToUpper(strings.TrimSpace(v))
	}
	if v, ok := payload["customer_segment"].(string); ok {
		updates["customer_segment"] = SanitizeText(v)
	}
	if v, ok := payload["priority"].(string); ok {
		if !models.IsValidCasePriority(v) {
			return nil, nil, NewDomainError(ErrCodeValidation, fmt.Sprintf("invalid priority %q", v))
		}
		updates["priority"] = v
	}
	if v, ok := payload["risk_score"]; ok {
		f, okF := toFloat(v)
		if !okF || f < 0 || f > 100 {
			return nil, nil, NewDomainError(ErrCodeValidation, "risk_score must be between 0 and 100")
		}
		updates["risk_score"] = f
	}
	for _, key := range []string{"is_disputed", "high_priority_flag", "vip_customer", "escalated_by_manager"} {
		if v, ok := payload[key]; ok {
			b, okB := v.(bool)
			if !okB {
				return nil, nil, NewDomainError(ErrCodeValidation, fmt.Sprintf("%s must be a boolean", key))
			}
			updates[key] = b
		}
	}

	if v, ok := payload["status"].(string); ok && v != caseRecord.Status {
		amt := recoveredAmount
		result := ValidateTransition(caseRecord.Status, v, TransitionContext{
			UserID:          user.ID,
			UserRole:        user.Role,
			Reason:          reason,
			RecoveredAmount: &amt,
		})
		if !result.Valid {
			return nil, nil, NewDomainErrorWithDetails(
				ErrCodeInvalidStateTransition,
				result.Reason,
				map[string]interface{}{"allowed_next": result.AllowedNext},
			)
		}

		updates["status"] = v
		entryType := models.TimelineEntryStatusChange
		now := time.Now()

		switch v {
		case models.CaseStatusDisputed:
			updates["is_disputed"] = true
			entryType = models.TimelineEntryDispute
		case models.CaseStatusEscalated:
			updates["escalated_at"] = now
			entryType = models.TimelineEntryEscalation
			if user.Role == models.RoleFedexManager || user.Role == models.RoleDCAManager {
				updates["escalated_by_manager"] = true
			}
		}

		if IsTerminalStatus(v) {
			updates["closed_at"] = now
			entryType = models.TimelineEntryClosure
			if v == models.CaseStatusFullRecovery {
				remaining := caseRecord.OriginalAmount - recoveredAmount
				if remaining < 0 {
					remaining = 0
				}
				updates["outstanding_amount"] = remaining
			}
		}

		transition = &statusTransition{to: v, reason: reason, entryType: entryType}
	}

	return updates, transition, nil
}

// applyClosureSideEffects feeds a terminal transition back into the
// allocation metrics and frees the DCA's capacity slot. Failures here
// are logged, not surfaced: the case update already committed.
func applyClosureSideEffects(db *gorm.DB, caseRecord *models.Case, finalStatus string) {
	if caseRecord.AssignedDCAID == nil || !caseRecord.HasRegion() {
		return
	}

	now := time.Now()
	recovered := finalStatus == models.CaseStatusFullRecovery || finalStatus == models.CaseStatusPartialRecovery
	slaMet := caseRecord.SLADueAt == nil || now.Before(*caseRecord.SLADueAt)

	var refreshed models.Case
	recoveredAmount := caseRecord.RecoveredAmount
	if err := db.Select("recovered_amount").First(&refreshed, "id = ?", caseRecord.ID).Error; err == nil {
		recoveredAmount = refreshed.RecoveredAmount
	}

	err := UpdateRegionPerformance(db, *caseRecord.RegionID, *caseRecord.AssignedDCAID,
		recovered, slaMet, recoveredAmount, RecoveryDaysForCase(caseRecord.CreatedAt, now))
	if err != nil {
		log.Printf("[ALLOCATION] Failed to update region performance for case %s: %v", caseRecord.ID, err)
	}

	if err := ReleaseDCACapacity(db, *caseRecord.AssignedDCAID); err != nil {
		log.Printf("[ALLOCATION] Failed to release DCA capacity for case %s: %v", caseRecord.ID, err)
	}
}

// payloadKeys lists a payload's keys for audit details
func payloadKeys(payload map[string]interface{}) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	return keys
}

// toFloat coerces JSON numbers (float64) and ints
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
