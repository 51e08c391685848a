package services

import (
	"fmt"
	"testing"
	"time"

	"dca_flow_app_go/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCaseServiceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Region{},
		&models.User{},
		&models.UserRegionAccess{},
		&models.DCA{},
		&models.RegionDCAAssignment{},
		&models.Case{},
		&models.CaseTimelineEntry{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func auditCtxFor(user *models.User) AuditContext {
	return AuditContext{
		UserID:    user.ID,
		UserEmail: user.Email,
		UserRole:  user.Role,
		IPAddress: "127.0.0.1",
		UserAgent: "test-agent",
	}
}

func TestGenerateCaseNumberFormatAndSequence(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	region := createTestRegion(t, db, "AMER")
	year := time.Now().Year()

	first, err := GenerateCaseNumber(db, region.ID)
	assert.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("AMER-%d-00001", year), first)

	c := &models.Case{
		CaseNumber: first, DebtorName: "Acme Freight Ltd",
		OriginalAmount: 1000, OutstandingAmount: 1000,
		Status: models.CaseStatusPendingAllocation, Priority: models.CasePriorityMedium,
		RegionID: &region.ID,
	}
	assert.NoError(t, db.Create(c).Error)

	second, err := GenerateCaseNumber(db, region.ID)
	assert.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("AMER-%d-00002", year), second)
}

func TestGenerateCaseNumberScopesSequencePerRegion(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	amer := createTestRegion(t, db, "AMER")
	emea := createTestRegion(t, db, "EMEA")
	year := time.Now().Year()

	number, err := GenerateCaseNumber(db, amer.ID)
	assert.NoError(t, err)
	c := &models.Case{
		CaseNumber: number, DebtorName: "Acme Freight Ltd",
		OriginalAmount: 1000, OutstandingAmount: 1000,
		Status: models.CaseStatusPendingAllocation, Priority: models.CasePriorityMedium,
		RegionID: &amer.ID,
	}
	assert.NoError(t, db.Create(c).Error)

	emeaNumber, err := GenerateCaseNumber(db, emea.ID)
	assert.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("EMEA-%d-00001", year), emeaNumber)
}

func TestEnsureUniqueCaseNumber(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	region := createTestRegion(t, db, "APAC")

	number, err := EnsureUniqueCaseNumber(db, region.ID)
	assert.NoError(t, err)

	var count int64
	db.Model(&models.Case{}).Where("case_number = ?", number).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCreateCaseRequiresRegion(t *testing.T) {
	db := setupCaseServiceTestDB(t)

	_, err := CreateCase(db, CreateCaseInput{
		DebtorName: "Acme Freight Ltd", OriginalAmount: 1000,
	})

	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeValidation, de.Code)
}

func TestCreateCaseRejectsUnknownRegionCode(t *testing.T) {
	db := setupCaseServiceTestDB(t)

	_, err := CreateCase(db, CreateCaseInput{
		DebtorName: "Acme Freight Ltd", OriginalAmount: 1000, RegionCode: "NOPE",
	})

	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeValidation, de.Code)
}

func TestCreateCaseValidation(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	region := createTestRegion(t, db, "AMER")

	cases := []CreateCaseInput{
		{RegionID: region.ID, DebtorName: "  ", OriginalAmount: 1000},
		{RegionID: region.ID, DebtorName: "Acme", OriginalAmount: 0},
		{RegionID: region.ID, DebtorName: "Acme", OriginalAmount: -50},
		{RegionID: region.ID, DebtorName: "Acme", OriginalAmount: 1000, OutstandingAmount: 2000},
		{RegionID: region.ID, DebtorName: "Acme", OriginalAmount: 1000, Priority: "URGENT"},
	}
	for _, input := range cases {
		_, err := CreateCase(db, input)
		de, ok := AsDomainError(err)
		assert.True(t, ok)
		assert.Equal(t, ErrCodeValidation, de.Code)
	}
}

func TestCreateCaseDefaults(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	region := createTestRegion(t, db, "AMER")

	created, err := CreateCase(db, CreateCaseInput{
		RegionCode: "AMER", DebtorName: "Acme Freight Ltd", OriginalAmount: 5000,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.CaseStatusPendingAllocation, created.Status)
	assert.Equal(t, models.CasePriorityMedium, created.Priority)
	assert.Equal(t, "USD", created.Currency)
	assert.InDelta(t, 5000.0, created.OutstandingAmount, 0.001)
	assert.NotNil(t, created.RegionID)
	assert.Equal(t, region.ID, *created.RegionID)
	assert.Contains(t, created.CaseNumber, "AMER-")
}

func TestCreateCaseSanitizesDebtorName(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	createTestRegion(t, db, "AMER")

	created, err := CreateCase(db, CreateCaseInput{
		RegionCode: "AMER", DebtorName: "<script>alert(1)</script>Acme Freight", OriginalAmount: 5000,
	})
	assert.NoError(t, err)
	assert.NotContains(t, created.DebtorName, "<script>")
	assert.Contains(t, created.DebtorName, "Acme Freight")
}

func TestUpdateCaseBlocksSystemOnlyFields(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	cfg := allocationTestConfig()
	region := createTestRegion(t, db, "AMER")
	admin := createTestUser(t, db, "admin@example.com", models.RoleSuperAdmin)

	created, err := CreateCase(db, CreateCaseInput{
		RegionID: region.ID, DebtorName: "Acme Freight Ltd", OriginalAmount: 5000,
	})
	assert.NoError(t, err)

	_, err = UpdateCase(db, cfg, admin, auditCtxFor(admin), created.ID,
		map[string]interface{}{"assigned_dca_id": "some-dca-id"}, created.UpdatedAt)

	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeSystemOnlyField, de.Code)
	assert.Contains(t, de.Details["blocked_fields"], "assigned_dca_id")

	time.Sleep(100 * time.Millisecond)

	var securityLog models.AuditLog
	err = db.Where("resource_id = ? AND action = ?", created.ID, models.AuditActionSecurity).
		First(&securityLog).Error
	assert.NoError(t, err)
	assert.Equal(t, models.AuditSeverityCritical, securityLog.Severity)
	assert.Equal(t, "SYSTEM_FIELD_WRITE_BLOCKED", securityLog.ResourceName)
}

func TestUpdateCaseRejectsRegionMutation(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	cfg := allocationTestConfig()
	region := createTestRegion(t, db, "AMER")
	other := createTestRegion(t, db, "EMEA")
	admin := createTestUser(t, db, "admin@example.com", models.RoleSuperAdmin)

	created, err := CreateCase(db, CreateCaseInput{
		RegionID: region.ID, DebtorName: "Acme Freight Ltd", OriginalAmount: 5000,
	})
	assert.NoError(t, err)

	_, err = UpdateCase(db, cfg, admin, auditCtxFor(admin), created.ID,
		map[string]interface{}{"region_id": other.ID}, created.UpdatedAt)

	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeRegionImmutable, de.Code)

	var unchanged models.Case
	assert.NoError(t, db.First(&unchanged, "id = ?", created.ID).Error)
	assert.Equal(t, region.ID, *unchanged.RegionID)
}

func TestUpdateCaseDeniesInaccessibleCase(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	cfg := allocationTestConfig()
	region := createTestRegion(t, db, "AMER")
	analyst := createTestUser(t, db, "analyst@example.com", models.RoleFedexAnalyst)

	created, err := CreateCase(db, CreateCaseInput{
		RegionID: region.ID, DebtorName: "Acme Freight Ltd", OriginalAmount: 5000,
	})
	assert.NoError(t, err)

	_, err = UpdateCase(db, cfg, analyst, auditCtxFor(analyst), created.ID,
		map[string]interface{}{"notes": "trying anyway"}, created.UpdatedAt)

	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeForbidden, de.Code)
}

func TestUpdateCaseEnforcesRoleFieldTable(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	cfg := allocationTestConfig()
	region := createTestRegion(t, db, "AMER")
	analyst := createTestUser(t, db, "analyst@example.com", models.RoleFedexAnalyst)
	grantAccess(t, db, analyst.ID, region.ID, models.AccessLevelWrite)

	created, err := CreateCase(db, CreateCaseInput{
		RegionID: region.ID, DebtorName: "Acme Freight Ltd", OriginalAmount: 5000,
	})
	assert.NoError(t, err)

	// Analysts may edit notes and priority, not financials
	_, err = UpdateCase(db, cfg, analyst, auditCtxFor(analyst), created.ID,
		map[string]interface{}{"recovered_amount": 1000.0}, created.UpdatedAt)

	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeForbidden, de.Code)
	assert.Contains(t, de.Details["denied_fields"], "recovered_amount")

	// The fields they do hold work
	updated, err := UpdateCase(db, cfg, analyst, auditCtxFor(analyst), created.ID,
		map[string]interface{}{"notes": "called the debtor, no answer"}, created.UpdatedAt)
	assert.NoError(t, err)
	assert.NotNil(t, updated.Notes)
}

func TestUpdateCaseRequiresWriteGrantForRegionalRoles(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	cfg := allocationTestConfig()
	region := createTestRegion(t, db, "AMER")
	analyst := createTestUser(t, db, "analyst@example.com", models.RoleFedexAnalyst)
	grantAccess(t, db, analyst.ID, region.ID, models.AccessLevelRead)

	created, err := CreateCase(db, CreateCaseInput{
		RegionID: region.ID, DebtorName: "Acme Freight Ltd", OriginalAmount: 5000,
	})
	assert.NoError(t, err)

	_, err = UpdateCase(db, cfg, analyst, auditCtxFor(analyst), created.ID,
		map[string]interface{}{"notes": "read-only user writing"}, created.UpdatedAt)

	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeForbidden, de.Code)
}

func TestUpdateCaseRegionlessCaseIsReadOnlyForRegionalRoles(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	cfg := allocationTestConfig()
	analyst := createTestUser(t, db, "analyst@example.com", models.RoleFedexAnalyst)

	orphan := &models.Case{
		CaseNumber: "ORPHAN-2026-00001", DebtorName: "Acme Freight Ltd",
		OriginalAmount: 5000, OutstandingAmount: 5000,
		Status: models.CaseStatusPendingAllocation, Priority: models.CasePriorityMedium,
	}
	assert.NoError(t, db.Create(orphan).Error)

	// Visible under the unassigned-region policy, but only READ
	access, err := CanAccessCase(db, analyst.ID, orphan.ID)
	assert.NoError(t, err)
	assert.True(t, access.Allowed)
	assert.Equal(t, RegionPolicyUnassigned, access.Policy)

	_, err = UpdateCase(db, cfg, analyst, auditCtxFor(analyst), orphan.ID,
		map[string]interface{}{"notes": "triage write attempt"}, orphan.UpdatedAt)

	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeForbidden, de.Code)

	var unchanged models.Case
	assert.NoError(t, db.First(&unchanged, "id = ?", orphan.ID).Error)
	assert.Nil(t, unchanged.Notes)

	time.Sleep(100 * time.Millisecond)

	var securityLog models.AuditLog
	err = db.Where("resource_id = ? AND resource_name = ?", orphan.ID, "REGION_WRITE_DENIED").
		First(&securityLog).Error
	assert.NoError(t, err)
	assert.Equal(t, models.AuditSeverityCritical, securityLog.Severity)
}

func TestUpdateCaseRegionlessCaseStaysWritableForGlobalRoles(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	cfg := allocationTestConfig()
	admin := createTestUser(t, db, "admin@example.com", models.RoleSuperAdmin)

	orphan := &models.Case{
		CaseNumber: "ORPHAN-2026-00002", DebtorName: "Acme Freight Ltd",
		OriginalAmount: 5000, OutstandingAmount: 5000,
		Status: models.CaseStatusPendingAllocation, Priority: models.CasePriorityMedium,
	}
	assert.NoError(t, db.Create(orphan).Error)

	updated, err := UpdateCase(db, cfg, admin, auditCtxFor(admin), orphan.ID,
		map[string]interface{}{"notes": "routing to the right region"}, orphan.UpdatedAt)
	assert.NoError(t, err)
	assert.NotNil(t, updated.Notes)
}

func TestUpdateCaseConcurrencyConflict(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	cfg := allocationTestConfig()
	region := createTestRegion(t, db, "AMER")
	admin := createTestUser(t, db, "admin@example.com", models.RoleSuperAdmin)

	created, err := CreateCase(db, CreateCaseInput{
		RegionID: region.ID, DebtorName: "Acme Freight Ltd", OriginalAmount: 5000,
	})
	assert.NoError(t, err)

	stale := created.UpdatedAt.Add(-time.Minute)
	_, err = UpdateCase(db, cfg, admin, auditCtxFor(admin), created.ID,
		map[string]interface{}{"notes": "stale write"}, stale)

	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeConcurrencyConflict, de.Code)
}

func TestUpdateCaseInvalidTransitionListsAllowedNext(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	cfg := allocationTestConfig()
	region := createTestRegion(t, db, "AMER")
	admin := createTestUser(t, db, "admin@example.com", models.RoleSuperAdmin)

	created, err := CreateCase(db, CreateCaseInput{
		RegionID: region.ID, DebtorName: "Acme Freight Ltd", OriginalAmount: 5000,
	})
	assert.NoError(t, err)

	_, err = UpdateCase(db, cfg, admin, auditCtxFor(admin), created.ID,
		map[string]interface{}{"status": models.CaseStatusInProgress}, created.UpdatedAt)

	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeInvalidStateTransition, de.Code)
	assert.Contains(t, de.Details["allowed_next"], models.CaseStatusAllocated)
}

func TestUpdateCaseStatusTransitionWithSideEffects(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	cfg := allocationTestConfig()
	region := createTestRegion(t, db, "AMER")
	admin := createTestUser(t, db, "admin@example.com", models.RoleSuperAdmin)

	created, err := CreateCase(db, CreateCaseInput{
		RegionID: region.ID, DebtorName: "Acme Freight Ltd", OriginalAmount: 5000,
	})
	assert.NoError(t, err)

	updated, err := UpdateCase(db, cfg, admin, auditCtxFor(admin), created.ID,
		map[string]interface{}{
			"status":         models.CaseStatusClosed,
			"closure_reason": "duplicate of another case",
		}, created.UpdatedAt)
	assert.NoError(t, err)
	assert.Equal(t, models.CaseStatusClosed, updated.Status)
	assert.NotNil(t, updated.ClosedAt)

	var entry models.CaseTimelineEntry
	err = db.Where("case_id = ? AND entry_type = ?", created.ID, models.TimelineEntryClosure).
		First(&entry).Error
	assert.NoError(t, err)
	assert.Equal(t, models.ActorTypeHuman, entry.ActorType)

	time.Sleep(100 * time.Millisecond)

	var auditLog models.AuditLog
	err = db.Where("resource_id = ? AND action = ?", created.ID, models.AuditActionStatusChange).
		First(&auditLog).Error
	assert.NoError(t, err)
	assert.Equal(t, models.ActorTypeHuman, auditLog.ActorType)
	assert.NotNil(t, auditLog.UserID)
	assert.Equal(t, admin.ID, *auditLog.UserID)
}

func TestUpdateCaseFullRecoveryFeedsAllocationMetrics(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	cfg := allocationTestConfig()
	region := createTestRegion(t, db, "AMER")
	admin := createTestUser(t, db, "admin@example.com", models.RoleSuperAdmin)

	dca := createTestDCA(t, db, "Meridian Recovery Group", "MRG", 10)
	db.Model(dca).Update("capacity_used", 1)
	createTestAssignment(t, db, &models.RegionDCAAssignment{
		RegionID: region.ID, DCAID: dca.ID,
	})

	created, err := CreateCase(db, CreateCaseInput{
		RegionID: region.ID, DebtorName: "Acme Freight Ltd", OriginalAmount: 5000,
	})
	assert.NoError(t, err)
	db.Model(&models.Case{}).Where("id = ?", created.ID).Updates(map[string]interface{}{
		"status":          models.CaseStatusAllocated,
		"assigned_dca_id": dca.ID,
	})
	var allocated models.Case
	assert.NoError(t, db.First(&allocated, "id = ?", created.ID).Error)

	updated, err := UpdateCase(db, cfg, admin, auditCtxFor(admin), created.ID,
		map[string]interface{}{
			"status":           models.CaseStatusFullRecovery,
			"recovered_amount": 5000.0,
		}, allocated.UpdatedAt)
	assert.NoError(t, err)
	assert.Equal(t, models.CaseStatusFullRecovery, updated.Status)
	assert.InDelta(t, 0.0, updated.OutstandingAmount, 0.001)
	assert.NotNil(t, updated.ClosedAt)

	// Closure folds into the region metrics and frees the capacity slot
	var assignment models.RegionDCAAssignment
	assert.NoError(t, db.Where("region_id = ? AND dca_id = ?", region.ID, dca.ID).First(&assignment).Error)
	assert.Equal(t, 1, assignment.CasesHandled)
	assert.NotNil(t, assignment.RecoveryRate)
	assert.InDelta(t, 100.0, *assignment.RecoveryRate, 0.001)
	assert.InDelta(t, 5000.0, assignment.AmountRecovered, 0.001)

	var updatedDCA models.DCA
	assert.NoError(t, db.First(&updatedDCA, "id = ?", dca.ID).Error)
	assert.Equal(t, 0, updatedDCA.CapacityUsed)
}

func TestUpdateCaseRejectsRecoveryWithoutAmount(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	cfg := allocationTestConfig()
	region := createTestRegion(t, db, "AMER")
	admin := createTestUser(t, db, "admin@example.com", models.RoleSuperAdmin)

	created, err := CreateCase(db, CreateCaseInput{
		RegionID: region.ID, DebtorName: "Acme Freight Ltd", OriginalAmount: 5000,
	})
	assert.NoError(t, err)
	db.Model(&models.Case{}).Where("id = ?", created.ID).Update("status", models.CaseStatusAllocated)
	var allocated models.Case
	assert.NoError(t, db.First(&allocated, "id = ?", created.ID).Error)

	_, err = UpdateCase(db, cfg, admin, auditCtxFor(admin), created.ID,
		map[string]interface{}{"status": models.CaseStatusFullRecovery}, allocated.UpdatedAt)

	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeInvalidStateTransition, de.Code)
}

func TestUpdateCaseEmptyPayloadIsNoop(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	cfg := allocationTestConfig()
	region := createTestRegion(t, db, "AMER")
	admin := createTestUser(t, db, "admin@example.com", models.RoleSuperAdmin)

	created, err := CreateCase(db, CreateCaseInput{
		RegionID: region.ID, DebtorName: "Acme Freight Ltd", OriginalAmount: 5000,
	})
	assert.NoError(t, err)

	result, err := UpdateCase(db, cfg, admin, auditCtxFor(admin), created.ID,
		map[string]interface{}{}, created.UpdatedAt)
	assert.NoError(t, err)
	assert.Equal(t, created.ID, result.ID)

	var count int64
	db.Model(&models.CaseTimelineEntry{}).Where("case_id = ?", created.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestUpdateCaseNotFound(t *testing.T) {
	db := setupCaseServiceTestDB(t)
	cfg := allocationTestConfig()
	admin := createTestUser(t, db, "admin@example.com", models.RoleSuperAdmin)

	_, err := UpdateCase(db, cfg, admin, auditCtxFor(admin),
		"00000000-0000-0000-0000-000000000000", map[string]interface{}{}, time.Now())

	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeNotFound, de.Code)
}
