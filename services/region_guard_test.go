package services

import (
	"testing"

	"dca_flow_app_go/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRegionGuardTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Region{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func TestStripRegionFields(t *testing.T) {
	payload := map[string]interface{}{
		"region_id": "some-region",
		"region":    "AMER",
		"notes":     "kept",
	}

	stripped := StripRegionFields(payload)

	assert.ElementsMatch(t, []string{"region", "region_id"}, stripped)
	assert.NotContains(t, payload, "region_id")
	assert.NotContains(t, payload, "region")
	assert.Contains(t, payload, "notes")
}

func TestStripRegionFieldsNoopWithoutRegionKeys(t *testing.T) {
	payload := map[string]interface{}{"notes": "kept"}

	stripped := StripRegionFields(payload)

	assert.Empty(t, stripped)
	assert.Len(t, payload, 1)
}

func TestRejectIfRegionMutation(t *testing.T) {
	err := RejectIfRegionMutation(map[string]interface{}{"region_id": "x", "notes": "y"})

	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeRegionImmutable, de.Code)
	assert.Contains(t, de.Details["rejected_fields"], "region_id")

	assert.NoError(t, RejectIfRegionMutation(map[string]interface{}{"notes": "y"}))
}

func TestValidateRegionForInsertByID(t *testing.T) {
	db := setupRegionGuardTestDB(t)
	region := createTestRegion(t, db, "AMER")

	resolved, err := ValidateRegionForInsert(db, map[string]interface{}{"region_id": region.ID})
	assert.NoError(t, err)
	assert.Equal(t, region.ID, resolved.ID)
}

func TestValidateRegionForInsertByCode(t *testing.T) {
	db := setupRegionGuardTestDB(t)
	region := createTestRegion(t, db, "EMEA")

	resolved, err := ValidateRegionForInsert(db, map[string]interface{}{"region_code": "EMEA"})
	assert.NoError(t, err)
	assert.Equal(t, region.ID, resolved.ID)
}

func TestValidateRegionForInsertRejectsInactiveRegion(t *testing.T) {
	db := setupRegionGuardTestDB(t)
	region := createTestRegion(t, db, "APAC")
	db.Model(region).Update("is_active", false)

	_, err := ValidateRegionForInsert(db, map[string]interface{}{"region_id": region.ID})
	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeValidation, de.Code)

	_, err = ValidateRegionForInsert(db, map[string]interface{}{"region_code": "APAC"})
	de, ok = AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeValidation, de.Code)
}

func TestValidateRegionForInsertRequiresRegion(t *testing.T) {
	db := setupRegionGuardTestDB(t)

	_, err := ValidateRegionForInsert(db, map[string]interface{}{})
	de, ok := AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeValidation, de.Code)

	_, err = ValidateRegionForInsert(db, map[string]interface{}{"region_id": "", "region_code": ""})
	de, ok = AsDomainError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeValidation, de.Code)
}
