package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dca_flow_app_go/models"
	"dca_flow_app_go/services"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestCreateDCAHandler(t *testing.T) {
	testDB := setupTestDB(t)
	admin := seedUser(t, testDB, "admin@example.com", models.RoleSuperAdmin)

	t.Run("CreatesAgency", func(t *testing.T) {
		body := `{"name":"Atlas Recovery","code":"atlas","contact_email":"ops@atlas.example.com","capacity_limit":25}`
		_, c, rec := setupEcho(http.MethodPost, "/api/dcas", strings.NewReader(body))
		c.Request().Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		asUser(c, admin)

		assert.NoError(t, CreateDCAHandler(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		var payload struct {
			DCA models.DCA `json:"dca"`
		}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(t, "ATLAS", payload.DCA.Code)
		assert.Equal(t, models.DCAStatusActive, payload.DCA.Status)
		assert.Equal(t, 25, payload.DCA.CapacityLimit)

		time.Sleep(100 * time.Millisecond)
		var auditLog models.AuditLog
		err := testDB.Where("resource_type = ? AND resource_id = ?", "DCA", payload.DCA.ID).
			First(&auditLog).Error
		assert.NoError(t, err)
	})

	t.Run("RequiresNameAndCode", func(t *testing.T) {
		_, c, rec := setupEcho(http.MethodPost, "/api/dcas", strings.NewReader(`{"name":"  "}`))
		c.Request().Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		asUser(c, admin)

		assert.NoError(t, CreateDCAHandler(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("RejectsInvalidStatus", func(t *testing.T) {
		body := `{"name":"Borealis","code":"BOREALIS","status":"DORMANT"}`
		_, c, rec := setupEcho(http.MethodPost, "/api/dcas", strings.NewReader(body))
		c.Request().Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		asUser(c, admin)

		assert.NoError(t, CreateDCAHandler(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid DCA status")
	})
}

func TestUpdateDCAHandler(t *testing.T) {
	testDB := setupTestDB(t)
	admin := seedUser(t, testDB, "admin@example.com", models.RoleSuperAdmin)
	dca := &models.DCA{Name: "Atlas Recovery", Code: "ATLAS", Status: models.DCAStatusActive, CapacityLimit: 10}
	assert.NoError(t, testDB.Create(dca).Error)

	body := `{"status":"SUSPENDED","recovery_rate":62.5}`
	_, c, rec := setupEcho(http.MethodPatch, "/api/dcas/"+dca.ID, strings.NewReader(body))
	c.Request().Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c.SetParamNames("id")
	c.SetParamValues(dca.ID)
	asUser(c, admin)

	assert.NoError(t, UpdateDCAHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var refreshed models.DCA
	assert.NoError(t, testDB.First(&refreshed, "id = ?", dca.ID).Error)
	assert.Equal(t, models.DCAStatusSuspended, refreshed.Status)
	assert.Equal(t, 62.5, refreshed.RecoveryRate)
}

func TestUpsertDCAAssignmentHandler(t *testing.T) {
	testDB := setupTestDB(t)
	amer := seedRegion(t, testDB, "AMER")
	admin := seedUser(t, testDB, "admin@example.com", models.RoleSuperAdmin)
	dca := &models.DCA{Name: "Atlas Recovery", Code: "ATLAS", Status: models.DCAStatusActive, CapacityLimit: 10}
	assert.NoError(t, testDB.Create(dca).Error)

	assignmentRequestCtx := func(body string) (echo.Context, *httptest.ResponseRecorder) {
		_, c, rec := setupEcho(http.MethodPut, "/api/dcas/"+dca.ID+"/assignments", strings.NewReader(body))
		c.Request().Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c.SetParamNames("id")
		c.SetParamValues(dca.ID)
		asUser(c, admin)
		return c, rec
	}

	t.Run("CreatesAssignmentWithDefaults", func(t *testing.T) {
		c, rec := assignmentRequestCtx(`{"region_id":"` + amer.ID + `","is_primary":true}`)
		assert.NoError(t, UpsertDCAAssignmentHandler(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		var assignment models.RegionDCAAssignment
		assert.NoError(t, testDB.Where("region_id = ? AND dca_id = ?", amer.ID, dca.ID).First(&assignment).Error)
		assert.True(t, assignment.IsPrimary)
		assert.Equal(t, 5, assignment.AllocationPriority)
		assert.Equal(t, 100.0, assignment.CapacityAllocationPct)
		assert.True(t, assignment.IsActive)
	})

	t.Run("UpdatesExistingAssignmentInPlace", func(t *testing.T) {
		c, rec := assignmentRequestCtx(`{"region_id":"` + amer.ID + `","allocation_priority":1,"capacity_allocation_pct":40}`)
		assert.NoError(t, UpsertDCAAssignmentHandler(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var count int64
		testDB.Model(&models.RegionDCAAssignment{}).Where("dca_id = ?", dca.ID).Count(&count)
		assert.Equal(t, int64(1), count)

		var assignment models.RegionDCAAssignment
		assert.NoError(t, testDB.Where("region_id = ? AND dca_id = ?", amer.ID, dca.ID).First(&assignment).Error)
		assert.Equal(t, 1, assignment.AllocationPriority)
		assert.Equal(t, 40.0, assignment.CapacityAllocationPct)
		assert.True(t, assignment.IsPrimary)
	})

	t.Run("RejectsOutOfRangeCapacityShare", func(t *testing.T) {
		c, rec := assignmentRequestCtx(`{"region_id":"` + amer.ID + `","capacity_allocation_pct":150}`)
		assert.NoError(t, UpsertDCAAssignmentHandler(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), services.ErrCodeValidation)
	})

	t.Run("RejectsInactiveRegion", func(t *testing.T) {
		latam := seedRegion(t, testDB, "LATAM")
		assert.NoError(t, testDB.Model(latam).Update("is_active", false).Error)

		c, rec := assignmentRequestCtx(`{"region_id":"` + latam.ID + `"}`)
		assert.NoError(t, UpsertDCAAssignmentHandler(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListDCAsHandler(t *testing.T) {
	testDB := setupTestDB(t)
	admin := seedUser(t, testDB, "admin@example.com", models.RoleSuperAdmin)
	assert.NoError(t, testDB.Create(&models.DCA{Name: "Meridian", Code: "MERIDIAN", Status: models.DCAStatusActive}).Error)
	assert.NoError(t, testDB.Create(&models.DCA{Name: "Atlas", Code: "ATLAS", Status: models.DCAStatusActive}).Error)

	_, c, rec := setupEcho(http.MethodGet, "/api/dcas", nil)
	asUser(c, admin)

	assert.NoError(t, ListDCAsHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		DCAs []models.DCA `json:"dcas"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.DCAs, 2)
	assert.Equal(t, "Atlas", payload.DCAs[0].Name)
}
