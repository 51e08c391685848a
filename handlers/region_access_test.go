package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dca_flow_app_go/models"
	"dca_flow_app_go/services"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestListRegionsHandler(t *testing.T) {
	testDB := setupTestDB(t)
	seedRegion(t, testDB, "EMEA")
	seedRegion(t, testDB, "AMER")
	inactive := seedRegion(t, testDB, "LATAM")
	assert.NoError(t, testDB.Model(inactive).Update("is_active", false).Error)

	admin := seedUser(t, testDB, "admin@example.com", models.RoleSuperAdmin)

	_, c, rec := setupEcho(http.MethodGet, "/api/regions", nil)
	asUser(c, admin)

	assert.NoError(t, ListRegionsHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Regions []models.Region `json:"regions"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.Regions, 2)
	// Sorted by code
	assert.Equal(t, "AMER", payload.Regions[0].Code)
	assert.Equal(t, "EMEA", payload.Regions[1].Code)
}

func TestGrantRegionAccessHandler(t *testing.T) {
	testDB := setupTestDB(t)
	amer := seedRegion(t, testDB, "AMER")
	admin := seedUser(t, testDB, "admin@example.com", models.RoleSuperAdmin)

	grantRequest := func(targetID, body string) (echo.Context, *httptest.ResponseRecorder) {
		_, c, rec := setupEcho(http.MethodPost, "/api/users/"+targetID+"/region-access", strings.NewReader(body))
		c.Request().Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c.SetParamNames("id")
		c.SetParamValues(targetID)
		asUser(c, admin)
		return c, rec
	}

	t.Run("GrantsAccess", func(t *testing.T) {
		analyst := seedUser(t, testDB, "analyst@example.com", models.RoleFedexAnalyst)
		body := `{"region_id":"` + amer.ID + `","access_level":"WRITE","reason":"regional onboarding"}`

		c, rec := grantRequest(analyst.ID, body)
		assert.NoError(t, GrantRegionAccessHandler(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		check, err := services.HasRegionAccess(testDB, analyst.ID, amer.ID, models.AccessLevelWrite)
		assert.NoError(t, err)
		assert.True(t, check.Allowed)
	})

	t.Run("GlobalRoleRejected", func(t *testing.T) {
		otherAdmin := seedUser(t, testDB, "admin2@example.com", models.RoleFedexAdmin)
		body := `{"region_id":"` + amer.ID + `","access_level":"READ"}`

		c, rec := grantRequest(otherAdmin.ID, body)
		assert.NoError(t, GrantRegionAccessHandler(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "global roles do not take region grants")
	})

	t.Run("MissingRegionRejected", func(t *testing.T) {
		analyst := seedUser(t, testDB, "analyst2@example.com", models.RoleFedexAnalyst)

		c, rec := grantRequest(analyst.ID, `{"access_level":"READ"}`)
		assert.NoError(t, GrantRegionAccessHandler(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownUserIsNotFound", func(t *testing.T) {
		body := `{"region_id":"` + amer.ID + `","access_level":"READ"}`

		c, rec := grantRequest("00000000-0000-0000-0000-000000000000", body)
		assert.NoError(t, GrantRegionAccessHandler(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("InvalidLevelRejected", func(t *testing.T) {
		analyst := seedUser(t, testDB, "analyst3@example.com", models.RoleFedexAnalyst)
		body := `{"region_id":"` + amer.ID + `","access_level":"SUPREME"}`

		c, rec := grantRequest(analyst.ID, body)
		assert.NoError(t, GrantRegionAccessHandler(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), services.ErrCodeValidation)
	})
}

func TestRevokeRegionAccessHandler(t *testing.T) {
	testDB := setupTestDB(t)
	amer := seedRegion(t, testDB, "AMER")
	admin := seedUser(t, testDB, "admin@example.com", models.RoleSuperAdmin)
	analyst := seedUser(t, testDB, "analyst@example.com", models.RoleFedexAnalyst)
	grantRegion(t, testDB, analyst, amer, models.AccessLevelWrite)

	body := `{"region_id":"` + amer.ID + `","reason":"left the regional team"}`
	_, c, rec := setupEcho(http.MethodPost, "/api/users/"+analyst.ID+"/region-access/revoke", strings.NewReader(body))
	c.Request().Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c.SetParamNames("id")
	c.SetParamValues(analyst.ID)
	asUser(c, admin)

	assert.NoError(t, RevokeRegionAccessHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	check, err := services.HasRegionAccess(testDB, analyst.ID, amer.ID, models.AccessLevelRead)
	assert.NoError(t, err)
	assert.False(t, check.Allowed)

	// Revoking again finds no active grant
	_, c2, rec2 := setupEcho(http.MethodPost, "/api/users/"+analyst.ID+"/region-access/revoke", strings.NewReader(body))
	c2.Request().Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c2.SetParamNames("id")
	c2.SetParamValues(analyst.ID)
	asUser(c2, admin)

	assert.NoError(t, RevokeRegionAccessHandler(c2))
	assert.Equal(t, http.StatusNotFound, rec2.Code)
}

func TestListUserRegionAccessHandler(t *testing.T) {
	testDB := setupTestDB(t)
	amer := seedRegion(t, testDB, "AMER")
	admin := seedUser(t, testDB, "admin@example.com", models.RoleSuperAdmin)
	analyst := seedUser(t, testDB, "analyst@example.com", models.RoleFedexAnalyst)
	grantRegion(t, testDB, analyst, amer, models.AccessLevelRead)

	_, c, rec := setupEcho(http.MethodGet, "/api/users/"+analyst.ID+"/region-access", nil)
	c.SetParamNames("id")
	c.SetParamValues(analyst.ID)
	asUser(c, admin)

	assert.NoError(t, ListUserRegionAccessHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Grants []models.UserRegionAccess `json:"grants"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.Grants, 1)
	assert.Equal(t, amer.ID, payload.Grants[0].RegionID)
}
