package handlers

import (
	"io"
	"net/http/httptest"
	"testing"

	"dca_flow_app_go/config"
	"dca_flow_app_go/db"
	"dca_flow_app_go/models"
	"dca_flow_app_go/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// Use unique shared memory name to isolate tests while allowing shared cache for async tasks
	dbName := "mem_" + uuid.New().String()
	testDB, err := gorm.Open(sqlite.Open("file:"+dbName+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{})
	assert.NoError(t, err)

	err = testDB.Exec("PRAGMA journal_mode=WAL;").Error
	assert.NoError(t, err)

	if services.Storage == nil {
		services.Storage = services.NewLocalStorage("tmp/test_uploads")
	}

	err = testDB.AutoMigrate(
		&models.Region{},
		&models.User{},
		&models.Session{},
		&models.UserRegionAccess{},
		&models.DCA{},
		&models.RegionDCAAssignment{},
		&models.Case{},
		&models.CaseTimelineEntry{},
		&models.CaseDocument{},
		&models.AuditLog{},
		&models.Notification{},
	)
	assert.NoError(t, err)

	// Set global DB
	db.DB = testDB

	services.InitSecurityMonitor()

	return testDB
}

func setupEcho(method, path string, body io.Reader) (*echo.Echo, echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	c.Set("config", &config.Config{
		Environment:       "test",
		DefaultRegionCode: "GLOBAL",
		EmailTestMode:     true,
	})

	return e, c, rec
}

func seedRegion(t *testing.T, testDB *gorm.DB, code string) *models.Region {
	region := &models.Region{Code: code, Name: code + " Region", IsActive: true}
	assert.NoError(t, testDB.Create(region).Error)
	return region
}

func seedUser(t *testing.T, testDB *gorm.DB, email, role string) *models.User {
	hash, err := services.HashPassword("sup3r-secret")
	assert.NoError(t, err)
	user := &models.User{
		Name:     "Test User",
		Email:    email,
		Password: hash,
		Role:     role,
		IsActive: true,
	}
	assert.NoError(t, testDB.Create(user).Error)
	return user
}

func seedCase(t *testing.T, testDB *gorm.DB, region *models.Region, number string) *models.Case {
	caseRecord := &models.Case{
		CaseNumber:        number,
		DebtorName:        "Acme Freight Ltd",
		OriginalAmount:    5000,
		OutstandingAmount: 5000,
		Status:            models.CaseStatusPendingAllocation,
		Priority:          models.CasePriorityMedium,
	}
	if region != nil {
		caseRecord.RegionID = &region.ID
	}
	assert.NoError(t, testDB.Create(caseRecord).Error)
	return caseRecord
}

func asUser(c echo.Context, user *models.User) {
	c.Set("user", user)
	c.Set("audit_context", services.AuditContext{
		UserID:    user.ID,
		UserEmail: user.Email,
		UserRole:  user.Role,
		IPAddress: "127.0.0.1",
		UserAgent: "test-agent",
	})
}

func stringToPtr(s string) *string {
	return &s
}
