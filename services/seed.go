package services

import (
	"log"
	"os"

	"dca_flow_app_go/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SeedSuperadminFromEnv creates a SUPER_ADMIN user from environment
// variables. Only runs if SUPERADMIN_EMAIL and SUPERADMIN_PASSWORD are
// set and no SUPER_ADMIN user exists yet.
func SeedSuperadminFromEnv(db *gorm.DB) error {
	email := os.Getenv("SUPERADMIN_EMAIL")
	password := os.Getenv("SUPERADMIN_PASSWORD")
	name := os.Getenv("SUPERADMIN_NAME")

	if email == "" || password == "" {
		return nil
	}

	if name == "" {
		name = "Superadmin"
	}

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleSuperAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("[SEED] SUPER_ADMIN user already exists, skipping seed")
		return nil
	}

	var existingUser models.User
	if err := db.Where("email = ?", email).First(&existingUser).Error; err == nil {
		log.Printf("[SEED] User with email %s already exists, skipping superadmin seed", email)
		return nil
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}

	user := &models.User{
		ID:       uuid.New().String(),
		Name:     name,
		Email:    email,
		Password: hashedPassword,
		Role:     models.RoleSuperAdmin,
		IsActive: true,
	}

	if err := db.Create(user).Error; err != nil {
		return err
	}

	log.Printf("[SEED] Created SUPER_ADMIN user: %s", email)
	return nil
}

// SeedRegions creates the baseline regions if none exist. The GLOBAL
// region backs audit writes for resources whose region cannot be
// derived, so it is always present.
func SeedRegions(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Region{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	regions := []models.Region{
		{Code: "GLOBAL", Name: "Global", IsActive: true},
		{Code: "AMER", Name: "Americas", IsActive: true},
		{Code: "EMEA", Name: "Europe, Middle East and Africa", IsActive: true},
		{Code: "APAC", Name: "Asia Pacific", IsActive: true},
	}

	for i := range regions {
		if err := db.Create(&regions[i]).Error; err != nil {
			return err
		}
	}

	log.Printf("[SEED] Created %d baseline regions", len(regions))
	return nil
}

// SeedDemoData creates demo DCAs, region assignments and cases for
// development environments. Skips entirely if any DCA already exists.
func SeedDemoData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.DCA{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var amer, emea models.Region
	if err := db.Where("code = ?", "AMER").First(&amer).Error; err != nil {
		return err
	}
	if err := db.Where("code = ?", "EMEA").First(&emea).Error; err != nil {
		return err
	}

	dcas := []models.DCA{
		{
			Name:              "Meridian Recovery Group",
			Code:              "MRG",
			Status:            models.DCAStatusActive,
			PerformanceScore:  82,
			RecoveryRate:      74,
			SLAComplianceRate: 91,
			CapacityLimit:     200,
		},
		{
			Name:              "Atlas Collections",
			Code:              "ATLAS",
			Status:            models.DCAStatusActive,
			PerformanceScore:  76,
			RecoveryRate:      68,
			SLAComplianceRate: 85,
			CapacityLimit:     150,
		},
		{
			Name:              "Northwind Debt Services",
			Code:              "NWDS",
			Status:            models.DCAStatusActive,
			PerformanceScore:  64,
			RecoveryRate:      59,
			SLAComplianceRate: 78,
			CapacityLimit:     100,
		},
	}

	for i := range dcas {
		if err := db.Create(&dcas[i]).Error; err != nil {
			return err
		}
	}

	assignments := []models.RegionDCAAssignment{
		{RegionID: amer.ID, DCAID: dcas[0].ID, IsPrimary: true, AllocationPriority: 1, CapacityAllocationPct: 60, IsActive: true},
		{RegionID: amer.ID, DCAID: dcas[1].ID, AllocationPriority: 3, CapacityAllocationPct: 50, IsActive: true},
		{RegionID: emea.ID, DCAID: dcas[1].ID, IsPrimary: true, AllocationPriority: 2, CapacityAllocationPct: 50, IsActive: true},
		{RegionID: emea.ID, DCAID: dcas[2].ID, AllocationPriority: 4, CapacityAllocationPct: 100, IsActive: true},
	}

	for i := range assignments {
		if err := db.Create(&assignments[i]).Error; err != nil {
			return err
		}
	}

	log.Printf("[SEED] Created %d demo DCAs with %d region assignments", len(dcas), len(assignments))
	return nil
}
