package services

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"dca_flow_app_go/config"
	"dca_flow_app_go/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ImportResult contains the summary of the import process
type ImportResult struct {
	TotalProcessed int
	SuccessCount   int
	FailedCount    int
	Errors         []string
}

const (
	importSheetInstructions = "Instructions"
	importSheetCases        = "Cases"
)

// GenerateExcelTemplate generates the Excel template for bulk case import.
// The Cases sheet lists every active region code so operators do not have
// to look them up.
func GenerateExcelTemplate(dbConn *gorm.DB) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	// Rename Sheet1 to Instructions
	f.SetSheetName("Sheet1", importSheetInstructions)

	// --- Instructions Sheet ---
	f.SetCellValue(importSheetInstructions, "A1", "Bulk Case Import")
	f.SetCellValue(importSheetInstructions, "A3", "Considerations:")
	f.SetCellValue(importSheetInstructions, "A4", "- Columns marked with * are required")
	f.SetCellValue(importSheetInstructions, "A5", "- Amounts must be positive numbers without thousand separators")
	f.SetCellValue(importSheetInstructions, "A6", "- Imported cases start in PENDING_ALLOCATION; never pre-assign a DCA")
	f.SetCellValue(importSheetInstructions, "A7", "- Priority is one of LOW, MEDIUM, HIGH, CRITICAL (defaults to MEDIUM)")
	f.SetCellValue(importSheetInstructions, "A8", "- Dates use the YYYY-MM-DD format")

	// List valid region codes
	f.SetCellValue(importSheetInstructions, "A10", "Valid region codes:")
	titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}})
	f.SetCellStyle(importSheetInstructions, "A10", "A10", titleStyle)

	var regions []models.Region
	exampleRegionCode := "US"
	if err := dbConn.Where("is_active = ?", true).Order("code ASC").Find(&regions).Error; err == nil {
		row := 11
		for _, r := range regions {
			f.SetCellValue(importSheetInstructions, fmt.Sprintf("A%d", row), fmt.Sprintf("%s - %s", r.Code, r.Name))
			row++
		}
		if len(regions) > 0 {
			exampleRegionCode = regions[0].Code
		}
	}

	mainTitleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	f.SetCellStyle(importSheetInstructions, "A1", "A1", mainTitleStyle)
	f.SetColWidth(importSheetInstructions, "A", "A", 80)

	// --- Cases Sheet ---
	f.NewSheet(importSheetCases)
	caseHeaders := []string{
		"Debtor Name*",       // A
		"Region Code*",       // B
		"Original Amount*",   // C
		"Outstanding Amount", // D
		"Currency",           // E
		"Priority",           // F
		"Risk Score",         // G
		"Customer Segment",   // H
		"SLA Due Date",       // I
		"Notes",              // J
	}
	for i, header := range caseHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(importSheetCases, cell, header)
	}
	f.SetColWidth(importSheetCases, "A", "J", 20)

	// Example row
	f.SetCellValue(importSheetCases, "A2", "Acme Logistics Ltd")
	f.SetCellValue(importSheetCases, "B2", exampleRegionCode)
	f.SetCellValue(importSheetCases, "C2", 12500.00)
	f.SetCellValue(importSheetCases, "D2", 12500.00)
	f.SetCellValue(importSheetCases, "E2", "USD")
	f.SetCellValue(importSheetCases, "F2", "MEDIUM")
	f.SetCellValue(importSheetCases, "G2", 45)
	f.SetCellValue(importSheetCases, "H2", "SME")
	f.SetCellValue(importSheetCases, "I2", time.Now().AddDate(0, 0, 30).Format("2006-01-02"))

	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellStyle(importSheetCases, "A1", "J1", headerStyle)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write excel buffer: %w", err)
	}

	return buf, nil
}

// AnalyzeExcelFile reads the file and returns how many case rows it contains
func AnalyzeExcelFile(file io.Reader) (int, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return 0, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer f.Close()

	if f.SheetCount < 2 {
		return 0, fmt.Errorf("invalid excel format: missing sheets")
	}

	sheets := f.GetSheetList()
	caseSheetName := sheets[1]

	rows, err := f.GetRows(caseSheetName)
	if err != nil {
		return 0, fmt.Errorf("failed to read cases sheet: %w", err)
	}

	totalRows := 0
	for i, row := range rows {
		if i == 0 {
			continue
		} // Header
		if len(row) > 0 && strings.TrimSpace(row[0]) != "" {
			totalRows++
		}
	}

	return totalRows, nil
}

// BulkCreateFromExcel parses the Excel file and creates cases. Non-global
// uploaders need a WRITE grant for each row's region, the same rule the
// single-create path enforces. Each created case is attributed to the
// case-import service in the audit log, carrying the uploading user in
// the details for traceability.
func BulkCreateFromExcel(dbConn *gorm.DB, cfg *config.Config, uploader *models.User, auditCtx AuditContext, file io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer f.Close()

	result := &ImportResult{
		Errors: []string{},
	}

	if f.SheetCount < 2 {
		return nil, fmt.Errorf("invalid excel format: missing sheets")
	}

	sheets := f.GetSheetList()
	caseSheetName := sheets[1]

	caseRows, err := f.GetRows(caseSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read cases sheet: %w", err)
	}

	// One grant check per region code, not per row.
	writableRegions := map[string]bool{}

	for i, row := range caseRows {
		if i == 0 {
			continue
		} // Header
		if len(row) < 3 {
			continue
		}

		debtorName := strings.TrimSpace(row[0])
		if debtorName == "" {
			continue
		}

		result.TotalProcessed++

		// Columns:
		// 0: DebtorName*, 1: RegionCode*, 2: OriginalAmount*, 3: OutstandingAmount,
		// 4: Currency, 5: Priority, 6: RiskScore, 7: CustomerSegment, 8: SLADueDate, 9: Notes

		regionCode := strings.ToUpper(strings.TrimSpace(row[1]))
		if regionCode == "" {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: region code is required", i+1))
			continue
		}

		if !models.IsGlobalRole(uploader.Role) {
			allowed, known := writableRegions[regionCode]
			if !known {
				var region models.Region
				err := dbConn.First(&region, "code = ? AND is_active = ?", regionCode, true).Error
				switch {
				case err == gorm.ErrRecordNotFound:
					// Unknown codes fall through so CreateCase reports them.
					writableRegions[regionCode] = true
					allowed = true
				case err != nil:
					return nil, fmt.Errorf("failed to fetch region: %w", err)
				default:
					access, err := HasRegionAccess(dbConn, uploader.ID, region.ID, models.AccessLevelWrite)
					if err != nil {
						return nil, err
					}
					allowed = access.Allowed
					writableRegions[regionCode] = allowed
					if !allowed {
						LogSecurityEvent(dbConn, cfg, auditCtx, "IMPORT_REGION_WRITE_BLOCKED",
							"Region", region.ID, map[string]interface{}{
								"region_code": region.Code,
								"reason":      access.Reason,
							})
					}
				}
			}
			if !allowed {
				result.FailedCount++
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: no write access to region %s", i+1, regionCode))
				continue
			}
		}

		originalAmount, err := parseImportAmount(row[2])
		if err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: invalid original amount %q", i+1, row[2]))
			continue
		}

		outstandingAmount := 0.0
		if len(row) > 3 && strings.TrimSpace(row[3]) != "" {
			outstandingAmount, err = parseImportAmount(row[3])
			if err != nil {
				result.FailedCount++
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: invalid outstanding amount %q", i+1, row[3]))
				continue
			}
		}

		currency := ""
		if len(row) > 4 {
			currency = strings.ToUpper(strings.TrimSpace(row[4]))
		}

		priority := ""
		if len(row) > 5 {
			priority = strings.ToUpper(strings.TrimSpace(row[5]))
		}

		var riskScore *float64
		if len(row) > 6 && strings.TrimSpace(row[6]) != "" {
			if v, err := parseImportAmount(row[6]); err == nil && v >= 0 && v <= 100 {
				riskScore = &v
			} else {
				result.FailedCount++
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: risk score must be a number between 0 and 100", i+1))
				continue
			}
		}

		var customerSegment *string
		if len(row) > 7 && strings.TrimSpace(row[7]) != "" {
			seg := strings.TrimSpace(row[7])
			customerSegment = &seg
		}

		var slaDueAt *time.Time
		if len(row) > 8 && strings.TrimSpace(row[8]) != "" {
			if t, err := time.Parse("2006-01-02", strings.TrimSpace(row[8])); err == nil {
				slaDueAt = &t
			}
		}

		var notes *string
		if len(row) > 9 && strings.TrimSpace(row[9]) != "" {
			n := strings.TrimSpace(row[9])
			notes = &n
		}

		newCase, err := CreateCase(dbConn, CreateCaseInput{
			DebtorName:        debtorName,
			RegionCode:        regionCode,
			OriginalAmount:    originalAmount,
			OutstandingAmount: outstandingAmount,
			Currency:          currency,
			Priority:          priority,
			RiskScore:         riskScore,
			CustomerSegment:   customerSegment,
			SLADueAt:          slaDueAt,
			Notes:             notes,
		})
		if err != nil {
			result.FailedCount++
			if domainErr, ok := AsDomainError(err); ok {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", i+1, domainErr.Message))
			} else {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: failed to save case: %v", i+1, err))
			}
			continue
		}

		LogSystemAction(dbConn, cfg, ServiceCaseImport, models.AuditActionImport,
			"Case", newCase.ID, newCase.CaseNumber,
			map[string]interface{}{
				"uploaded_by": uploader.ID,
				"row":         i + 1,
			})
		AppendTimelineEntry(dbConn, newCase.ID, models.TimelineEntryImport,
			fmt.Sprintf("Case created from bulk import row %d", i+1),
			models.ActorTypeSystem, nil, ServiceCaseImport)

		result.SuccessCount++
	}

	if result.FailedCount > 0 && result.SuccessCount == 0 {
		return result, fmt.Errorf("all rows failed")
	}

	return result, nil
}

func parseImportAmount(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	return strconv.ParseFloat(cleaned, 64)
}
