package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"dca_flow_app_go/config"
	"dca_flow_app_go/models"

	"gorm.io/gorm"
)

// Scoring weights for DCA selection. The weighted factors are the
// region-scoped recovery rate, SLA compliance, available capacity,
// overall performance and allocation priority.
const (
	weightRecoveryRate      = 0.30
	weightSLACompliance     = 0.25
	weightAvailableCapacity = 0.20
	weightPerformance       = 0.15
	weightPriority          = 0.10

	bonusPrimary     = 5.0
	bonusExperienced = 5.0 // large outstanding amount + proven in-region volume
	bonusHighRisk    = 3.0 // risky case + strong in-region SLA record

	largeOutstandingThreshold = 100000.0
	experiencedCaseThreshold  = 50
	highRiskScoreThreshold    = 70.0
	highRiskSLAThreshold      = 90.0
)

// AllocationInput is the case snapshot the engine scores against
type AllocationInput struct {
	CaseID            string
	RegionID          string
	OutstandingAmount float64
	Priority          string
	RiskScore         *float64
	CustomerSegment   *string
}

// AllocationResult names the selected DCA and explains the choice
type AllocationResult struct {
	DCA        models.DCA                 `json:"dca"`
	Assignment models.RegionDCAAssignment `json:"assignment"`
	Score      float64                    `json:"score"`
	Reason     string                     `json:"reason"`
}

// ScoringFactors is the immutable snapshot a single candidate is scored
// from, separated out so the formula is unit-testable without data
// access.
type ScoringFactors struct {
	RecoveryRate         float64
	SLACompliance        float64
	AvailableCapacityPct float64
	PerformanceScore     float64
	AllocationPriority   int
	IsPrimary            bool
	CasesHandled         int
	OutstandingAmount    float64
	RiskScore            float64
}

// ScoreCandidate computes the weighted allocation score for one
// candidate. Pure function of its inputs.
func ScoreCandidate(f ScoringFactors) float64 {
	score := f.RecoveryRate*weightRecoveryRate +
		f.SLACompliance*weightSLACompliance +
		f.AvailableCapacityPct*weightAvailableCapacity +
		f.PerformanceScore*weightPerformance +
		(100.0-float64(f.AllocationPriority)*10.0)*weightPriority

	if f.IsPrimary {
		score += bonusPrimary
	}
	if f.OutstandingAmount > largeOutstandingThreshold && f.CasesHandled > experiencedCaseThreshold {
		score += bonusExperienced
	}
	if f.RiskScore > highRiskScoreThreshold && f.SLACompliance > highRiskSLAThreshold {
		score += bonusHighRisk
	}
	return score
}

// AllocateDCA selects the best eligible DCA for a case. Deterministic:
// given the same snapshot of assignments the same DCA and score come
// back. Ties break in favour of the first candidate at the maximum.
func AllocateDCA(db *gorm.DB, input AllocationInput) (*AllocationResult, error) {
	// Step 1: eligibility - active, non-suspended assignments whose DCA
	// is itself active.
	var assignments []models.RegionDCAAssignment
	err := db.Preload("DCA").
		Joins("JOIN dcas ON dcas.id = region_dca_assignments.dca_id").
		Where("region_dca_assignments.region_id = ?", input.RegionID).
		Where("region_dca_assignments.is_active = ? AND region_dca_assignments.is_suspended = ?", true, false).
		Where("dcas.status = ?", models.DCAStatusActive).
		Order("region_dca_assignments.allocation_priority ASC, region_dca_assignments.created_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch region assignments: %w", err)
	}
	if len(assignments) == 0 {
		return nil, NewDomainError(ErrCodeNoEligibleDCA, "no eligible DCA serves this region")
	}

	// Step 2: capacity filter
	var candidates []models.RegionDCAAssignment
	for _, a := range assignments {
		effective := a.EffectiveCapacity(a.DCA.CapacityLimit)
		if a.DCA.CapacityUsed < effective {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return nil, NewDomainError(ErrCodeNoCapacity, "all eligible DCAs for this region are at capacity")
	}

	// Step 3: scoring
	riskScore := 0.0
	if input.RiskScore != nil {
		riskScore = *input.RiskScore
	}

	var best *models.RegionDCAAssignment
	var bestScore float64
	var bestFactors ScoringFactors
	for i := range candidates {
		a := &candidates[i]
		effective := a.EffectiveCapacity(a.DCA.CapacityLimit)
		availablePct := 0.0
		if effective > 0 {
			availablePct = float64(effective-a.DCA.CapacityUsed) / float64(effective) * 100.0
		}

		factors := ScoringFactors{
			RecoveryRate:         a.EffectiveRecoveryRate(a.DCA.RecoveryRate),
			SLACompliance:        a.EffectiveSLACompliance(a.DCA.SLAComplianceRate),
			AvailableCapacityPct: availablePct,
			PerformanceScore:     a.DCA.PerformanceScore,
			AllocationPriority:   a.AllocationPriority,
			IsPrimary:            a.IsPrimary,
			CasesHandled:         a.CasesHandled,
			OutstandingAmount:    input.OutstandingAmount,
			RiskScore:            riskScore,
		}
		score := ScoreCandidate(factors)

		// Strictly-greater keeps the first candidate on ties
		if best == nil || score > bestScore {
			best = a
			bestScore = score
			bestFactors = factors
		}
	}

	reason := buildAllocationReason(best, bestFactors, bestScore)
	log.Printf("[ALLOCATION] Case %s -> DCA %s (score %.2f)", input.CaseID, best.DCA.Name, bestScore)

	return &AllocationResult{
		DCA:        best.DCA,
		Assignment: *best,
		Score:      bestScore,
		Reason:     reason,
	}, nil
}

// buildAllocationReason assembles the human-readable explanation shown
// on the case timeline and in the audit trail
func buildAllocationReason(a *models.RegionDCAAssignment, f ScoringFactors, score float64) string {
	parts := []string{}
	if a.IsPrimary {
		parts = append(parts, "primary DCA for region")
	}
	parts = append(parts,
		fmt.Sprintf("recovery rate %.1f%%", f.RecoveryRate),
		fmt.Sprintf("SLA compliance %.1f%%", f.SLACompliance),
		fmt.Sprintf("available capacity %.0f%%", f.AvailableCapacityPct),
	)
	return fmt.Sprintf("Selected %s: %s (score %.2f)", a.DCA.Name, strings.Join(parts, ", "), score)
}

// ApplyAllocation runs the engine for a pending case and persists the
// result. This is the only code path in the system that writes the
// case's assignment fields; the write is attributed to the allocation
// engine service in the audit trail.
func ApplyAllocation(db *gorm.DB, cfg *config.Config, caseID string) (*AllocationResult, error) {
	var caseRecord models.Case
	if err := db.First(&caseRecord, "id = ?", caseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewDomainError(ErrCodeNotFound, "case not found")
		}
		return nil, fmt.Errorf("failed to fetch case: %w", err)
	}

	if caseRecord.Status != models.CaseStatusPendingAllocation {
		return nil, NewDomainError(ErrCodeInvalidStateTransition,
			fmt.Sprintf("case is %s, only PENDING_ALLOCATION cases can be allocated", caseRecord.Status))
	}
	if !caseRecord.HasRegion() {
		return nil, NewDomainError(ErrCodeValidation, "case has no region, cannot allocate")
	}

	result, err := AllocateDCA(db, AllocationInput{
		CaseID:            caseRecord.ID,
		RegionID:          *caseRecord.RegionID,
		OutstandingAmount: caseRecord.OutstandingAmount,
		Priority:          caseRecord.Priority,
		RiskScore:         caseRecord.RiskScore,
		CustomerSegment:   caseRecord.CustomerSegment,
	})
	if err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Case{}).
			Where("id = ?", caseRecord.ID).
			Updates(map[string]interface{}{
				"assigned_dca_id": result.DCA.ID,
				"status":          models.CaseStatusAllocated,
			}).Error; err != nil {
			return fmt.Errorf("failed to assign case: %w", err)
		}

		if err := tx.Model(&models.DCA{}).
			Where("id = ?", result.DCA.ID).
			UpdateColumn("capacity_used", gorm.Expr("capacity_used + 1")).Error; err != nil {
			return fmt.Errorf("failed to increment DCA capacity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	LogSystemAction(db, cfg, ServiceAllocationEngine, models.AuditActionAllocate,
		"Case", caseRecord.ID, caseRecord.CaseNumber,
		map[string]interface{}{
			"dca_id":   result.DCA.ID,
			"dca_name": result.DCA.Name,
			"score":    result.Score,
			"reason":   result.Reason,
		})

	AppendTimelineEntry(db, caseRecord.ID, models.TimelineEntryAllocation, result.Reason,
		models.ActorTypeSystem, nil, ServiceAllocationEngine)

	return result, nil
}

// performanceUpdateRetries bounds the optimistic retry loop below
const performanceUpdateRetries = 5

// UpdateRegionPerformance folds one closed case into the region-scoped
// rolling metrics using incremental (online) averages. The write is
// conditioned on the cases_handled counter the metrics were computed
// from, so two concurrent closures for the same DCA/region pair cannot
// lose updates; the loser recomputes and retries.
func UpdateRegionPerformance(
	db *gorm.DB,
	regionID, dcaID string,
	recovered bool,
	slaMet bool,
	recoveredAmount float64,
	recoveryDays float64,
) error {
	recoveredOutcome := 0.0
	if recovered {
		recoveredOutcome = 100.0
	}
	slaOutcome := 0.0
	if slaMet {
		slaOutcome = 100.0
	}

	for attempt := 0; attempt < performanceUpdateRetries; attempt++ {
		var assignment models.RegionDCAAssignment
		err := db.Where("region_id = ? AND dca_id = ?", regionID, dcaID).
			First(&assignment).Error
		if err != nil {
			return fmt.Errorf("failed to fetch region assignment: %w", err)
		}

		n := float64(assignment.CasesHandled + 1)

		updates := map[string]interface{}{
			"cases_handled":       assignment.CasesHandled + 1,
			"recovery_rate":       incrementalAverage(assignment.EffectiveRecoveryRate(0), n, recoveredOutcome),
			"sla_compliance_rate": incrementalAverage(assignment.EffectiveSLACompliance(0), n, slaOutcome),
			"avg_recovery_days":   incrementalAverage(assignment.AvgRecoveryDays, n, recoveryDays),
			"amount_recovered":    assignment.AmountRecovered + recoveredAmount,
		}

		result := db.Model(&models.RegionDCAAssignment{}).
			Where("id = ? AND cases_handled = ?", assignment.ID, assignment.CasesHandled).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update region performance: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			return nil
		}
	}
	return fmt.Errorf("region performance update for dca %s in region %s kept conflicting", dcaID, regionID)
}

// incrementalAverage folds one new outcome into a running mean of n
// samples: newRate = (oldRate*(n-1) + outcome) / n
func incrementalAverage(oldRate, n, outcome float64) float64 {
	if n <= 1 {
		return outcome
	}
	return (oldRate*(n-1) + outcome) / n
}

// ReleaseDCACapacity frees one capacity slot when a case leaves a DCA's
// book (closure or write-off). Floor at zero.
func ReleaseDCACapacity(db *gorm.DB, dcaID string) error {
	return db.Model(&models.DCA{}).
		Where("id = ? AND capacity_used > 0", dcaID).
		UpdateColumn("capacity_used", gorm.Expr("capacity_used - 1")).Error
}

// RecoveryDaysForCase computes the closure lag used for rolling
// averages
func RecoveryDaysForCase(openedAt, closedAt time.Time) float64 {
	return closedAt.Sub(openedAt).Hours() / 24.0
}
