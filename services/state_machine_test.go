package services

import (
	"testing"

	"dca_flow_app_go/models"

	"github.com/stretchr/testify/assert"
)

func floatPtr(f float64) *float64 {
	return &f
}

func TestGetNextStatuses(t *testing.T) {
	next := GetNextStatuses(models.CaseStatusPendingAllocation)
	assert.ElementsMatch(t, []string{models.CaseStatusAllocated, models.CaseStatusClosed}, next)

	// Terminal statuses have no outgoing edges
	assert.Empty(t, GetNextStatuses(models.CaseStatusFullRecovery))
	assert.Empty(t, GetNextStatuses(models.CaseStatusWrittenOff))
	assert.Empty(t, GetNextStatuses(models.CaseStatusClosed))

	// Unknown status yields an empty set, not nil panic
	assert.Empty(t, GetNextStatuses("BOGUS"))
}

func TestGetNextStatusesReturnsCopy(t *testing.T) {
	next := GetNextStatuses(models.CaseStatusAllocated)
	next[0] = "MUTATED"

	again := GetNextStatuses(models.CaseStatusAllocated)
	assert.NotEqual(t, "MUTATED", again[0])
}

func TestValidateTransitionGraph(t *testing.T) {
	ctx := TransitionContext{UserRole: models.RoleFedexAdmin}

	// Legal hop
	result := ValidateTransition(models.CaseStatusAllocated, models.CaseStatusInProgress, ctx)
	assert.True(t, result.Valid)

	// Illegal hop: skipping straight from IN_PROGRESS to FULL_RECOVERY
	result = ValidateTransition(models.CaseStatusInProgress, models.CaseStatusFullRecovery, ctx)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "not allowed")
	assert.NotEmpty(t, result.AllowedNext)
}

func TestValidateTransitionTerminalIsFinal(t *testing.T) {
	ctx := TransitionContext{UserRole: models.RoleSuperAdmin}

	for _, terminal := range []string{
		models.CaseStatusFullRecovery,
		models.CaseStatusWrittenOff,
		models.CaseStatusClosed,
	} {
		result := ValidateTransition(terminal, models.CaseStatusInProgress, ctx)
		assert.False(t, result.Valid, "terminal status %s must not transition", terminal)
		assert.Contains(t, result.Reason, "terminal")
		assert.Empty(t, result.AllowedNext)
	}
}

func TestValidateTransitionUnknownStatus(t *testing.T) {
	result := ValidateTransition(models.CaseStatusAllocated, "NOT_A_STATUS", TransitionContext{UserRole: models.RoleSuperAdmin})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "unknown status")
}

func TestValidateTransitionRoleGates(t *testing.T) {
	// Agents cannot escalate
	result := ValidateTransition(models.CaseStatusInProgress, models.CaseStatusEscalated, TransitionContext{
		UserRole: models.RoleDCAAgent,
		Reason:   "customer threatening legal action",
	})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, models.RoleDCAAgent)

	// DCA managers can
	result = ValidateTransition(models.CaseStatusInProgress, models.CaseStatusEscalated, TransitionContext{
		UserRole: models.RoleDCAManager,
		Reason:   "customer threatening legal action",
	})
	assert.True(t, result.Valid)

	// Write-off is FedEx-management only
	result = ValidateTransition(models.CaseStatusInProgress, models.CaseStatusWrittenOff, TransitionContext{
		UserRole: models.RoleDCAAdmin,
	})
	assert.False(t, result.Valid)

	result = ValidateTransition(models.CaseStatusInProgress, models.CaseStatusWrittenOff, TransitionContext{
		UserRole: models.RoleFedexManager,
	})
	assert.True(t, result.Valid)
}

func TestValidateTransitionRecoveredAmountRequired(t *testing.T) {
	ctx := TransitionContext{UserRole: models.RoleDCAAgent}

	// An agent closing out a recovery without reporting the amount is
	// rejected even though the hop itself is legal.
	result := ValidateTransition(models.CaseStatusAllocated, models.CaseStatusFullRecovery, ctx)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "recovered amount")

	ctx.RecoveredAmount = floatPtr(0)
	result = ValidateTransition(models.CaseStatusAllocated, models.CaseStatusFullRecovery, ctx)
	assert.False(t, result.Valid)

	ctx.RecoveredAmount = floatPtr(1500.00)
	result = ValidateTransition(models.CaseStatusAllocated, models.CaseStatusFullRecovery, ctx)
	assert.True(t, result.Valid)
}

func TestValidateTransitionReasonRequired(t *testing.T) {
	ctx := TransitionContext{UserRole: models.RoleDCAAgent}

	result := ValidateTransition(models.CaseStatusInProgress, models.CaseStatusDisputed, ctx)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "reason")

	// Too short after trimming
	ctx.Reason = "   short  "
	result = ValidateTransition(models.CaseStatusInProgress, models.CaseStatusDisputed, ctx)
	assert.False(t, result.Valid)

	ctx.Reason = "debtor claims the invoice was already settled"
	result = ValidateTransition(models.CaseStatusInProgress, models.CaseStatusDisputed, ctx)
	assert.True(t, result.Valid)
}

func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, IsTerminalStatus(models.CaseStatusFullRecovery))
	assert.True(t, IsTerminalStatus(models.CaseStatusWrittenOff))
	assert.True(t, IsTerminalStatus(models.CaseStatusClosed))
	assert.False(t, IsTerminalStatus(models.CaseStatusPartialRecovery))
	assert.False(t, IsTerminalStatus(models.CaseStatusPendingAllocation))
}

func TestRoleEditableFields(t *testing.T) {
	// Agents get the narrow working set
	assert.True(t, RoleMayEditField(models.RoleDCAAgent, "status"))
	assert.True(t, RoleMayEditField(models.RoleDCAAgent, "recovered_amount"))
	assert.False(t, RoleMayEditField(models.RoleDCAAgent, "priority"))
	assert.False(t, RoleMayEditField(models.RoleDCAAgent, "vip_customer"))

	// Analysts may annotate, never move status
	assert.True(t, RoleMayEditField(models.RoleFedexAnalyst, "notes"))
	assert.False(t, RoleMayEditField(models.RoleFedexAnalyst, "status"))

	// No role may touch assignment or region fields
	for role := range roleEditableFields {
		assert.False(t, RoleMayEditField(role, "assigned_dca_id"), "role %s", role)
		assert.False(t, RoleMayEditField(role, "assigned_agent_id"), "role %s", role)
		assert.False(t, RoleMayEditField(role, "region_id"), "role %s", role)
	}

	// Unknown role edits nothing
	assert.Empty(t, AllowedFieldsForRole("INTERN"))
}

func TestIsSystemOnlyField(t *testing.T) {
	assert.True(t, IsSystemOnlyField("assigned_dca_id"))
	assert.True(t, IsSystemOnlyField("assigned_agent_id"))
	assert.False(t, IsSystemOnlyField("status"))
}
