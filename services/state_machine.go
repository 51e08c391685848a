package services

import (
	"fmt"
	"strings"

	"dca_flow_app_go/models"
)

// MinTransitionReasonLength is the minimum reason length required when
// moving a case into DISPUTED or ESCALATED.
const MinTransitionReasonLength = 10

// caseTransitions is the authoritative directed graph of legal status
// transitions. Terminal states have no outgoing edges.
var caseTransitions = map[string][]string{
	models.CaseStatusPendingAllocation: {
		models.CaseStatusAllocated,
		models.CaseStatusClosed,
	},
	models.CaseStatusAllocated: {
		models.CaseStatusInProgress,
		models.CaseStatusCustomerContacted,
		models.CaseStatusDisputed,
		models.CaseStatusEscalated,
		models.CaseStatusFullRecovery,
		models.CaseStatusWrittenOff,
	},
	models.CaseStatusInProgress: {
		models.CaseStatusCustomerContacted,
		models.CaseStatusDisputed,
		models.CaseStatusEscalated,
		models.CaseStatusWrittenOff,
	},
	models.CaseStatusCustomerContacted: {
		models.CaseStatusPaymentPromised,
		models.CaseStatusPartialPayment,
		models.CaseStatusDisputed,
		models.CaseStatusEscalated,
	},
	models.CaseStatusPaymentPromised: {
		models.CaseStatusPartialPayment,
		models.CaseStatusFullRecovery,
		models.CaseStatusDisputed,
		models.CaseStatusEscalated,
	},
	models.CaseStatusPartialPayment: {
		models.CaseStatusPaymentPromised,
		models.CaseStatusPartialRecovery,
		models.CaseStatusFullRecovery,
		models.CaseStatusDisputed,
		models.CaseStatusEscalated,
	},
	models.CaseStatusDisputed: {
		models.CaseStatusInProgress,
		models.CaseStatusEscalated,
		models.CaseStatusWrittenOff,
		models.CaseStatusClosed,
	},
	models.CaseStatusEscalated: {
		models.CaseStatusInProgress,
		models.CaseStatusPartialRecovery,
		models.CaseStatusFullRecovery,
		models.CaseStatusWrittenOff,
		models.CaseStatusClosed,
	},
	models.CaseStatusPartialRecovery: {
		models.CaseStatusFullRecovery,
		models.CaseStatusClosed,
	},
	models.CaseStatusFullRecovery: {},
	models.CaseStatusWrittenOff:   {},
	models.CaseStatusClosed:       {},
}

// transitionRoleGates restricts who may move a case INTO a given status.
// A status absent from this table is open to every authenticated role.
var transitionRoleGates = map[string][]string{
	models.CaseStatusEscalated: {
		models.RoleSuperAdmin,
		models.RoleFedexAdmin,
		models.RoleFedexManager,
		models.RoleDCAAdmin,
		models.RoleDCAManager,
	},
	models.CaseStatusWrittenOff: {
		models.RoleSuperAdmin,
		models.RoleFedexAdmin,
		models.RoleFedexManager,
	},
	models.CaseStatusClosed: {
		models.RoleSuperAdmin,
		models.RoleFedexAdmin,
		models.RoleFedexManager,
	},
}

// SystemOnlyCaseFields may only be written by the allocation engine's
// own persistence path. Human-originated update payloads carrying any of
// these keys are rejected outright and audited at CRITICAL severity.
var SystemOnlyCaseFields = []string{"assigned_dca_id", "assigned_agent_id"}

// roleEditableFields is the single permission table consulted by both
// the update pipeline and the handlers: role -> mutable case fields
// (JSON keys). Assignment and region fields appear in no role's set.
var roleEditableFields = map[string][]string{
	models.RoleSuperAdmin: {
		"status", "notes", "recovered_amount", "outstanding_amount", "priority",
		"is_disputed", "dispute_reason", "high_priority_flag", "vip_customer",
		"escalated_by_manager", "escalation_reason", "closure_reason",
		"debtor_name", "currency", "customer_segment", "risk_score",
	},
	models.RoleFedexAdmin: {
		"status", "notes", "recovered_amount", "outstanding_amount", "priority",
		"is_disputed", "dispute_reason", "high_priority_flag", "vip_customer",
		"escalated_by_manager", "escalation_reason", "closure_reason",
		"debtor_name", "currency", "customer_segment", "risk_score",
	},
	models.RoleFedexManager: {
		"status", "notes", "recovered_amount", "outstanding_amount", "priority",
		"is_disputed", "dispute_reason", "high_priority_flag", "vip_customer",
		"escalated_by_manager", "escalation_reason", "closure_reason",
	},
	models.RoleFedexAnalyst: {
		"notes", "priority",
	},
	models.RoleDCAAdmin: {
		"status", "notes", "recovered_amount", "is_disputed", "dispute_reason",
		"escalation_reason",
	},
	models.RoleDCAManager: {
		"status", "notes", "recovered_amount", "is_disputed", "dispute_reason",
		"escalation_reason",
	},
	models.RoleDCAAgent: {
		"status", "notes", "recovered_amount",
	},
}

// TransitionContext carries the request context a transition is
// validated against. Validation is pure: no I/O happens here.
type TransitionContext struct {
	UserID          string
	UserRole        string
	Reason          string
	RecoveredAmount *float64
}

// TransitionResult is the structured outcome of a transition validation.
// On rejection, AllowedNext lets the caller render actionable feedback
// instead of a generic failure banner.
type TransitionResult struct {
	Valid       bool     `json:"valid"`
	Reason      string   `json:"reason,omitempty"`
	AllowedNext []string `json:"allowed_next,omitempty"`
}

// GetNextStatuses returns the statuses reachable in one hop from
// current. Terminal or unknown statuses yield an empty set.
func GetNextStatuses(current string) []string {
	next, ok := caseTransitions[current]
	if !ok {
		return []string{}
	}
	out := make([]string, len(next))
	copy(out, next)
	return out
}

// IsTerminalStatus reports whether the status closes the case
func IsTerminalStatus(status string) bool {
	switch status {
	case models.CaseStatusFullRecovery, models.CaseStatusWrittenOff, models.CaseStatusClosed:
		return true
	}
	return false
}

// requiresRecoveredAmount reports whether entering the status needs a
// positive recovered amount
func requiresRecoveredAmount(status string) bool {
	return status == models.CaseStatusFullRecovery || status == models.CaseStatusPartialRecovery
}

// requiresReason reports whether entering the status needs a reason
func requiresReason(status string) bool {
	return status == models.CaseStatusDisputed || status == models.CaseStatusEscalated
}

// ValidateTransition validates a requested status change against the
// transition graph, the role-gate table and the business rules for the
// target status. It never mutates anything.
func ValidateTransition(current, requested string, ctx TransitionContext) TransitionResult {
	allowed := GetNextStatuses(current)

	if !models.IsValidCaseStatus(requested) {
		return TransitionResult{
			Valid:       false,
			Reason:      fmt.Sprintf("unknown status %q", requested),
			AllowedNext: allowed,
		}
	}

	if IsTerminalStatus(current) {
		return TransitionResult{
			Valid:       false,
			Reason:      fmt.Sprintf("case is in terminal status %s and cannot change", current),
			AllowedNext: []string{},
		}
	}

	inGraph := false
	for _, s := range allowed {
		if s == requested {
			inGraph = true
			break
		}
	}
	if !inGraph {
		return TransitionResult{
			Valid:       false,
			Reason:      fmt.Sprintf("transition %s -> %s is not allowed", current, requested),
			AllowedNext: allowed,
		}
	}

	if gate, gated := transitionRoleGates[requested]; gated {
		permitted := false
		for _, role := range gate {
			if role == ctx.UserRole {
				permitted = true
				break
			}
		}
		if !permitted {
			return TransitionResult{
				Valid:       false,
				Reason:      fmt.Sprintf("role %s may not move a case into %s", ctx.UserRole, requested),
				AllowedNext: allowed,
			}
		}
	}

	if requiresRecoveredAmount(requested) {
		if ctx.RecoveredAmount == nil || *ctx.RecoveredAmount <= 0 {
			return TransitionResult{
				Valid:       false,
				Reason:      fmt.Sprintf("a recovered amount greater than zero is required to enter %s", requested),
				AllowedNext: allowed,
			}
		}
	}

	if requiresReason(requested) {
		if len(strings.TrimSpace(ctx.Reason)) < MinTransitionReasonLength {
			return TransitionResult{
				Valid:       false,
				Reason:      fmt.Sprintf("a reason of at least %d characters is required to enter %s", MinTransitionReasonLength, requested),
				AllowedNext: allowed,
			}
		}
	}

	return TransitionResult{Valid: true, AllowedNext: allowed}
}

// AllowedFieldsForRole returns the set of case fields the role may
// mutate. The returned slice is a copy.
func AllowedFieldsForRole(role string) []string {
	fields, ok := roleEditableFields[role]
	if !ok {
		return []string{}
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// RoleMayEditField checks a single field against the permission table
func RoleMayEditField(role, field string) bool {
	for _, f := range roleEditableFields[role] {
		if f == field {
			return true
		}
	}
	return false
}

// IsSystemOnlyField checks whether the field may only be written by the
// allocation engine
func IsSystemOnlyField(field string) bool {
	for _, f := range SystemOnlyCaseFields {
		if f == field {
			return true
		}
	}
	return false
}
