package authz

import (
	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
)

// Decision is the result of evaluating an action against a profile. It is
// never persisted; both the application layer and the generated database
// predicates must derive the same answer for the same inputs.
type Decision struct {
	Allow  bool
	Reason string
}

// Evaluator answers permission questions from a RuleSet. All methods are pure
// functions of their arguments: no I/O, no clock, so the same logic can be
// compiled into static database predicates.
type Evaluator struct {
	rules *RuleSet
}

// NewEvaluator constructs an evaluator. A nil rule set falls back to the
// default taxonomy.
func NewEvaluator(rules *RuleSet) *Evaluator {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	return &Evaluator{rules: rules}
}

// Rules exposes the underlying rule set, shared with policy generation.
func (e *Evaluator) Rules() *RuleSet {
	return e.rules
}

// Can reports whether the profile may perform the action on the resource.
func (e *Evaluator) Can(profile domain.Profile, action Action, resource *Resource) bool {
	return e.Decide(profile, action, resource).Allow
}

// Decide evaluates the action and explains the outcome. Explicit per-profile
// overrides win over role defaults; a deny override wins over everything
// (fail-closed). Inactive profiles are always denied.
func (e *Evaluator) Decide(profile domain.Profile, action Action, resource *Resource) Decision {
	if !profile.IsActive {
		return Decision{Allow: false, Reason: "profile inactive"}
	}

	if effect, ok := profile.HasOverride(string(action)); ok {
		if effect == domain.OverrideDeny {
			return Decision{Allow: false, Reason: "explicit deny override"}
		}
		return Decision{Allow: true, Reason: "explicit allow override"}
	}

	for _, grant := range e.rules.GrantsFor(profile.Role, action) {
		if ConditionHolds(grant.Condition, profile, resource) {
			return Decision{Allow: true, Reason: "role grant: " + string(grant.Condition)}
		}
	}

	return Decision{Allow: false, Reason: "no matching grant"}
}

// IsManagementRole reports whether the profile belongs to the privileged
// management set.
func (e *Evaluator) IsManagementRole(profile domain.Profile) bool {
	return profile.IsActive && e.rules.ManagementSet[profile.Role]
}

// HasCostVisibility reports whether the profile may see prices and costs.
func (e *Evaluator) HasCostVisibility(profile domain.Profile) bool {
	return profile.IsActive && e.rules.CostVisibility[profile.Role]
}

// ApprovalLimit returns the purchase approval cap for the profile, in whole
// currency units. Management roles are Unlimited; project managers are capped
// by seniority; every other role has no approval authority (zero).
func (e *Evaluator) ApprovalLimit(profile domain.Profile) int64 {
	if !profile.IsActive {
		return 0
	}
	if e.rules.ManagementSet[profile.Role] {
		return Unlimited
	}
	if profile.Role != domain.RoleProjectManager {
		return 0
	}
	switch profile.Seniority {
	case domain.SeniorityExecutive:
		return e.rules.Limits.ExecutivePM
	case domain.SenioritySenior:
		return e.rules.Limits.SeniorPM
	default:
		return e.rules.Limits.RegularPM
	}
}

// ConditionHolds interprets a grant condition against the supplied facts.
// Conditions that need facts deny when the resource is absent. The policy
// generator's predicate interpreter calls this too, so both enforcement
// layers share one interpretation.
func ConditionHolds(cond Condition, profile domain.Profile, resource *Resource) bool {
	switch cond {
	case CondAlways:
		return true
	case CondAssigned:
		return resource.AssignedTo(profile.PrincipalID)
	case CondOwner:
		return resource != nil && resource.OwnerID != "" && resource.OwnerID == profile.PrincipalID
	case CondOwnCompany:
		if resource == nil || profile.CompanyID == nil {
			return false
		}
		return resource.OwnerCompanyID != "" && resource.OwnerCompanyID == *profile.CompanyID
	default:
		return false
	}
}
