package authz

import (
	"fmt"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
)

// Condition scopes a grant to a subset of rows. Each condition has both an
// in-process interpretation (evaluator.go) and a SQL rendering
// (internal/policy); the two are kept consistent by the shared matrix test.
type Condition string

const (
	// CondAlways grants the action on every row.
	CondAlways Condition = "always"
	// CondAssigned grants the action on rows whose assignment list contains
	// the principal.
	CondAssigned Condition = "assigned"
	// CondOwner grants the action on rows owned by the principal.
	CondOwner Condition = "owner"
	// CondOwnCompany grants the action on rows belonging to the principal's
	// company.
	CondOwnCompany Condition = "own_company"
)

// Grant couples an action with the condition under which a role may perform it.
type Grant struct {
	Action    Action
	Condition Condition
}

// ApprovalLimits carries the seniority-aware purchase approval caps, in whole
// currency units. Unlimited is the sentinel for roles without a cap.
type ApprovalLimits struct {
	RegularPM   int64
	SeniorPM    int64
	ExecutivePM int64
}

// Unlimited marks a role or seniority with no approval cap.
const Unlimited int64 = -1

// RuleSet is the single declarative source for authorization: the role list,
// the role->grant table, cost visibility, the management set, and approval
// limits. Both the evaluator and the row-level policy generator are derived
// from it, so the two enforcement layers cannot drift. Treated as
// configuration data: callers may build their own or start from DefaultRuleSet.
type RuleSet struct {
	Roles          []domain.Role
	Grants         map[domain.Role][]Grant
	ManagementSet  map[domain.Role]bool
	CostVisibility map[domain.Role]bool
	Limits         ApprovalLimits
}

// DefaultRuleSet returns the grant table for the current six-role taxonomy.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Roles: []domain.Role{
			domain.RoleAdmin,
			domain.RoleManagement,
			domain.RolePurchaseManager,
			domain.RoleTechnicalLead,
			domain.RoleProjectManager,
			domain.RoleClient,
		},
		Grants: map[domain.Role][]Grant{
			domain.RoleAdmin: allGrants(),
			domain.RoleManagement: {
				{ActionProjectsReadAll, CondAlways},
				{ActionProjectsCreate, CondAlways},
				{ActionProjectsUpdate, CondAlways},
				{ActionProjectsDelete, CondAlways},
				{ActionScopeRead, CondAlways},
				{ActionScopeUpdate, CondAlways},
				{ActionScopeApprove, CondAlways},
				{ActionScopePricesRead, CondAlways},
				{ActionTasksRead, CondAlways},
				{ActionTasksCreate, CondAlways},
				{ActionTasksUpdate, CondAlways},
				{ActionMilestonesRead, CondAlways},
				{ActionMilestonesUpdate, CondAlways},
				{ActionDocumentsRead, CondAlways},
				{ActionDocumentsUpload, CondAlways},
				{ActionDocumentsApprove, CondAlways},
				{ActionPurchasingRead, CondAlways},
				{ActionPurchasingCreate, CondAlways},
				{ActionPurchasingApprove, CondAlways},
				{ActionUsersImpersonate, CondAlways},
			},
			domain.RolePurchaseManager: {
				{ActionProjectsReadAll, CondAlways},
				{ActionScopeRead, CondAlways},
				{ActionScopePricesRead, CondAlways},
				{ActionTasksRead, CondAlways},
				{ActionMilestonesRead, CondAlways},
				{ActionDocumentsRead, CondAlways},
				{ActionPurchasingRead, CondAlways},
				{ActionPurchasingCreate, CondAlways},
				{ActionPurchasingApprove, CondAlways},
			},
			domain.RoleTechnicalLead: {
				{ActionProjectsReadAssigned, CondAssigned},
				{ActionScopeRead, CondAssigned},
				{ActionScopeUpdate, CondAssigned},
				{ActionScopeApprove, CondAssigned},
				{ActionTasksRead, CondAssigned},
				{ActionTasksCreate, CondAssigned},
				{ActionTasksUpdate, CondAssigned},
				{ActionMilestonesRead, CondAssigned},
				{ActionDocumentsRead, CondAssigned},
				{ActionDocumentsUpload, CondAssigned},
				{ActionDocumentsApprove, CondAssigned},
			},
			domain.RoleProjectManager: {
				{ActionProjectsReadAssigned, CondAssigned},
				{ActionProjectsUpdate, CondAssigned},
				{ActionScopeRead, CondAssigned},
				{ActionScopeUpdate, CondAssigned},
				{ActionScopeApprove, CondAssigned},
				{ActionScopePricesRead, CondAssigned},
				{ActionTasksRead, CondAssigned},
				{ActionTasksCreate, CondAssigned},
				{ActionTasksUpdate, CondAssigned},
				{ActionMilestonesRead, CondAssigned},
				{ActionMilestonesUpdate, CondAssigned},
				{ActionDocumentsRead, CondAssigned},
				{ActionDocumentsUpload, CondAssigned},
				{ActionPurchasingRead, CondAssigned},
				{ActionPurchasingCreate, CondAssigned},
				{ActionPurchasingApprove, CondAssigned},
			},
			domain.RoleClient: {
				{ActionProjectsReadAssigned, CondOwnCompany},
				{ActionScopeRead, CondOwnCompany},
				{ActionMilestonesRead, CondOwnCompany},
				{ActionDocumentsRead, CondOwnCompany},
			},
		},
		ManagementSet: map[domain.Role]bool{
			domain.RoleAdmin:      true,
			domain.RoleManagement: true,
		},
		CostVisibility: map[domain.Role]bool{
			domain.RoleAdmin:           true,
			domain.RoleManagement:      true,
			domain.RolePurchaseManager: true,
			domain.RoleProjectManager:  true,
		},
		Limits: ApprovalLimits{
			RegularPM:   5000,
			SeniorPM:    50000,
			ExecutivePM: Unlimited,
		},
	}
}

func allGrants() []Grant {
	actions := Actions()
	grants := make([]Grant, 0, len(actions))
	for _, action := range actions {
		grants = append(grants, Grant{Action: action, Condition: CondAlways})
	}
	return grants
}

// Validate checks the rule set for internal consistency: every granted role
// is in the role list, every action and condition is known. Returns a
// configuration error suitable for failing startup.
func (rs *RuleSet) Validate() error {
	if rs == nil {
		return fmt.Errorf("rule set is nil")
	}
	known := make(map[domain.Role]bool, len(rs.Roles))
	for _, role := range rs.Roles {
		known[role] = true
	}
	for role, grants := range rs.Grants {
		if !known[role] {
			return fmt.Errorf("grants declared for unknown role %q", role)
		}
		for _, grant := range grants {
			if _, ok := ParseAction(string(grant.Action)); !ok {
				return fmt.Errorf("role %q grants unknown action %q", role, grant.Action)
			}
			switch grant.Condition {
			case CondAlways, CondAssigned, CondOwner, CondOwnCompany:
			default:
				return fmt.Errorf("role %q action %q has unknown condition %q", role, grant.Action, grant.Condition)
			}
		}
	}
	for role := range rs.ManagementSet {
		if !known[role] {
			return fmt.Errorf("management set contains unknown role %q", role)
		}
	}
	for role := range rs.CostVisibility {
		if !known[role] {
			return fmt.Errorf("cost visibility set contains unknown role %q", role)
		}
	}
	return nil
}

// GrantsFor returns the grants a role holds for the given action.
func (rs *RuleSet) GrantsFor(role domain.Role, action Action) []Grant {
	var matched []Grant
	for _, grant := range rs.Grants[role] {
		if grant.Action == action {
			matched = append(matched, grant)
		}
	}
	return matched
}
