package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sitebeam/construction-platform-iam/internal/authz"
	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
)

// ConfigurationError marks a grant that cannot be expressed against the
// declared schema, e.g. a company-scoped grant on a table without a company
// column. It is raised at generation time and must block deployment; it is
// never surfaced at query time.
type ConfigurationError struct {
	Table  string
	Role   domain.Role
	Action authz.Action
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("policy configuration error on %s (role %s, action %s): %s", e.Table, e.Role, e.Action, e.Detail)
}

// Branch is one role's contribution to a composed predicate.
type Branch struct {
	Role      domain.Role
	Condition authz.Condition
}

// Policy is the single composed predicate for one (table, op) pair. All
// applicable grants are OR-merged at definition time so the database
// evaluates exactly one policy per query, never a stack of them.
type Policy struct {
	Name     string
	Table    string
	Op       SQLOp
	Branches []Branch
}

// Allows interprets the composed predicate against a profile and row facts,
// using the same condition semantics as the application evaluator. This is
// what the consistency matrix exercises.
func (p Policy) Allows(profile domain.Profile, resource *authz.Resource) bool {
	if !profile.IsActive {
		return false
	}
	for _, branch := range p.Branches {
		if branch.Role != profile.Role {
			continue
		}
		if authz.ConditionHolds(branch.Condition, profile, resource) {
			return true
		}
	}
	return false
}

// Generator compiles the shared rule set into row-level policies.
type Generator struct {
	rules  *authz.RuleSet
	schema *Schema
}

// NewGenerator builds a generator from the rule set driving the evaluator and
// the table registry. Nil arguments fall back to the defaults.
func NewGenerator(rules *authz.RuleSet, schema *Schema) *Generator {
	if rules == nil {
		rules = authz.DefaultRuleSet()
	}
	if schema == nil {
		schema = DefaultSchema()
	}
	return &Generator{rules: rules, schema: schema}
}

// Build composes one policy per (table, op) pair that has at least one
// applicable grant. Grants whose condition cannot be expressed against the
// table produce a ConfigurationError instead of a silently broken predicate.
func (g *Generator) Build() ([]Policy, error) {
	if err := g.rules.Validate(); err != nil {
		return nil, fmt.Errorf("validate rule set: %w", err)
	}

	ops := []SQLOp{OpSelect, OpInsert, OpUpdate, OpDelete}

	var policies []Policy
	for _, table := range g.schema.Tables {
		for _, op := range ops {
			actions := g.schema.ActionsFor(table.Name, op)
			if len(actions) == 0 {
				continue
			}

			branches, err := g.composeBranches(table, actions)
			if err != nil {
				return nil, err
			}
			if len(branches) == 0 {
				continue
			}

			policies = append(policies, Policy{
				Name:     fmt.Sprintf("%s_%s_access", table.Name, strings.ToLower(string(op))),
				Table:    table.Name,
				Op:       op,
				Branches: branches,
			})
		}
	}

	return policies, nil
}

// composeBranches merges the grants of every role for the bound actions,
// deduplicating identical (role, condition) contributions.
func (g *Generator) composeBranches(table Table, actions []authz.Action) ([]Branch, error) {
	seen := make(map[string]bool)
	var branches []Branch

	for _, role := range g.rules.Roles {
		for _, action := range actions {
			for _, grant := range g.rules.GrantsFor(role, action) {
				if err := checkCondition(table, role, action, grant.Condition); err != nil {
					return nil, err
				}
				key := string(role) + "|" + string(grant.Condition)
				if seen[key] {
					continue
				}
				seen[key] = true
				branches = append(branches, Branch{Role: role, Condition: grant.Condition})
			}
		}
	}

	// A role granted CondAlways subsumes its own narrower branches.
	always := make(map[domain.Role]bool)
	for _, branch := range branches {
		if branch.Condition == authz.CondAlways {
			always[branch.Role] = true
		}
	}
	pruned := branches[:0]
	for _, branch := range branches {
		if branch.Condition != authz.CondAlways && always[branch.Role] {
			continue
		}
		pruned = append(pruned, branch)
	}

	sort.Slice(pruned, func(i, j int) bool {
		if pruned[i].Role != pruned[j].Role {
			return pruned[i].Role < pruned[j].Role
		}
		return pruned[i].Condition < pruned[j].Condition
	})

	return pruned, nil
}

func checkCondition(table Table, role domain.Role, action authz.Action, cond authz.Condition) error {
	switch cond {
	case authz.CondAlways:
		return nil
	case authz.CondAssigned:
		if table.AssignedColumn == "" {
			return &ConfigurationError{Table: table.Name, Role: role, Action: action, Detail: "assignment-scoped grant but table has no assignment column"}
		}
	case authz.CondOwner:
		if table.OwnerColumn == "" {
			return &ConfigurationError{Table: table.Name, Role: role, Action: action, Detail: "owner-scoped grant but table has no owner column"}
		}
	case authz.CondOwnCompany:
		if table.CompanyColumn == "" {
			return &ConfigurationError{Table: table.Name, Role: role, Action: action, Detail: "company-scoped grant but table has no company column"}
		}
	default:
		return &ConfigurationError{Table: table.Name, Role: role, Action: action, Detail: fmt.Sprintf("unknown condition %q", cond)}
	}
	return nil
}
