package policy

import (
	"errors"
	"strings"
	"testing"

	"github.com/sitebeam/construction-platform-iam/internal/authz"
	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
)

func TestGenerator_OnePolicyPerTableAndOp(t *testing.T) {
	gen := NewGenerator(nil, nil)

	policies, err := gen.Build()
	if err != nil {
		t.Fatalf("build policies: %v", err)
	}
	if len(policies) == 0 {
		t.Fatal("expected generated policies")
	}

	seen := make(map[string]int)
	for _, p := range policies {
		seen[p.Table+"|"+string(p.Op)]++
	}
	for key, count := range seen {
		if count != 1 {
			t.Fatalf("pair %s has %d policies, want exactly 1", key, count)
		}
	}
}

func TestGenerator_AlwaysBranchSubsumesNarrowerOnes(t *testing.T) {
	gen := NewGenerator(nil, nil)

	policies, err := gen.Build()
	if err != nil {
		t.Fatalf("build policies: %v", err)
	}

	for _, p := range policies {
		always := make(map[domain.Role]bool)
		for _, branch := range p.Branches {
			if branch.Condition == authz.CondAlways {
				always[branch.Role] = true
			}
		}
		for _, branch := range p.Branches {
			if branch.Condition != authz.CondAlways && always[branch.Role] {
				t.Fatalf("policy %s keeps redundant branch (%s, %s) next to an always grant", p.Name, branch.Role, branch.Condition)
			}
		}
	}
}

func TestGenerator_CompanyGrantWithoutColumnFailsAtBuildTime(t *testing.T) {
	rules := authz.DefaultRuleSet()
	// Misconfiguration: clients granted price reads, but the prices table has
	// no company column to scope them by.
	rules.Grants[domain.RoleClient] = append(rules.Grants[domain.RoleClient],
		authz.Grant{Action: authz.ActionScopePricesRead, Condition: authz.CondOwnCompany})

	gen := NewGenerator(rules, nil)

	_, err := gen.Build()
	if err == nil {
		t.Fatal("expected configuration error")
	}

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %T: %v", err, err)
	}
	if cfgErr.Table != "scope_item_prices" {
		t.Fatalf("error names table %s, want scope_item_prices", cfgErr.Table)
	}
}

func TestRender_IdentityResolvedViaScalarSubquery(t *testing.T) {
	gen := NewGenerator(nil, nil)

	policies, err := gen.Build()
	if err != nil {
		t.Fatalf("build policies: %v", err)
	}

	script, err := Render(DefaultSchema(), policies)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	// Every identity lookup must sit inside a scalar subquery so the planner
	// evaluates it once per statement, not per row.
	if strings.Contains(script, " app.current_principal_id() =") {
		t.Fatal("bare per-row call to app.current_principal_id() in rendered script")
	}
	if !strings.Contains(script, "(SELECT app.current_principal_id())") {
		t.Fatal("expected scalar-subquery identity resolution")
	}
	if !strings.Contains(script, "ALTER TABLE projects ENABLE ROW LEVEL SECURITY;") {
		t.Fatal("expected RLS enablement for projects")
	}
	if !strings.Contains(script, "DROP POLICY IF EXISTS projects_select_access ON projects;") {
		t.Fatal("expected idempotent drop before create")
	}
}

func TestRender_InsertUsesWithCheck(t *testing.T) {
	gen := NewGenerator(nil, nil)

	policies, err := gen.Build()
	if err != nil {
		t.Fatalf("build policies: %v", err)
	}

	var insert *Policy
	for i := range policies {
		if policies[i].Table == "documents" && policies[i].Op == OpInsert {
			insert = &policies[i]
			break
		}
	}
	if insert == nil {
		t.Fatal("no insert policy for documents")
	}

	sql, err := insert.SQL(DefaultSchema())
	if err != nil {
		t.Fatalf("render insert policy: %v", err)
	}
	if !strings.Contains(sql, "WITH CHECK") {
		t.Fatal("insert policy must use WITH CHECK")
	}
	if strings.Contains(sql, "USING") {
		t.Fatal("insert policy must not carry a USING clause")
	}
}
