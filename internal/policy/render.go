package policy

import (
	"fmt"
	"strings"

	"github.com/sitebeam/construction-platform-iam/internal/authz"
)

// Preamble returns the helper functions the rendered policies call. Each one
// reads a request-scoped setting exactly once; every reference in a predicate
// is wrapped in a scalar subquery so the planner evaluates the lookup once
// per statement instead of once per row.
func Preamble() string {
	return strings.TrimSpace(`
CREATE SCHEMA IF NOT EXISTS app;

CREATE OR REPLACE FUNCTION app.current_principal_id() RETURNS uuid
LANGUAGE sql STABLE AS $$
  SELECT NULLIF(current_setting('app.principal_id', true), '')::uuid
$$;

CREATE OR REPLACE FUNCTION app.current_role_name() RETURNS text
LANGUAGE sql STABLE AS $$
  SELECT NULLIF(current_setting('app.role', true), '')
$$;

CREATE OR REPLACE FUNCTION app.current_company_id() RETURNS uuid
LANGUAGE sql STABLE AS $$
  SELECT NULLIF(current_setting('app.company_id', true), '')::uuid
$$;
`) + "\n"
}

// SQL renders the policy as executable DDL. The previous policy of the same
// name is dropped first so regeneration is idempotent.
func (p Policy) SQL(schema *Schema) (string, error) {
	table, ok := schema.TableByName(p.Table)
	if !ok {
		return "", fmt.Errorf("render policy %s: unknown table %s", p.Name, p.Table)
	}

	expr, err := renderExpr(table, p.Branches)
	if err != nil {
		return "", fmt.Errorf("render policy %s: %w", p.Name, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "DROP POLICY IF EXISTS %s ON %s;\n", p.Name, p.Table)
	fmt.Fprintf(&b, "CREATE POLICY %s ON %s\n  FOR %s\n", p.Name, p.Table, p.Op)

	switch p.Op {
	case OpInsert:
		fmt.Fprintf(&b, "  WITH CHECK (%s);\n", expr)
	case OpUpdate:
		fmt.Fprintf(&b, "  USING (%s)\n  WITH CHECK (%s);\n", expr, expr)
	default:
		fmt.Fprintf(&b, "  USING (%s);\n", expr)
	}

	return b.String(), nil
}

// Render emits the full policy script: preamble, RLS enablement, and one
// composed policy per (table, op) pair.
func Render(schema *Schema, policies []Policy) (string, error) {
	var b strings.Builder
	b.WriteString(Preamble())
	b.WriteString("\n")

	enabled := make(map[string]bool)
	for _, p := range policies {
		if enabled[p.Table] {
			continue
		}
		enabled[p.Table] = true
		fmt.Fprintf(&b, "ALTER TABLE %s ENABLE ROW LEVEL SECURITY;\n", p.Table)
	}
	b.WriteString("\n")

	for _, p := range policies {
		sql, err := p.SQL(schema)
		if err != nil {
			return "", err
		}
		b.WriteString(sql)
		b.WriteString("\n")
	}

	return b.String(), nil
}

func renderExpr(table Table, branches []Branch) (string, error) {
	if len(branches) == 0 {
		return "false", nil
	}

	parts := make([]string, 0, len(branches))
	for _, branch := range branches {
		roleTest := fmt.Sprintf("(SELECT app.current_role_name()) = '%s'", branch.Role)

		switch branch.Condition {
		case authz.CondAlways:
			parts = append(parts, fmt.Sprintf("(%s)", roleTest))
		case authz.CondAssigned:
			parts = append(parts, fmt.Sprintf("(%s AND (SELECT app.current_principal_id()) = ANY (%s))", roleTest, table.AssignedColumn))
		case authz.CondOwner:
			parts = append(parts, fmt.Sprintf("(%s AND %s = (SELECT app.current_principal_id()))", roleTest, table.OwnerColumn))
		case authz.CondOwnCompany:
			parts = append(parts, fmt.Sprintf("(%s AND %s = (SELECT app.current_company_id()))", roleTest, table.CompanyColumn))
		default:
			return "", fmt.Errorf("unknown condition %q", branch.Condition)
		}
	}

	return strings.Join(parts, "\n    OR "), nil
}
