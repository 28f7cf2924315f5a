package policy

import (
	"github.com/sitebeam/construction-platform-iam/internal/authz"
)

// SQLOp is the database-side action a policy attaches to.
type SQLOp string

const (
	OpSelect SQLOp = "SELECT"
	OpInsert SQLOp = "INSERT"
	OpUpdate SQLOp = "UPDATE"
	OpDelete SQLOp = "DELETE"
)

// Table declares the ownership-fact columns a protected table carries. A
// grant condition that needs a column the table lacks is rejected at
// generation time; nothing is discovered at query time.
type Table struct {
	Name string
	// OwnerColumn holds the owning principal id (empty when absent).
	OwnerColumn string
	// AssignedColumn holds a uuid[] of assigned principal ids.
	AssignedColumn string
	// CompanyColumn holds the owning company id.
	CompanyColumn string
}

// Binding attaches an application action to a (table, op) pair. Several
// actions may bind to the same pair; their grants merge into the single
// composed predicate for that pair.
type Binding struct {
	Action authz.Action
	Table  string
	Op     SQLOp
}

// Schema is the registry of protected tables and the action bindings that
// map the evaluator's action space onto them. Actions with no binding are
// application-layer only (impersonation has no table).
type Schema struct {
	Tables   []Table
	Bindings []Binding
}

// DefaultSchema mirrors the platform tables the permission model protects.
func DefaultSchema() *Schema {
	return &Schema{
		Tables: []Table{
			{Name: "projects", OwnerColumn: "owner_id", AssignedColumn: "assigned_user_ids", CompanyColumn: "client_company_id"},
			{Name: "scope_items", AssignedColumn: "assigned_user_ids", CompanyColumn: "client_company_id"},
			// Prices deliberately carry no company column: clients must never
			// see cost data even through a misconfigured grant.
			{Name: "scope_item_prices", AssignedColumn: "assigned_user_ids"},
			{Name: "tasks", OwnerColumn: "created_by", AssignedColumn: "assigned_user_ids", CompanyColumn: "client_company_id"},
			{Name: "milestones", AssignedColumn: "assigned_user_ids", CompanyColumn: "client_company_id"},
			{Name: "documents", OwnerColumn: "uploaded_by", AssignedColumn: "assigned_user_ids", CompanyColumn: "client_company_id"},
			{Name: "purchase_orders", OwnerColumn: "requested_by", AssignedColumn: "assigned_user_ids"},
			{Name: "profiles", OwnerColumn: "principal_id"},
		},
		Bindings: []Binding{
			{authz.ActionProjectsReadAll, "projects", OpSelect},
			{authz.ActionProjectsReadAssigned, "projects", OpSelect},
			{authz.ActionProjectsCreate, "projects", OpInsert},
			{authz.ActionProjectsUpdate, "projects", OpUpdate},
			{authz.ActionProjectsDelete, "projects", OpDelete},
			{authz.ActionScopeRead, "scope_items", OpSelect},
			{authz.ActionScopeUpdate, "scope_items", OpUpdate},
			{authz.ActionScopeApprove, "scope_items", OpUpdate},
			{authz.ActionScopePricesRead, "scope_item_prices", OpSelect},
			{authz.ActionTasksRead, "tasks", OpSelect},
			{authz.ActionTasksCreate, "tasks", OpInsert},
			{authz.ActionTasksUpdate, "tasks", OpUpdate},
			{authz.ActionMilestonesRead, "milestones", OpSelect},
			{authz.ActionMilestonesUpdate, "milestones", OpUpdate},
			{authz.ActionDocumentsRead, "documents", OpSelect},
			{authz.ActionDocumentsUpload, "documents", OpInsert},
			{authz.ActionDocumentsApprove, "documents", OpUpdate},
			{authz.ActionPurchasingRead, "purchase_orders", OpSelect},
			{authz.ActionPurchasingCreate, "purchase_orders", OpInsert},
			{authz.ActionPurchasingApprove, "purchase_orders", OpUpdate},
			{authz.ActionUsersManage, "profiles", OpSelect},
			{authz.ActionUsersManage, "profiles", OpInsert},
			{authz.ActionUsersManage, "profiles", OpUpdate},
			{authz.ActionUsersManage, "profiles", OpDelete},
		},
	}
}

// TableByName looks a table up in the registry.
func (s *Schema) TableByName(name string) (Table, bool) {
	for _, table := range s.Tables {
		if table.Name == name {
			return table, true
		}
	}
	return Table{}, false
}

// ActionsFor returns the actions bound to a (table, op) pair.
func (s *Schema) ActionsFor(table string, op SQLOp) []authz.Action {
	var actions []authz.Action
	for _, binding := range s.Bindings {
		if binding.Table == table && binding.Op == op {
			actions = append(actions, binding.Action)
		}
	}
	return actions
}

// BindingsFor returns the (table, op) pairs an action maps to.
func (s *Schema) BindingsFor(action authz.Action) []Binding {
	var matched []Binding
	for _, binding := range s.Bindings {
		if binding.Action == action {
			matched = append(matched, binding)
		}
	}
	return matched
}
