package authz

// Action names a permission-checked operation. The set is closed: handlers
// and policy generation both refer to these constants, so a typo fails to
// compile instead of silently denying.
type Action string

const (
	ActionProjectsReadAll      Action = "projects.read.all"
	ActionProjectsReadAssigned Action = "projects.read.assigned"
	ActionProjectsCreate       Action = "projects.create"
	ActionProjectsUpdate       Action = "projects.update"
	ActionProjectsDelete       Action = "projects.delete"

	ActionScopeRead       Action = "scope.read"
	ActionScopeUpdate     Action = "scope.update"
	ActionScopeApprove    Action = "scope.approve"
	ActionScopePricesRead Action = "scope.prices.read"

	ActionTasksRead   Action = "tasks.read"
	ActionTasksCreate Action = "tasks.create"
	ActionTasksUpdate Action = "tasks.update"

	ActionMilestonesRead   Action = "milestones.read"
	ActionMilestonesUpdate Action = "milestones.update"

	ActionDocumentsRead    Action = "documents.read"
	ActionDocumentsUpload  Action = "documents.upload"
	ActionDocumentsApprove Action = "documents.approve"

	ActionPurchasingRead    Action = "purchasing.read"
	ActionPurchasingCreate  Action = "purchasing.create"
	ActionPurchasingApprove Action = "purchasing.approve"

	ActionUsersImpersonate Action = "users.impersonate"
	ActionUsersManage      Action = "users.manage"
)

// Actions lists every known action. Used by the consistency test matrix and
// by policy generation to guarantee full coverage.
func Actions() []Action {
	return []Action{
		ActionProjectsReadAll,
		ActionProjectsReadAssigned,
		ActionProjectsCreate,
		ActionProjectsUpdate,
		ActionProjectsDelete,
		ActionScopeRead,
		ActionScopeUpdate,
		ActionScopeApprove,
		ActionScopePricesRead,
		ActionTasksRead,
		ActionTasksCreate,
		ActionTasksUpdate,
		ActionMilestonesRead,
		ActionMilestonesUpdate,
		ActionDocumentsRead,
		ActionDocumentsUpload,
		ActionDocumentsApprove,
		ActionPurchasingRead,
		ActionPurchasingCreate,
		ActionPurchasingApprove,
		ActionUsersImpersonate,
		ActionUsersManage,
	}
}

// ParseAction maps a wire string onto the closed enum. Unknown actions are
// rejected rather than passed through, keeping checks fail-closed.
func ParseAction(raw string) (Action, bool) {
	candidate := Action(raw)
	for _, action := range Actions() {
		if action == candidate {
			return action, true
		}
	}
	return "", false
}

// Resource carries the ownership facts an authorization decision may depend
// on. A nil Resource means no facts are available; conditions that need facts
// then deny.
type Resource struct {
	OwnerID         string
	AssignedUserIDs []string
	OwnerCompanyID  string
}

// AssignedTo reports whether the principal appears in the assignment list.
func (r *Resource) AssignedTo(principalID string) bool {
	if r == nil || principalID == "" {
		return false
	}
	for _, id := range r.AssignedUserIDs {
		if id == principalID {
			return true
		}
	}
	return false
}
