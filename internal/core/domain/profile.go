package domain

import "time"

// Role names the closed set of platform roles. The membership of the set is
// configuration data (see authz.RuleSet); the type only carries the value.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleManagement      Role = "management"
	RolePurchaseManager Role = "purchase_manager"
	RoleTechnicalLead   Role = "technical_lead"
	RoleProjectManager  Role = "project_manager"
	RoleClient          Role = "client"
)

// Seniority refines the project_manager role. It is ignored for other roles.
type Seniority string

const (
	SeniorityRegular   Seniority = "regular"
	SenioritySenior    Seniority = "senior"
	SeniorityExecutive Seniority = "executive"
)

// OverrideEffect is the value of an explicit per-profile permission override.
type OverrideEffect string

const (
	OverrideAllow OverrideEffect = "allow"
	OverrideDeny  OverrideEffect = "deny"
)

// Profile carries the extended attributes attached to a principal. Exactly one
// profile exists per principal id. Role and seniority are mutated only by
// administrative action; the principal may edit contact fields.
type Profile struct {
	PrincipalID string
	Email       string
	FirstName   string
	LastName    string
	Role        Role
	Seniority   Seniority
	CompanyID   *string
	Department  *string
	IsActive    bool
	// Overrides maps action names to explicit grants that take precedence
	// over role defaults. Deny always wins over allow.
	Overrides map[string]OverrideEffect
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasOverride reports the explicit override for the action, if any.
func (p Profile) HasOverride(action string) (OverrideEffect, bool) {
	if len(p.Overrides) == 0 {
		return "", false
	}
	effect, ok := p.Overrides[action]
	return effect, ok
}

// ProfileRecord is the persisted shape of a profile including credential data.
// The password hash never leaves the repository layer except for verification.
type ProfileRecord struct {
	Profile
	PasswordHash string
	PasswordAlgo string
}
