package domain

import "time"

// ProfileRoleChangedEvent is emitted when an administrator changes the role
// or seniority of a profile. Consumers must drop any cached copy of the
// profile and any permission decisions derived from it.
type ProfileRoleChangedEvent struct {
	EventID     string         `json:"event_id"`
	PrincipalID string         `json:"principal_id"`
	OldRole     Role           `json:"old_role"`
	NewRole     Role           `json:"new_role"`
	NewVersion  int64          `json:"new_version"`
	ChangedBy   string         `json:"changed_by"`
	ChangedAt   time.Time      `json:"changed_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ProfileDeactivatedEvent is emitted when a profile is disabled. Open
// sessions for the principal must be revoked.
type ProfileDeactivatedEvent struct {
	EventID       string    `json:"event_id"`
	PrincipalID   string    `json:"principal_id"`
	DeactivatedBy string    `json:"deactivated_by"`
	DeactivatedAt time.Time `json:"deactivated_at"`
	Reason        string    `json:"reason,omitempty"`
}

// SessionRevokedEvent captures a session being terminated.
type SessionRevokedEvent struct {
	EventID     string         `json:"event_id"`
	SessionID   string         `json:"session_id"`
	PrincipalID string         `json:"principal_id"`
	RevokedAt   time.Time      `json:"revoked_at"`
	RevokedBy   string         `json:"revoked_by"`
	Reason      string         `json:"reason"`
	IPAddress   *string        `json:"ip_address,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ImpersonationStartedEvent records a privileged principal assuming another
// identity. OriginalPrincipalID is the auditable actor; every action taken
// during the window is attributed to it.
type ImpersonationStartedEvent struct {
	EventID             string    `json:"event_id"`
	SessionID           string    `json:"session_id"`
	OriginalPrincipalID string    `json:"original_principal_id"`
	TargetPrincipalID   string    `json:"target_principal_id"`
	StartedAt           time.Time `json:"started_at"`
}

// ImpersonationStoppedEvent records the overlay being torn down.
type ImpersonationStoppedEvent struct {
	EventID             string    `json:"event_id"`
	SessionID           string    `json:"session_id"`
	OriginalPrincipalID string    `json:"original_principal_id"`
	TargetPrincipalID   string    `json:"target_principal_id"`
	StoppedAt           time.Time `json:"stopped_at"`
	Duration            string    `json:"duration"`
}
