package usecase

import "errors"

var (
	// ErrInvalidCredentials indicates the email/password pair did not match.
	// Deliberately indistinguishable from an unknown email.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled indicates the profile exists but is deactivated.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrNotAuthenticated indicates no session is established locally.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionExpired indicates the session can no longer be refreshed and
	// the caller must sign in again.
	ErrSessionExpired = errors.New("session expired")
	// ErrRefreshTimeout indicates a token refresh did not complete within the
	// configured bound.
	ErrRefreshTimeout = errors.New("token refresh timed out")
	// ErrProfileNotFound indicates no profile exists for the principal.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrBackendUnavailable indicates the profile backend could not be reached.
	ErrBackendUnavailable = errors.New("profile backend unavailable")
	// ErrForbidden indicates the caller lacks the permission for the operation.
	ErrForbidden = errors.New("operation forbidden")
	// ErrTargetNotFound indicates the impersonation target does not exist.
	ErrTargetNotFound = errors.New("impersonation target not found")
	// ErrNotImpersonating indicates a stop was requested with no active overlay.
	ErrNotImpersonating = errors.New("no active impersonation")
	// ErrWeakPassword indicates the supplied password failed policy validation.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrEmailTaken indicates a profile already exists for the email.
	ErrEmailTaken = errors.New("email already registered")
)
