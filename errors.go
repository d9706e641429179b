package portalauth

import "errors"

// The full failure taxonomy of the core. Every expected condition maps to
// exactly one of these sentinels; match with errors.Is. Unexpected
// programming errors (misconfiguration) surface at construction, never
// here.
var (
	// ErrNoToken: the request carried no Bearer credential at all.
	ErrNoToken = errors.New("no bearer token")
	// ErrTokenMalformed: the credential cannot be a token, or decodes but
	// lacks required identity fields.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrTokenExpired: structurally valid token whose exp has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid: failed both decode strategies, or carried the wrong
	// token type.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrUserDisabled: the user directory reports the account disabled or
	// unknown.
	ErrUserDisabled = errors.New("user disabled")
	// ErrSessionNotFound: a session-scoped operation targeted a session
	// that does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionRevoked: the principal's session was removed from the
	// store; overrides a still-valid token.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrInsufficientRole: authorization denial on a role requirement.
	ErrInsufficientRole = errors.New("insufficient role")
	// ErrInsufficientPermissions: authorization denial on a permission
	// requirement.
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	// ErrStoreUnavailable: the session store (or user directory) failed or
	// timed out. Transient; never conflated with a negative lookup.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrServiceNotReady: a nil or unconstructed Service/Guard was used.
	ErrServiceNotReady = errors.New("service not initialized")
)

// ErrorCode returns the stable machine-readable code for err, for JSON
// error bodies and logs. Unrecognized errors report INTERNAL_ERROR.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoToken):
		return "NO_TOKEN"
	case errors.Is(err, ErrTokenMalformed):
		return "TOKEN_MALFORMED"
	case errors.Is(err, ErrTokenExpired):
		return "TOKEN_EXPIRED"
	case errors.Is(err, ErrTokenInvalid):
		return "INVALID_TOKEN"
	case errors.Is(err, ErrUserDisabled):
		return "USER_DISABLED"
	case errors.Is(err, ErrSessionNotFound):
		return "SESSION_NOT_FOUND"
	case errors.Is(err, ErrSessionRevoked):
		return "SESSION_REVOKED"
	case errors.Is(err, ErrInsufficientRole):
		return "INSUFFICIENT_ROLE"
	case errors.Is(err, ErrInsufficientPermissions):
		return "INSUFFICIENT_PERMISSIONS"
	case errors.Is(err, ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
