package portalauth

import (
	"context"
	"io"

	"github.com/saberedu/portalauth/internal/audit"
	"github.com/saberedu/portalauth/internal/metrics"
	"github.com/saberedu/portalauth/permission"
	"github.com/saberedu/portalauth/session"
)

// Principal is the authenticated identity attached to one request. It is
// constructed only by [Service.Authenticate] from a verified token, is
// immutable for the request's lifetime, and is never persisted; it is
// derived fresh every request.
type Principal struct {
	ID            string
	Email         string
	Name          string
	Role          permission.Role
	Permissions   []string
	InstitutionID string
	SessionID     string
}

// Can reports whether the principal explicitly carries the permission key.
// Matrix-derived grants are already merged in at construction, so this is
// the full effective set.
func (p *Principal) Can(key string) bool {
	if p == nil {
		return false
	}
	if p.Role == permission.RoleSystemAdmin {
		return true
	}
	for _, k := range p.Permissions {
		if k == key {
			return true
		}
	}
	return false
}

// UserStatus is the answer of the user-directory collaborator.
type UserStatus uint8

const (
	// UserActive: the account exists and may authenticate.
	UserActive UserStatus = iota
	// UserDisabled: the account exists but is blocked.
	UserDisabled
	// UserUnknown: no such account.
	UserUnknown
)

// UserDirectory is the single outbound query this core makes about
// accounts: is the user enabled? Implementations must be idempotent and
// safe for concurrent use. A returned error means the directory itself
// failed (mapped to [ErrStoreUnavailable]); negative answers are statuses,
// not errors.
type UserDirectory interface {
	UserStatus(ctx context.Context, userID string) (UserStatus, error)
}

// StartSessionInput describes a verified login about to become a session.
// Credential verification happened upstream, in the user directory.
type StartSessionInput struct {
	UserID        string
	Email         string
	Name          string
	Role          permission.Role
	InstitutionID string
	Permissions   []string
	DeviceInfo    *session.DeviceInfo
	IPAddress     string
}

// LoginResult carries the freshly issued token pair and session linkage.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresAt    int64
}

// Audit surface, re-exported from internal/audit so integrators never
// import internal packages.

// AuditEvent is a structured security event emitted by the core.
type AuditEvent = audit.Event

// AuditSink receives [AuditEvent] values.
type AuditSink = audit.Sink

// NoOpSink discards all audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON audit event per line.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// MetricsSnapshot is a point-in-time copy of the core's counters and the
// authenticate latency histogram.
type MetricsSnapshot = metrics.Snapshot
