package portalauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/saberedu/portalauth/internal/audit"
	"github.com/saberedu/portalauth/internal/metrics"
	"github.com/saberedu/portalauth/permission"
	"github.com/saberedu/portalauth/session"
	"github.com/saberedu/portalauth/token"
)

// TokenConfig configures signing and verification of access/refresh
// tokens.
type TokenConfig struct {
	// Secret is the HS256 signing key. Minimum 32 bytes.
	Secret []byte
	// Issuer and Audience are enforced on verification when non-empty and
	// stamped into issued tokens.
	Issuer   string
	Audience string
	// AccessTTL defaults to 1h, RefreshTTL to 168h (7 days).
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Leeway tolerates clock skew on exp checks. At most 2 minutes.
	Leeway time.Duration
}

// SessionConfig configures the Redis session store.
type SessionConfig struct {
	// KeyPrefix defaults to "session".
	KeyPrefix string
	// TTL is the fixed session window, default 15m. Every write re-states
	// the full window; it never accumulates.
	TTL time.Duration
	// OpTimeout bounds each Redis round-trip, default 3s.
	OpTimeout time.Duration
}

// PermissionConfig configures the role→permission matrix.
type PermissionConfig struct {
	// Grants overrides the built-in matrix when non-nil.
	Grants map[permission.Role][]string
}

// AuditConfig configures the asynchronous audit trail.
type AuditConfig struct {
	Enabled bool
	// BufferSize is the dispatch queue depth, default 256. A full queue
	// drops events rather than blocking request handling.
	BufferSize int
	// Sink receives events. Defaults to a no-op sink.
	Sink AuditSink
}

// MetricsConfig configures the in-process instruments.
type MetricsConfig struct {
	Enabled bool
	// EnableLatencyHistogram additionally records Authenticate latency.
	EnableLatencyHistogram bool
}

// Config is the full configuration of a [Service]. The zero value is not
// usable; at minimum Token.Secret must be set.
type Config struct {
	Token      TokenConfig
	Session    SessionConfig
	Permission PermissionConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

func (c *Config) applyDefaults() {
	if c.Token.AccessTTL == 0 {
		c.Token.AccessTTL = time.Hour
	}
	if c.Token.RefreshTTL == 0 {
		c.Token.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Session.KeyPrefix == "" {
		c.Session.KeyPrefix = "session"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = session.DefaultTTL
	}
	if c.Session.OpTimeout == 0 {
		c.Session.OpTimeout = session.DefaultOpTimeout
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = 256
	}
}

// Validate reports the first configuration problem, after defaults are
// applied. Token parameters are validated again, authoritatively, by the
// token codec.
func (c *Config) Validate() error {
	if len(c.Token.Secret) < 32 {
		return errors.New("config: token secret must be at least 32 bytes")
	}
	if c.Session.TTL < time.Minute {
		return fmt.Errorf("config: session TTL %v is below 1m", c.Session.TTL)
	}
	if c.Session.OpTimeout < 2*time.Second || c.Session.OpTimeout > 5*time.Second {
		return fmt.Errorf("config: session op timeout %v outside 2s..5s", c.Session.OpTimeout)
	}
	if c.Audit.BufferSize < 0 {
		return errors.New("config: negative audit buffer size")
	}
	return nil
}

func (c *Config) tokenConfig() token.Config {
	return token.Config{
		Secret:     c.Token.Secret,
		Issuer:     c.Token.Issuer,
		Audience:   c.Token.Audience,
		AccessTTL:  c.Token.AccessTTL,
		RefreshTTL: c.Token.RefreshTTL,
		Leeway:     c.Token.Leeway,
	}
}

func (c *Config) auditConfig() audit.Config {
	return audit.Config{Enabled: c.Audit.Enabled, BufferSize: c.Audit.BufferSize}
}

func (c *Config) metricsConfig() metrics.Config {
	return metrics.Config{Enabled: c.Metrics.Enabled, EnableLatency: c.Metrics.EnableLatencyHistogram}
}
