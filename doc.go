// Package portalauth is the authentication, session, and authorization
// core of the portal: dual-format access-token verification (signed JWT
// with a legacy unsigned Base64 fallback), Redis-backed session lifecycle,
// and a static role→permission matrix consulted on every request.
//
// [Service] turns a raw Authorization header into an authenticated
// [Principal] or a typed failure; [Guard] turns a Principal plus a
// role/permission requirement into an allow/deny verdict, with session
// revocation overriding any still-valid token signature. Both are
// stateless and safe for arbitrary concurrent callers; the only shared
// mutable resource is the pooled Redis client, which the caller owns.
//
// # Architecture boundaries
//
// portalauth is the public surface. Token parsing lives in token/, the
// session store in session/, role data in permission/, the client
// heartbeat in heartbeat/, and HTTP adapters in middleware/. Audit and
// metrics plumbing live under internal/ and are exposed only through
// aliases and snapshots here.
//
// # What this package must NOT do
//
//   - Verify credentials. Passwords, MFA, and account lifecycle belong to
//     the user directory behind the [UserDirectory] interface.
//   - Map errors to HTTP status codes; that is middleware's job. This
//     package returns sentinel errors matched with errors.Is.
//   - Retry session-store calls. A timed-out call is reported as
//     [ErrStoreUnavailable]; retry policy belongs to the caller.
package portalauth
