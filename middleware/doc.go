// Package middleware adapts the portalauth core to net/http. Each
// middleware is a plain func(http.Handler) http.Handler, compatible with
// chi and every other stdlib-shaped router.
//
// RequireAuth authenticates and injects the principal into the request
// context; RequireRole and RequirePermission additionally consult the
// guard, which enforces session revocation. Failures are written as JSON
// error bodies with stable machine-readable codes; handlers behind the
// middleware never see an unauthenticated request.
package middleware
