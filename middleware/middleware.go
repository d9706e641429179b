package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/saberedu/portalauth"
	"github.com/saberedu/portalauth/permission"
)

type contextKey struct{ name string }

var principalKey = &contextKey{"portalauth.principal"}

// PrincipalFromContext returns the authenticated principal injected by
// [RequireAuth] or [OptionalAuth], or nil.
func PrincipalFromContext(ctx context.Context) *portalauth.Principal {
	p, _ := ctx.Value(principalKey).(*portalauth.Principal)
	return p
}

// WithPrincipal returns ctx carrying p. Exported for handler tests.
func WithPrincipal(ctx context.Context, p *portalauth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// RequireAuth authenticates the request and injects the principal. Any
// failure terminates the request with a JSON error body.
func RequireAuth(svc *portalauth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := svc.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// OptionalAuth injects a principal when the request carries a valid
// token, and passes the request through anonymously otherwise. Only a
// store outage terminates the request.
func OptionalAuth(svc *portalauth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := svc.OptionalAuthenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, err)
				return
			}
			if p != nil {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole denies unless the principal's role is one of roles. Must be
// mounted behind [RequireAuth].
func RequireRole(svc *portalauth.Service, roles ...permission.Role) func(http.Handler) http.Handler {
	guard := svc.Guard()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if err := guard.RequireRole(r.Context(), p, roles...); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission denies unless the principal holds keys under mode.
// Must be mounted behind [RequireAuth].
func RequirePermission(svc *portalauth.Service, mode portalauth.MatchMode, keys ...string) func(http.Handler) http.Handler {
	guard := svc.Guard()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if err := guard.RequirePermission(r.Context(), p, keys, mode); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the originating client address: first X-Forwarded-For
// entry, then X-Real-IP, then the socket peer.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		if ip := strings.TrimSpace(fwd); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// HTTPStatus maps a portalauth error to its HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, portalauth.ErrNoToken),
		errors.Is(err, portalauth.ErrTokenMalformed),
		errors.Is(err, portalauth.ErrTokenExpired),
		errors.Is(err, portalauth.ErrTokenInvalid),
		errors.Is(err, portalauth.ErrUserDisabled),
		errors.Is(err, portalauth.ErrSessionRevoked),
		errors.Is(err, portalauth.ErrSessionNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, portalauth.ErrInsufficientRole),
		errors.Is(err, portalauth.ErrInsufficientPermissions):
		return http.StatusForbidden
	case errors.Is(err, portalauth.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	body := errorBody{
		Success: false,
		Message: publicMessage(err),
		Code:    portalauth.ErrorCode(err),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// publicMessage keeps wire messages stable and free of wrapped internal
// detail.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, portalauth.ErrNoToken):
		return "authentication required"
	case errors.Is(err, portalauth.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, portalauth.ErrTokenMalformed), errors.Is(err, portalauth.ErrTokenInvalid):
		return "invalid token"
	case errors.Is(err, portalauth.ErrUserDisabled):
		return "account disabled"
	case errors.Is(err, portalauth.ErrSessionRevoked), errors.Is(err, portalauth.ErrSessionNotFound):
		return "session no longer active"
	case errors.Is(err, portalauth.ErrInsufficientRole), errors.Is(err, portalauth.ErrInsufficientPermissions):
		return "access denied"
	case errors.Is(err, portalauth.ErrStoreUnavailable):
		return "service temporarily unavailable"
	default:
		return "internal error"
	}
}
