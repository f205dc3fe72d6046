package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

const defaultVerifyTimeout = 5 * time.Second

// TokenVerifier validates a bearer token and returns the authenticated identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Authenticator wires bearer token verification into HTTP middleware.
type Authenticator struct {
	verifier TokenVerifier
	timeout  time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithVerificationTimeout sets the timeout used when verifying tokens.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier: verifier,
		timeout:  defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Require verifies the Authorization bearer token and stores the identity in context.
func (a *Authenticator) Require() func(http.Handler) http.Handler {
	return a.RequireRoles()
}

// RequireRoles verifies the bearer token and ensures the identity carries one
// of the allowed roles. With no roles given, any authenticated identity passes.
func (a *Authenticator) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil || a.verifier == nil {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}

			ctx, cancel := a.contextWithTimeout(r.Context())
			if cancel != nil {
				defer cancel()
			}

			identity, err := a.verifier.Verify(ctx, tokenStr)
			if err != nil {
				respondVerificationError(w, err)
				return
			}
			if identity == nil || identity.Role == "" {
				respondAuthError(w, http.StatusUnauthorized, "missing_role", "no role associated with identity")
				return
			}

			if len(allowed) > 0 {
				if _, ok := allowed[strings.ToLower(identity.Role)]; !ok {
					respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func (a *Authenticator) contextWithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a == nil || a.timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, a.timeout)
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}

	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

func respondVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		respondAuthError(w, http.StatusUnauthorized, "token_expired", "bearer token expired")
	case errors.Is(err, ErrTokenInvalid):
		respondAuthError(w, http.StatusUnauthorized, "invalid_token", "bearer token invalid")
	default:
		respondAuthError(w, http.StatusUnauthorized, "invalid_token", "bearer token verification failed")
	}
}
