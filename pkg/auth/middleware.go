package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// identityContextKey is the context key for storing the verified identity.
const identityContextKey contextKey = "identity"

const bearerPrefix = "Bearer "

// Gate is the configuration-gated authentication middleware. When disabled it
// bypasses verification entirely and attaches no identity; downstream
// components must not assume an identity is present.
type Gate struct {
	verifier *Verifier
	enabled  bool
	logger   zerolog.Logger
}

// NewGate creates the authentication gate middleware.
func NewGate(verifier *Verifier, enabled bool, logger zerolog.Logger) *Gate {
	return &Gate{
		verifier: verifier,
		enabled:  enabled,
		logger:   logger.With().Str("component", "auth-gate").Logger(),
	}
}

// Enabled reports whether the gate verifies requests.
func (g *Gate) Enabled() bool {
	return g.enabled
}

// Wrap wraps an HTTP handler with bearer-token verification.
func (g *Gate) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.enabled {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			// No call to the authority for a missing or malformed header.
			g.logger.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("request missing bearer token")
			writeDetail(w, http.StatusUnauthorized, "Unauthorized: no auth header found")
			return
		}

		identity, err := g.verifier.Verify(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, ErrForbidden):
				writeDetail(w, http.StatusForbidden, "Forbidden: user does not have access to this service")
			default:
				writeDetail(w, http.StatusUnauthorized, "Unauthorized: token is invalid or expired")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

// ContextWithIdentity attaches a verified identity to the context.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext extracts the verified identity from the request context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}

// bearerToken extracts the credential from the Authorization header. The
// scheme comparison is case-insensitive per RFC 7235.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
