// Package auth implements the bearer-token authentication and authorization
// gate for the gateway. Token review resolves a credential to an identity;
// access review checks that the identity may ask questions.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Identity is the verified caller identity, exactly as reported by the
// external authority. It is scoped to one request and never cached.
type Identity struct {
	UserUID  string
	Username string
}

var (
	// ErrUnauthenticated indicates the credential is missing, invalid or
	// expired, or the authority could not be reached (fail closed).
	ErrUnauthenticated = errors.New("token is missing, invalid or expired")

	// ErrForbidden indicates a valid identity that is not permitted to
	// perform the protected action.
	ErrForbidden = errors.New("user is not authorized to access this service")
)

// TokenReviewer resolves a bearer token to an identity.
type TokenReviewer interface {
	ReviewToken(ctx context.Context, token string) (Identity, error)
}

// AccessReviewer checks whether an identity may perform the protected action.
type AccessReviewer interface {
	ReviewAccess(ctx context.Context, identity Identity) (bool, error)
}

// Verifier chains token review and access review into a single verify step.
type Verifier struct {
	tokens TokenReviewer
	access AccessReviewer
	logger zerolog.Logger
}

// NewVerifier creates a verifier over the given authority clients.
func NewVerifier(tokens TokenReviewer, access AccessReviewer, logger zerolog.Logger) *Verifier {
	return &Verifier{
		tokens: tokens,
		access: access,
		logger: logger.With().Str("component", "auth-verifier").Logger(),
	}
}

// Verify performs token review followed by access review. Every request is
// re-verified; consistency with the authority wins over latency. Any
// transport or protocol failure talking to the authority maps to
// ErrUnauthenticated.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	identity, err := v.tokens.ReviewToken(ctx, token)
	if err != nil {
		v.logger.Warn().Err(err).Msg("token review rejected credential")
		return Identity{}, fmt.Errorf("%w: %s", ErrUnauthenticated, err)
	}

	allowed, err := v.access.ReviewAccess(ctx, identity)
	if err != nil {
		v.logger.Warn().Err(err).Str("user", identity.Username).Msg("access review failed")
		return Identity{}, fmt.Errorf("%w: %s", ErrUnauthenticated, err)
	}
	if !allowed {
		v.logger.Warn().Str("user", identity.Username).Msg("access review denied action")
		return Identity{}, ErrForbidden
	}

	return identity, nil
}
