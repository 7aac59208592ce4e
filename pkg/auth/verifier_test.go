package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenReviewer struct {
	identity Identity
	err      error
	calls    int
}

func (f *fakeTokenReviewer) ReviewToken(_ context.Context, _ string) (Identity, error) {
	f.calls++
	return f.identity, f.err
}

type fakeAccessReviewer struct {
	allowed bool
	err     error
	calls   int
	seen    Identity
}

func (f *fakeAccessReviewer) ReviewAccess(_ context.Context, identity Identity) (bool, error) {
	f.calls++
	f.seen = identity
	return f.allowed, f.err
}

func TestVerifier_ValidToken(t *testing.T) {
	tokens := &fakeTokenReviewer{identity: Identity{UserUID: "valid-uid", Username: "valid-user"}}
	access := &fakeAccessReviewer{allowed: true}
	verifier := NewVerifier(tokens, access, zerolog.Nop())

	identity, err := verifier.Verify(context.Background(), "valid-token")
	require.NoError(t, err)

	// The identity must be exactly what the authority returned.
	assert.Equal(t, Identity{UserUID: "valid-uid", Username: "valid-user"}, identity)
	assert.Equal(t, identity, access.seen)
}

func TestVerifier_InvalidToken(t *testing.T) {
	tokens := &fakeTokenReviewer{err: errors.New("token review rejected the credential")}
	access := &fakeAccessReviewer{allowed: true}
	verifier := NewVerifier(tokens, access, zerolog.Nop())

	_, err := verifier.Verify(context.Background(), "invalid-token")
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, access.calls, "access review must not run for a rejected token")
}

func TestVerifier_AccessDenied(t *testing.T) {
	tokens := &fakeTokenReviewer{identity: Identity{UserUID: "valid-uid", Username: "valid-user"}}
	access := &fakeAccessReviewer{allowed: false}
	verifier := NewVerifier(tokens, access, zerolog.Nop())

	_, err := verifier.Verify(context.Background(), "valid-token")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestVerifier_AuthorityUnreachable_FailsClosed(t *testing.T) {
	tokens := &fakeTokenReviewer{identity: Identity{UserUID: "valid-uid", Username: "valid-user"}}
	access := &fakeAccessReviewer{err: errors.New("connection refused")}
	verifier := NewVerifier(tokens, access, zerolog.Nop())

	_, err := verifier.Verify(context.Background(), "valid-token")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifier_NoCachingAcrossRequests(t *testing.T) {
	tokens := &fakeTokenReviewer{identity: Identity{UserUID: "valid-uid", Username: "valid-user"}}
	access := &fakeAccessReviewer{allowed: true}
	verifier := NewVerifier(tokens, access, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := verifier.Verify(context.Background(), "valid-token")
		require.NoError(t, err)
	}

	assert.Equal(t, 3, tokens.calls)
	assert.Equal(t, 3, access.calls)
}
