package auth

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	authnv1 "k8s.io/api/authentication/v1"
	authzv1 "k8s.io/api/authorization/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func newFakeCluster(t *testing.T) *fake.Clientset {
	t.Helper()

	clientset := fake.NewSimpleClientset()

	clientset.PrependReactor("create", "tokenreviews", func(action k8stesting.Action) (bool, runtime.Object, error) {
		review, ok := action.(k8stesting.CreateAction).GetObject().(*authnv1.TokenReview)
		require.True(t, ok)

		result := review.DeepCopy()
		if review.Spec.Token == "valid-token" {
			result.Status = authnv1.TokenReviewStatus{
				Authenticated: true,
				User: authnv1.UserInfo{
					UID:      "valid-uid",
					Username: "valid-user",
				},
			}
		} else {
			result.Status = authnv1.TokenReviewStatus{Authenticated: false}
		}
		return true, result, nil
	})

	clientset.PrependReactor("create", "subjectaccessreviews", func(action k8stesting.Action) (bool, runtime.Object, error) {
		review, ok := action.(k8stesting.CreateAction).GetObject().(*authzv1.SubjectAccessReview)
		require.True(t, ok)

		result := review.DeepCopy()
		result.Status = authzv1.SubjectAccessReviewStatus{
			Allowed: review.Spec.User == "valid-user",
		}
		return true, result, nil
	})

	return clientset
}

func TestKubeAuthority_ReviewToken_Valid(t *testing.T) {
	authority := NewKubeAuthorityForClient(newFakeCluster(t))

	identity, err := authority.ReviewToken(context.Background(), "valid-token")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserUID: "valid-uid", Username: "valid-user"}, identity)
}

func TestKubeAuthority_ReviewToken_Invalid(t *testing.T) {
	authority := NewKubeAuthorityForClient(newFakeCluster(t))

	_, err := authority.ReviewToken(context.Background(), "invalid-token")
	require.Error(t, err)
}

func TestKubeAuthority_ReviewAccess(t *testing.T) {
	authority := NewKubeAuthorityForClient(newFakeCluster(t))

	allowed, err := authority.ReviewAccess(context.Background(), Identity{UserUID: "valid-uid", Username: "valid-user"})
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = authority.ReviewAccess(context.Background(), Identity{UserUID: "other-uid", Username: "other-user"})
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestKubeAuthority_VerifierIntegration(t *testing.T) {
	authority := NewKubeAuthorityForClient(newFakeCluster(t))
	verifier := NewVerifier(authority, authority, zerolog.Nop())

	identity, err := verifier.Verify(context.Background(), "valid-token")
	require.NoError(t, err)
	assert.Equal(t, "valid-uid", identity.UserUID)
	assert.Equal(t, "valid-user", identity.Username)

	_, err = verifier.Verify(context.Background(), "invalid-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
