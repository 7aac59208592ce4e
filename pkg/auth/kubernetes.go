package auth

import (
	"context"
	"fmt"
	"os"
	"sync"

	authnv1 "k8s.io/api/authentication/v1"
	authzv1 "k8s.io/api/authorization/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// QueryAccessPath is the virtual non-resource path gated by access review.
const QueryAccessPath = "/v1/query"

// KubeAuthority implements TokenReviewer and AccessReviewer against the
// Kubernetes TokenReview and SubjectAccessReview APIs.
type KubeAuthority struct {
	client kubernetes.Interface
}

var (
	authorityOnce sync.Once
	authority     *KubeAuthority
	authorityErr  error
)

// DefaultAuthority returns the shared KubeAuthority handle, building the
// Kubernetes client exactly once. The client is immutable and safe for
// concurrent use; it must not be rebuilt per request.
func DefaultAuthority(kubeconfig string) (*KubeAuthority, error) {
	authorityOnce.Do(func() {
		authority, authorityErr = NewKubeAuthority(kubeconfig)
	})
	return authority, authorityErr
}

// NewKubeAuthority builds a KubeAuthority from the in-cluster service account
// when available, falling back to a kubeconfig file.
func NewKubeAuthority(kubeconfig string) (*KubeAuthority, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		if kubeconfig == "" {
			kubeconfig = os.Getenv("KUBECONFIG")
		}
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build kubernetes client config: %w", err)
		}
	}

	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubernetes client: %w", err)
	}

	return &KubeAuthority{client: client}, nil
}

// NewKubeAuthorityForClient wraps an existing clientset. Used by tests with a
// fake clientset.
func NewKubeAuthorityForClient(client kubernetes.Interface) *KubeAuthority {
	return &KubeAuthority{client: client}
}

// ReviewToken submits the token for review and extracts the identity the
// authority reports, with no transformation.
func (a *KubeAuthority) ReviewToken(ctx context.Context, token string) (Identity, error) {
	review := &authnv1.TokenReview{
		Spec: authnv1.TokenReviewSpec{Token: token},
	}

	result, err := a.client.AuthenticationV1().TokenReviews().Create(ctx, review, metav1.CreateOptions{})
	if err != nil {
		return Identity{}, fmt.Errorf("token review request failed: %w", err)
	}
	if !result.Status.Authenticated {
		return Identity{}, fmt.Errorf("token review rejected the credential")
	}

	return Identity{
		UserUID:  result.Status.User.UID,
		Username: result.Status.User.Username,
	}, nil
}

// ReviewAccess submits a subject access review for the query endpoint.
func (a *KubeAuthority) ReviewAccess(ctx context.Context, identity Identity) (bool, error) {
	review := &authzv1.SubjectAccessReview{
		Spec: authzv1.SubjectAccessReviewSpec{
			User: identity.Username,
			UID:  identity.UserUID,
			NonResourceAttributes: &authzv1.NonResourceAttributes{
				Path: QueryAccessPath,
				Verb: "post",
			},
		},
	}

	result, err := a.client.AuthorizationV1().SubjectAccessReviews().Create(ctx, review, metav1.CreateOptions{})
	if err != nil {
		return false, fmt.Errorf("subject access review request failed: %w", err)
	}

	return result.Status.Allowed, nil
}
