package v1

import (
	"context"
	"testing"

	"github.com/kubescape/evalresolver/adapters"
	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticatorFactory_NewAuthenticator(t *testing.T) {
	clearRegistryEnv(t)
	t.Setenv("NGC_API_KEY", "key")
	resolver := NewCredentialResolver(writeDockerConfig(t, `{}`), adapters.NewMockCredentialHelper(nil))
	f := NewAuthenticatorFactory(resolver, RegistryOptions{}, "")

	tests := []struct {
		image string
		check func(t *testing.T, auth ports.RegistryAuthenticator)
	}{
		{
			image: "gitlab-master.example.com:5005/dl/ci-llm/lm-eval:25.01",
			check: func(t *testing.T, auth ports.RegistryAuthenticator) {
				g, ok := auth.(*GitLabAuthenticator)
				require.True(t, ok)
				assert.True(t, g.Credentials().IsAnonymous())
				assert.Equal(t, "https://gitlab-master.example.com:5005", g.baseURL)
			},
		},
		{
			image: "nvcr.io/nvidia/eval-factory/simple-evals:25.01",
			check: func(t *testing.T, auth ports.RegistryAuthenticator) {
				n, ok := auth.(*NGCAuthenticator)
				require.True(t, ok)
				assert.Equal(t, domain.RegistryCredentials{Username: "$oauthtoken", Password: "key", Source: domain.SourceEnv}, n.Credentials())
			},
		},
		{
			image: "ghcr.io/example/harness:1.0",
			check: func(t *testing.T, auth ports.RegistryAuthenticator) {
				g, ok := auth.(*GenericAuthenticator)
				require.True(t, ok)
				assert.Equal(t, domain.SourceAnonymous, g.Credentials().Source)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.image, func(t *testing.T) {
			image, err := domain.ParseImageReference(tt.image, domain.RegistryHosts{})
			require.NoError(t, err)
			auth, err := f.NewAuthenticator(context.TODO(), image)
			require.NoError(t, err)
			tt.check(t, auth)
		})
	}

	_, err := f.NewAuthenticator(context.TODO(), domain.ImageReference{Registry: "example.com", Type: "quay"})
	assert.Error(t, err)
}
