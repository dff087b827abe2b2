package v1

import (
	"context"

	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
)

// GenericHint names the variables used for any registry without a dedicated variant
var GenericHint = domain.CredentialHint{
	PasswordEnv: []string{"REGISTRY_PASSWORD", "REGISTRY_TOKEN"},
	UsernameEnv: []string{"REGISTRY_USERNAME"},
}

// GenericAuthenticator implements RegistryAuthenticator for registries following the
// distribution token flow (Docker Hub, ghcr.io, registry:2) or plain basic auth
type GenericAuthenticator struct {
	*registryClient
}

var _ ports.RegistryAuthenticator = (*GenericAuthenticator)(nil)

// NewGenericAuthenticator initializes the GenericAuthenticator struct
func NewGenericAuthenticator(host string, creds domain.RegistryCredentials, opts RegistryOptions) *GenericAuthenticator {
	g := &GenericAuthenticator{
		registryClient: newRegistryClient(host, creds, opts),
	}
	g.handshake = func(ctx context.Context, repository string) (session, error) {
		return g.challengeHandshake(ctx, repository, "", "")
	}
	return g
}
