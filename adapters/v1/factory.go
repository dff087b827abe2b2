package v1

import (
	"context"
	"fmt"

	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
)

// AuthenticatorFactory implements AuthenticatorFactory from ports, selecting the
// registry variant from the type derived from the image reference
type AuthenticatorFactory struct {
	resolver      ports.CredentialResolver
	options       RegistryOptions
	gitLabAuthURL string
}

var _ ports.AuthenticatorFactory = (*AuthenticatorFactory)(nil)

// NewAuthenticatorFactory initializes the AuthenticatorFactory struct
func NewAuthenticatorFactory(resolver ports.CredentialResolver, options RegistryOptions, gitLabAuthURL string) *AuthenticatorFactory {
	return &AuthenticatorFactory{
		resolver:      resolver,
		options:       options,
		gitLabAuthURL: gitLabAuthURL,
	}
}

// NewAuthenticator resolves credentials for the image's registry and builds the matching variant
func (f *AuthenticatorFactory) NewAuthenticator(ctx context.Context, image domain.ImageReference) (ports.RegistryAuthenticator, error) {
	var hint domain.CredentialHint
	switch image.Type {
	case domain.RegistryGitLab:
		hint = GitLabHint
	case domain.RegistryNGC:
		hint = NGCHint
	case domain.RegistryGeneric:
		hint = GenericHint
	default:
		return nil, fmt.Errorf("unsupported registry type %q for %s", image.Type, image.Registry)
	}
	creds := f.resolver.Resolve(ctx, image.Registry, hint)
	logger.L().Debug("building registry authenticator",
		helpers.String("registry", image.Registry),
		helpers.String("type", string(image.Type)),
		helpers.String("credentials", string(creds.Source)))

	switch image.Type {
	case domain.RegistryGitLab:
		return NewGitLabAuthenticator(image.Registry, f.gitLabAuthURL, creds, f.options), nil
	case domain.RegistryNGC:
		return NewNGCAuthenticator(image.Registry, creds, f.options), nil
	default:
		return NewGenericAuthenticator(image.Registry, creds, f.options), nil
	}
}
