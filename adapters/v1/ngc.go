package v1

import (
	"context"
	"errors"

	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
)

const (
	ngcRealm   = "https://nvcr.io/proxy_auth"
	ngcService = "registry"
)

// NGCHint names the variables carrying an NGC API key
var NGCHint = domain.CredentialHint{
	PasswordEnv:     []string{"NGC_API_KEY", "NGC_CLI_API_KEY"},
	UsernameEnv:     []string{"NGC_USERNAME"},
	DefaultUsername: "$oauthtoken",
}

// NGCAuthenticator implements RegistryAuthenticator for nvcr.io style registries.
// Public images are pulled with an anonymous token, private ones need an API key.
type NGCAuthenticator struct {
	*registryClient
}

var _ ports.RegistryAuthenticator = (*NGCAuthenticator)(nil)

// NewNGCAuthenticator initializes the NGCAuthenticator struct
func NewNGCAuthenticator(host string, creds domain.RegistryCredentials, opts RegistryOptions) *NGCAuthenticator {
	n := &NGCAuthenticator{
		registryClient: newRegistryClient(host, creds, opts),
	}
	n.handshake = n.tokenHandshake
	return n
}

func (n *NGCAuthenticator) tokenHandshake(ctx context.Context, repository string) (session, error) {
	s, err := n.challengeHandshake(ctx, repository, ngcRealm, ngcService)
	if err == nil || n.creds.IsAnonymous() || !errors.Is(err, domain.ErrAuthentication) {
		return s, err
	}
	// a rejected key can still read public images
	logger.L().Ctx(ctx).Warning("NGC rejected credentials, checking public access",
		helpers.String("host", n.host),
		helpers.String("repository", repository),
		helpers.String("source", string(n.creds.Source)))
	public := *n.registryClient
	public.creds = domain.Anonymous()
	if s, publicErr := public.challengeHandshake(ctx, repository, ngcRealm, ngcService); publicErr == nil {
		return s, nil
	}
	return session{}, err
}
