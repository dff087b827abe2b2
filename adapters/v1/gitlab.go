package v1

import (
	"context"
	"strings"

	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
)

const gitLabService = "container_registry"

// GitLabHint names the variables GitLab CI exposes for registry access
var GitLabHint = domain.CredentialHint{
	PasswordEnv:     []string{"GITLAB_TOKEN", "CI_JOB_TOKEN"},
	UsernameEnv:     []string{"GITLAB_USER"},
	DefaultUsername: "gitlab-ci-token",
}

// GitLabAuthenticator implements RegistryAuthenticator for GitLab container registries,
// which hand out pull tokens from the instance's /jwt/auth endpoint
type GitLabAuthenticator struct {
	*registryClient
	authURL string
}

var _ ports.RegistryAuthenticator = (*GitLabAuthenticator)(nil)

// NewGitLabAuthenticator initializes the GitLabAuthenticator struct.
// An empty authURL uses the challenge realm, or https://<host>/jwt/auth when there is none.
func NewGitLabAuthenticator(host, authURL string, creds domain.RegistryCredentials, opts RegistryOptions) *GitLabAuthenticator {
	g := &GitLabAuthenticator{
		registryClient: newRegistryClient(host, creds, opts),
		authURL:        authURL,
	}
	g.handshake = g.jwtHandshake
	return g
}

func (g *GitLabAuthenticator) defaultAuthURL() string {
	scheme, _, _ := strings.Cut(g.baseURL, "://")
	host, _, _ := strings.Cut(g.host, ":")
	return scheme + "://" + host + "/jwt/auth"
}

func (g *GitLabAuthenticator) jwtHandshake(ctx context.Context, repository string) (session, error) {
	if g.authURL != "" {
		return g.exchangeToken(ctx, g.authURL, gitLabService, repository)
	}
	return g.challengeHandshake(ctx, repository, g.defaultAuthURL(), gitLabService)
}
