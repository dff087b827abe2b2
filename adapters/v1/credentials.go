package v1

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/registry"
	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
)

// dockerConfigFile is the subset of ~/.docker/config.json we understand
type dockerConfigFile struct {
	Auths       map[string]registry.AuthConfig `json:"auths"`
	CredsStore  string                         `json:"credsStore,omitempty"`
	CredHelpers map[string]string              `json:"credHelpers,omitempty"`
}

// CredentialResolver implements CredentialResolver from ports: environment variables first,
// then the docker config file and its credential helpers, then anonymous.
type CredentialResolver struct {
	dockerConfig string
	helper       ports.CredentialHelper
}

var _ ports.CredentialResolver = (*CredentialResolver)(nil)

// NewCredentialResolver initializes the CredentialResolver struct.
// An empty dockerConfig means $DOCKER_CONFIG/config.json or ~/.docker/config.json.
func NewCredentialResolver(dockerConfig string, helper ports.CredentialHelper) *CredentialResolver {
	return &CredentialResolver{
		dockerConfig: dockerConfig,
		helper:       helper,
	}
}

// Resolve returns the first credentials found for host
func (c *CredentialResolver) Resolve(ctx context.Context, host string, hint domain.CredentialHint) domain.RegistryCredentials {
	if creds, ok := credentialsFromEnv(hint); ok {
		logger.L().Debug("using registry credentials from environment", helpers.String("host", host))
		return creds
	}
	if creds, ok := c.fromDockerConfig(ctx, host); ok {
		logger.L().Debug("using registry credentials from docker config",
			helpers.String("host", host),
			helpers.String("source", string(creds.Source)))
		return creds
	}
	logger.L().Debug("no registry credentials found, proceeding anonymously", helpers.String("host", host))
	return domain.Anonymous()
}

func firstEnv(names []string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func credentialsFromEnv(hint domain.CredentialHint) (domain.RegistryCredentials, bool) {
	password := firstEnv(hint.PasswordEnv)
	if password == "" {
		return domain.RegistryCredentials{}, false
	}
	username := firstEnv(hint.UsernameEnv)
	if username == "" {
		username = hint.DefaultUsername
	}
	return domain.RegistryCredentials{
		Username: username,
		Password: password,
		Source:   domain.SourceEnv,
	}, true
}

func (c *CredentialResolver) configPath() string {
	if c.dockerConfig != "" {
		return c.dockerConfig
	}
	if dir := os.Getenv("DOCKER_CONFIG"); dir != "" {
		return filepath.Join(dir, "config.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".docker", "config.json")
}

// HostKeys returns the keys a docker config may use for host, different tools write different forms
func HostKeys(host string) []string {
	bare := strings.TrimSuffix(host, ":443")
	return []string{
		bare,
		"https://" + bare,
		bare + ":443",
		"http://" + bare,
		"https://" + bare + "/v1/",
	}
}

func (c *CredentialResolver) fromDockerConfig(ctx context.Context, host string) (domain.RegistryCredentials, bool) {
	path := c.configPath()
	if path == "" {
		return domain.RegistryCredentials{}, false
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.RegistryCredentials{}, false
	}
	var cfg dockerConfigFile
	if err := json.Unmarshal(b, &cfg); err != nil {
		logger.L().Warning("ignoring unparsable docker config",
			helpers.String("path", path),
			helpers.Error(err))
		return domain.RegistryCredentials{}, false
	}

	matched := ""
	var entry registry.AuthConfig
	for _, key := range HostKeys(host) {
		if e, ok := cfg.Auths[key]; ok {
			matched, entry = key, e
			break
		}
	}
	if matched != "" {
		if creds, ok := inlineCredentials(entry); ok {
			return creds, true
		}
	}

	store := cfg.helperFor(host, matched)
	if store == "" || c.helper == nil {
		return domain.RegistryCredentials{}, false
	}
	serverURL := matched
	if serverURL == "" {
		serverURL = host
	}
	return c.helper.Get(ctx, store, serverURL)
}

func (cfg dockerConfigFile) helperFor(host, matched string) string {
	for _, key := range append([]string{matched}, HostKeys(host)...) {
		if key == "" {
			continue
		}
		if store, ok := cfg.CredHelpers[key]; ok && store != "" {
			return store
		}
	}
	return cfg.CredsStore
}

func inlineCredentials(entry registry.AuthConfig) (domain.RegistryCredentials, bool) {
	if entry.Auth != "" {
		decoded, err := base64.StdEncoding.DecodeString(entry.Auth)
		if err != nil {
			logger.L().Debug("ignoring malformed auth entry in docker config", helpers.Error(err))
			return domain.RegistryCredentials{}, false
		}
		username, password, ok := strings.Cut(string(decoded), ":")
		if !ok || password == "" {
			return domain.RegistryCredentials{}, false
		}
		return domain.RegistryCredentials{Username: username, Password: password, Source: domain.SourceDockerConfig}, true
	}
	if entry.Password != "" {
		return domain.RegistryCredentials{Username: entry.Username, Password: entry.Password, Source: domain.SourceDockerConfig}, true
	}
	if entry.IdentityToken != "" {
		return domain.RegistryCredentials{Username: entry.Username, Password: entry.IdentityToken, Source: domain.SourceDockerConfig}, true
	}
	return domain.RegistryCredentials{}, false
}
