package domain

// CredentialSource records where a set of registry credentials came from
type CredentialSource string

const (
	SourceEnv          CredentialSource = "env"
	SourceDockerConfig CredentialSource = "docker-config"
	SourceCredsHelper  CredentialSource = "creds-helper"
	SourceAnonymous    CredentialSource = "anonymous"
)

// RegistryCredentials are resolved once per registry host and never mutated afterwards
type RegistryCredentials struct {
	Username string
	Password string
	Source   CredentialSource
}

// Anonymous returns credentials for unauthenticated access
func Anonymous() RegistryCredentials {
	return RegistryCredentials{Source: SourceAnonymous}
}

// IsAnonymous reports whether there is no secret to present to the registry
func (c RegistryCredentials) IsAnonymous() bool {
	return c.Password == ""
}

// CredentialHint tells the resolver which environment variables carry credentials
// for a registry variant, and which username to use when only a token is set.
type CredentialHint struct {
	PasswordEnv     []string
	UsernameEnv     []string
	DefaultUsername string
}
