package ports

import (
	"context"
	"io"

	"github.com/kubescape/evalresolver/core/domain"
)

// CredentialHelper is the port implemented by adapters invoking docker-credential-<store> helpers.
// A helper that cannot be run or returns garbage yields ok == false, never an error.
type CredentialHelper interface {
	Get(ctx context.Context, store, serverURL string) (creds domain.RegistryCredentials, ok bool)
}

// CredentialResolver is the port implemented by adapters to find registry credentials
type CredentialResolver interface {
	Resolve(ctx context.Context, host string, hint domain.CredentialHint) domain.RegistryCredentials
}

// RegistryAuthenticator is the port implemented by one adapter per registry variant
type RegistryAuthenticator interface {
	Authenticate(ctx context.Context, repository string) error
	GetManifestAndDigest(ctx context.Context, repository, reference string) (domain.Manifest, string, error)
	GetBlob(ctx context.Context, repository, digest string) (io.ReadCloser, error)
}

// AuthenticatorFactory builds the RegistryAuthenticator matching an image reference
type AuthenticatorFactory interface {
	NewAuthenticator(ctx context.Context, image domain.ImageReference) (RegistryAuthenticator, error)
}

// LayerInspector is the port implemented by adapters searching a compressed layer stream
type LayerInspector interface {
	Find(r io.Reader, prefix, filename string) (domain.FoundFile, bool, error)
}
