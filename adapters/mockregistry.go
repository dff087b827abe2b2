package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
	"github.com/opencontainers/go-digest"
	"go.opentelemetry.io/otel"
)

type mockImage struct {
	manifest domain.Manifest
	digest   string
}

// MockRegistry implements a mocked RegistryAuthenticator serving in-memory images,
// it is also its own AuthenticatorFactory
type MockRegistry struct {
	mu              sync.Mutex
	images          map[string]mockImage
	blobs           map[string][]byte
	blobDelays      map[string]time.Duration
	blobErrors      map[string]error
	authErr         error
	manifestErr     error
	blobFetches     int
	manifestFetches int
}

var _ ports.RegistryAuthenticator = (*MockRegistry)(nil)
var _ ports.AuthenticatorFactory = (*MockRegistry)(nil)

// NewMockRegistry initializes an empty MockRegistry
func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		images:     map[string]mockImage{},
		blobs:      map[string][]byte{},
		blobDelays: map[string]time.Duration{},
		blobErrors: map[string]error{},
	}
}

// AddImage registers repository:reference with the given layers, in manifest order.
// An empty manifestDigest simulates a registry from which no digest can be obtained.
// It returns the layer digests.
func (m *MockRegistry) AddImage(repository, reference, manifestDigest string, layers ...[]byte) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	manifest := domain.Manifest{
		SchemaVersion: 2,
		MediaType:     string(types.OCIManifestSchema1),
	}
	digests := make([]string, 0, len(layers))
	for _, l := range layers {
		d := digest.FromBytes(l).String()
		m.blobs[d] = l
		digests = append(digests, d)
		manifest.Layers = append(manifest.Layers, domain.LayerRef{
			Digest:    d,
			Size:      int64(len(l)),
			MediaType: string(types.OCILayer),
		})
	}
	m.images[repository+":"+reference] = mockImage{manifest: manifest, digest: manifestDigest}
	return digests
}

// FailAuthentication makes every Authenticate call return err
func (m *MockRegistry) FailAuthentication(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authErr = err
}

// FailManifest makes manifest fetches return err, the digest is still returned
func (m *MockRegistry) FailManifest(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifestErr = err
}

// FailBlob makes fetches of blob dgst return err
func (m *MockRegistry) FailBlob(dgst string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobErrors[dgst] = err
}

// DelayBlob slows down fetches of blob dgst
func (m *MockRegistry) DelayBlob(dgst string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobDelays[dgst] = d
}

// BlobFetches returns how many blobs were requested so far
func (m *MockRegistry) BlobFetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobFetches
}

// ManifestFetches returns how many manifests were requested so far
func (m *MockRegistry) ManifestFetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.manifestFetches
}

func (m *MockRegistry) NewAuthenticator(context.Context, domain.ImageReference) (ports.RegistryAuthenticator, error) {
	return m, nil
}

func (m *MockRegistry) Authenticate(ctx context.Context, _ string) error {
	_, span := otel.Tracer("").Start(ctx, "MockRegistry.Authenticate")
	defer span.End()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authErr
}

func (m *MockRegistry) GetManifestAndDigest(ctx context.Context, repository, reference string) (domain.Manifest, string, error) {
	_, span := otel.Tracer("").Start(ctx, "MockRegistry.GetManifestAndDigest")
	defer span.End()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifestFetches++
	img, ok := m.images[repository+":"+reference]
	if !ok {
		return domain.Manifest{}, "", fmt.Errorf("%w: manifest %s:%s", domain.ErrNotFound, repository, reference)
	}
	if m.manifestErr != nil {
		return domain.Manifest{}, img.digest, m.manifestErr
	}
	return img.manifest, img.digest, nil
}

func (m *MockRegistry) GetBlob(ctx context.Context, _ string, dgst string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.blobFetches++
	blob, ok := m.blobs[dgst]
	delay := m.blobDelays[dgst]
	err := m.blobErrors[dgst]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", domain.ErrNotFound, dgst)
	}
	return io.NopCloser(bytes.NewReader(blob)), nil
}
