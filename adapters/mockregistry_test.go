package adapters

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/kubescape/evalresolver/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRegistry_GetManifestAndDigest(t *testing.T) {
	m := NewMockRegistry()
	layers := m.AddImage("team/harness", "1.0", "sha256:abc", []byte("one"), []byte("two"))
	manifest, dgst, err := m.GetManifestAndDigest(context.TODO(), "team/harness", "1.0")
	require.NoError(t, err)
	assert.Equal(t, "sha256:abc", dgst)
	require.Len(t, manifest.Layers, 2)
	assert.Equal(t, layers[0], manifest.Layers[0].Digest)
	assert.Equal(t, 1, m.ManifestFetches())

	_, _, err = m.GetManifestAndDigest(context.TODO(), "team/harness", "2.0")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestMockRegistry_GetBlob(t *testing.T) {
	m := NewMockRegistry()
	layers := m.AddImage("team/harness", "1.0", "", []byte("one"))
	rc, err := m.GetBlob(context.TODO(), "team/harness", layers[0])
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "one", string(b))
	assert.Equal(t, 1, m.BlobFetches())

	m.FailBlob(layers[0], domain.ErrNetwork)
	_, err = m.GetBlob(context.TODO(), "team/harness", layers[0])
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestMockRegistry_Failures(t *testing.T) {
	m := NewMockRegistry()
	m.AddImage("team/harness", "1.0", "sha256:abc")
	m.FailAuthentication(domain.ErrAuthentication)
	assert.ErrorIs(t, m.Authenticate(context.TODO(), "team/harness"), domain.ErrAuthentication)

	m.FailManifest(domain.ErrNetwork)
	_, dgst, err := m.GetManifestAndDigest(context.TODO(), "team/harness", "1.0")
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, "sha256:abc", dgst)
}

func TestMockCredentialHelper_Get(t *testing.T) {
	m := NewMockCredentialHelper(map[string]domain.RegistryCredentials{
		"desktop/registry.example.com": {Username: "user", Password: "secret"},
	})
	creds, ok := m.Get(context.TODO(), "desktop", "registry.example.com")
	assert.True(t, ok)
	assert.Equal(t, domain.SourceCredsHelper, creds.Source)
	_, ok = m.Get(context.TODO(), "desktop", "other.example.com")
	assert.False(t, ok)
	assert.Equal(t, []string{"desktop/registry.example.com", "desktop/other.example.com"}, m.Calls())
}
