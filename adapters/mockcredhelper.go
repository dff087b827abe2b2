package adapters

import (
	"context"
	"sync"

	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
)

// MockCredentialHelper implements a mocked CredentialHelper to be used for tests
type MockCredentialHelper struct {
	secrets map[string]domain.RegistryCredentials
	mu      sync.Mutex
	calls   []string
}

var _ ports.CredentialHelper = (*MockCredentialHelper)(nil)

// NewMockCredentialHelper initializes the MockCredentialHelper struct with credentials keyed by "store/serverURL"
func NewMockCredentialHelper(secrets map[string]domain.RegistryCredentials) *MockCredentialHelper {
	return &MockCredentialHelper{
		secrets: secrets,
	}
}

func (m *MockCredentialHelper) Get(_ context.Context, store, serverURL string) (domain.RegistryCredentials, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, store+"/"+serverURL)
	creds, ok := m.secrets[store+"/"+serverURL]
	if !ok {
		return domain.RegistryCredentials{}, false
	}
	creds.Source = domain.SourceCredsHelper
	return creds, true
}

// Calls returns the "store/serverURL" pairs the helper was asked for
func (m *MockCredentialHelper) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
