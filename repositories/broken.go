package repositories

import (
	"context"
	"errors"

	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
)

// BrokenStore is a DigestCache that never holds anything and fails every write
type BrokenStore struct{}

var _ ports.DigestCache = (*BrokenStore)(nil)

func (b BrokenStore) Read(context.Context, domain.CacheKey, string) ([]byte, bool) {
	return nil, false
}

func (b BrokenStore) Write(context.Context, domain.CacheKey, []byte, string) error {
	return errors.New("expected error")
}

func (b BrokenStore) Delete(context.Context, domain.CacheKey) error {
	return errors.New("expected error")
}

func (b BrokenStore) Purge(context.Context) error {
	return errors.New("expected error")
}
