package ports

import (
	"context"

	"github.com/kubescape/evalresolver/core/domain"
)

// DigestCache is the port implemented by adapters storing extracted files keyed by image digest.
// Read never fails: missing, corrupt and stale entries are all reported as a miss.
type DigestCache interface {
	Read(ctx context.Context, key domain.CacheKey, expectedDigest string) ([]byte, bool)
	Write(ctx context.Context, key domain.CacheKey, content []byte, digest string) error
	Delete(ctx context.Context, key domain.CacheKey) error
	Purge(ctx context.Context) error
}
