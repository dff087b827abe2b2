package ports

import (
	"context"

	"github.com/kubescape/evalresolver/core/domain"
)

// FrameworkService is the port implemented by the business component extracting framework.yml
type FrameworkService interface {
	ExtractFrameworkYML(ctx context.Context, container string) (domain.Resolution, error)
}

// ResolveService is the port implemented by the business component building task mappings
type ResolveService interface {
	Lookup(ctx context.Context, query, container string) (domain.TaskMappingEntry, error)
	Ready(ctx context.Context) bool
	Resolve(ctx context.Context, containers []string, useCache bool) (domain.ResolveResult, error)
}
