package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
	"github.com/kubescape/evalresolver/internal/tools"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ResolveService implements ResolveService from ports, this is the business component
// turning harness containers into a task mapping
type ResolveService struct {
	framework ports.FrameworkService
	mu        sync.RWMutex
	index     *TaskMappingIndex
}

var _ ports.ResolveService = (*ResolveService)(nil)

// NewResolveService initializes the ResolveService with all injected dependencies
func NewResolveService(framework ports.FrameworkService) *ResolveService {
	return &ResolveService{
		framework: framework,
	}
}

// Resolve extracts and parses framework.yml from every container and replaces the current
// task mapping with the result. Containers that fail are reported in the returned error,
// the others still make it into the result.
func (s *ResolveService) Resolve(ctx context.Context, containers []string, useCache bool) (domain.ResolveResult, error) {
	ctx = context.WithValue(ctx, domain.ResolutionIDKey{}, uuid.NewString())
	ctx, span := otel.Tracer("").Start(ctx, "ResolveService.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("resolutionID", domain.ResolutionID(ctx)), attribute.Int("containers", len(containers)))
	if !useCache {
		ctx = WithForceRefresh(ctx)
	}
	logger.L().Ctx(ctx).Info("resolving harness containers",
		helpers.String("resolutionID", domain.ResolutionID(ctx)),
		helpers.Int("containers", len(containers)))

	var errs *multierror.Error
	var result domain.ResolveResult
	index := NewTaskMappingIndex()
	seen := map[string]struct{}{}
	for _, container := range containers {
		normalized := tools.NormalizeReference(container)
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}

		res, err := s.framework.ExtractFrameworkYML(ctx, container)
		if err != nil {
			logger.L().Ctx(ctx).Error("failed to resolve container",
				helpers.String("resolutionID", domain.ResolutionID(ctx)),
				helpers.String("container", container),
				helpers.String("digest", res.Digest),
				helpers.Error(err))
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", container, err))
			continue
		}
		if !res.Found {
			logger.L().Ctx(ctx).Info("container has no framework definition, skipping",
				helpers.String("container", container))
			result.Skipped = append(result.Skipped, container)
			continue
		}
		harness, tasks, err := ParseFramework(ctx, res.Content, container, res.Digest)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", container, err))
			continue
		}
		result.Harnesses = append(result.Harnesses, harness)
		index.Merge(ctx, BuildTaskMapping(ctx, tasks))
	}
	result.Tasks = index.Entries()

	// a resolution where every container failed keeps the previous mapping
	if errs != nil && len(result.Harnesses) == 0 && len(result.Skipped) == 0 {
		logger.L().Ctx(ctx).Warning("no container resolved, keeping the previous task mapping",
			helpers.String("resolutionID", domain.ResolutionID(ctx)),
			helpers.Error(errs))
		return result, errs.ErrorOrNil()
	}
	s.mu.Lock()
	s.index = index
	s.mu.Unlock()

	logger.L().Ctx(ctx).Info("resolution done",
		helpers.String("resolutionID", domain.ResolutionID(ctx)),
		helpers.Int("harnesses", index.Harnesses().Cardinality()),
		helpers.Int("tasks", len(result.Tasks)),
		helpers.Int("skipped", len(result.Skipped)))
	return result, errs.ErrorOrNil()
}

// Lookup queries the task mapping built by the last Resolve
func (s *ResolveService) Lookup(ctx context.Context, query, container string) (domain.TaskMappingEntry, error) {
	s.mu.RLock()
	index := s.index
	s.mu.RUnlock()
	if index == nil {
		index = NewTaskMappingIndex()
	}
	return index.LookupOrPlaceholder(ctx, query, container)
}

// Ready reports whether a task mapping has been built
func (s *ResolveService) Ready(context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index != nil
}
