package services

import (
	"context"

	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
)

type MockResolveService struct {
	happy bool
}

var _ ports.ResolveService = (*MockResolveService)(nil)

func NewMockResolveService(happy bool) *MockResolveService {
	return &MockResolveService{happy: happy}
}

func (m MockResolveService) Lookup(_ context.Context, query, container string) (domain.TaskMappingEntry, error) {
	if !m.happy {
		return domain.TaskMappingEntry{}, &domain.TaskNotFoundError{Query: query}
	}
	key := domain.ParseTaskQuery(query)
	if key.Harness == "" {
		key.Harness = "mock"
	}
	if container == "" {
		container = "registry.example.com/mock:1.0"
	}
	return domain.TaskMappingEntry{
		Key: key,
		Task: domain.TaskIR{
			Name:      key.Task,
			Harness:   key.Harness,
			Container: container,
			Defaults:  map[string]any{},
		},
	}, nil
}

func (m MockResolveService) Ready(context.Context) bool {
	return m.happy
}

func (m MockResolveService) Resolve(_ context.Context, containers []string, _ bool) (domain.ResolveResult, error) {
	if !m.happy {
		return domain.ResolveResult{}, domain.ErrNetwork
	}
	var result domain.ResolveResult
	for _, c := range containers {
		result.Harnesses = append(result.Harnesses, domain.HarnessIR{Name: "mock", Container: c})
		result.Tasks = append(result.Tasks, domain.TaskMappingEntry{
			Key:  domain.TaskKey{Harness: "mock", Task: "task"},
			Task: domain.TaskIR{Name: "task", Harness: "mock", Container: c, Defaults: map[string]any{}},
		})
	}
	return result, nil
}
