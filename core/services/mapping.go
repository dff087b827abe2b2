package services

import (
	"context"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
)

// TaskMappingIndex maps (harness, task) pairs to their task definitions.
// It is not safe for concurrent mutation, readers may share a built index.
type TaskMappingIndex struct {
	entries map[domain.TaskKey]domain.TaskMappingEntry
	order   []domain.TaskKey
}

// NewTaskMappingIndex returns an empty index
func NewTaskMappingIndex() *TaskMappingIndex {
	return &TaskMappingIndex{
		entries: map[domain.TaskKey]domain.TaskMappingEntry{},
	}
}

// BuildTaskMapping indexes tasks, the first occurrence of a duplicate key is kept
func BuildTaskMapping(ctx context.Context, tasks []domain.TaskIR) *TaskMappingIndex {
	m := NewTaskMappingIndex()
	for _, t := range tasks {
		m.Add(ctx, t)
	}
	return m
}

// Add indexes task and reports whether it was kept
func (m *TaskMappingIndex) Add(ctx context.Context, task domain.TaskIR) bool {
	key := task.Key()
	if existing, ok := m.entries[key]; ok {
		logger.L().Ctx(ctx).Warning("duplicate task in mapping, keeping the first one",
			helpers.String("task", key.String()),
			helpers.String("kept", existing.Task.Container),
			helpers.String("dropped", task.Container))
		return false
	}
	m.entries[key] = domain.TaskMappingEntry{Key: key, Task: task}
	m.order = append(m.order, key)
	return true
}

// Merge adds every entry of other not already present, in other's order
func (m *TaskMappingIndex) Merge(ctx context.Context, other *TaskMappingIndex) {
	if other == nil {
		return
	}
	for _, key := range other.order {
		m.Add(ctx, other.entries[key].Task)
	}
}

// Len returns the number of indexed tasks
func (m *TaskMappingIndex) Len() int {
	return len(m.order)
}

// Keys returns the indexed keys in insertion order
func (m *TaskMappingIndex) Keys() []domain.TaskKey {
	return append([]domain.TaskKey(nil), m.order...)
}

// Entries returns the indexed entries in insertion order
func (m *TaskMappingIndex) Entries() []domain.TaskMappingEntry {
	entries := make([]domain.TaskMappingEntry, 0, len(m.order))
	for _, key := range m.order {
		entries = append(entries, m.entries[key])
	}
	return entries
}

// Harnesses returns the set of harness names present in the index
func (m *TaskMappingIndex) Harnesses() mapset.Set[string] {
	harnesses := mapset.NewThreadUnsafeSet[string]()
	for _, key := range m.order {
		harnesses.Add(key.Harness)
	}
	return harnesses
}

// Lookup resolves a "task" or "harness.task" query. A bare name must match exactly one
// harness. With allowMissing an unknown task yields a nil entry instead of an error,
// ambiguous queries always fail.
func (m *TaskMappingIndex) Lookup(query string, allowMissing bool) (*domain.TaskMappingEntry, error) {
	key := domain.ParseTaskQuery(query)
	if key.Harness != "" {
		if entry, ok := m.entries[key]; ok {
			return &entry, nil
		}
		return m.missing(query, allowMissing)
	}

	var matches []domain.TaskKey
	for _, k := range m.order {
		if k.Task == key.Task {
			matches = append(matches, k)
		}
	}
	switch len(matches) {
	case 0:
		return m.missing(query, allowMissing)
	case 1:
		entry := m.entries[matches[0]]
		return &entry, nil
	default:
		names := make([]string, 0, len(matches))
		for _, k := range matches {
			names = append(names, k.String())
		}
		sort.Strings(names)
		return nil, &domain.AmbiguousTaskError{Query: query, Matches: names}
	}
}

func (m *TaskMappingIndex) missing(query string, allowMissing bool) (*domain.TaskMappingEntry, error) {
	if allowMissing {
		return nil, nil
	}
	return nil, &domain.TaskNotFoundError{Query: query}
}

// LookupOrPlaceholder behaves like Lookup but, when the task is unknown and a container is
// given, returns an unvalidated placeholder entry running the task in that container
func (m *TaskMappingIndex) LookupOrPlaceholder(ctx context.Context, query, container string) (domain.TaskMappingEntry, error) {
	entry, err := m.Lookup(query, container != "")
	if err != nil {
		return domain.TaskMappingEntry{}, err
	}
	if entry != nil {
		return *entry, nil
	}
	key := domain.ParseTaskQuery(query)
	logger.L().Ctx(ctx).Warning("task is not in any known mapping, running it unvalidated",
		helpers.String("task", query),
		helpers.String("container", container))
	return domain.TaskMappingEntry{
		Key: key,
		Task: domain.TaskIR{
			Name:      key.Task,
			Harness:   key.Harness,
			Container: container,
			Defaults:  map[string]any{},
		},
		Unvalidated: true,
	}, nil
}
