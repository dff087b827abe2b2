package domain

import (
	"fmt"
	"strings"
)

// TaskKey uniquely identifies a task across all known harnesses
type TaskKey struct {
	Harness string
	Task    string
}

func (k TaskKey) String() string {
	return fmt.Sprintf("%s.%s", k.Harness, k.Task)
}

// ParseTaskQuery splits a "harness.task" query, a bare task name yields an empty harness.
// Only the first dot separates the harness, task names may contain dots themselves.
func ParseTaskQuery(query string) TaskKey {
	if harness, task, ok := strings.Cut(query, "."); ok && harness != "" && task != "" {
		return TaskKey{Harness: harness, Task: task}
	}
	return TaskKey{Task: query}
}

// TaskMappingEntry is one row of the task mapping index
type TaskMappingEntry struct {
	Key  TaskKey `json:"-"`
	Task TaskIR  `json:"task"`
	// Unvalidated marks placeholder entries built for tasks no known mapping contains
	Unvalidated bool `json:"unvalidated,omitempty"`
}

// ResolveResult is what a resolution of a set of containers produces
type ResolveResult struct {
	Harnesses []HarnessIR        `json:"harnesses"`
	Tasks     []TaskMappingEntry `json:"tasks"`
	Skipped   []string           `json:"skipped,omitempty"`
}
