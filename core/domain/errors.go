package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuthentication means the registry requires credentials we don't have, or rejected them
	ErrAuthentication = errors.New("registry authentication failed")
	// ErrNetwork covers unreachable registries, timeouts and malformed responses; callers may retry
	ErrNetwork = errors.New("registry unreachable")
	// ErrNotFound means the registry has no such manifest or blob
	ErrNotFound = errors.New("not found")
	// ErrCacheInvalid is never propagated, a cache entry carrying it is treated as a miss
	ErrCacheInvalid = errors.New("cache entry invalid")
	// ErrParse means framework.yml is empty, malformed or yields no harness name
	ErrParse = errors.New("invalid framework definition")
	ErrAmbiguousTask = errors.New("ambiguous task")
	ErrTaskNotFound  = errors.New("task not found")
)

// AmbiguousTaskError lists every harness.task pair matching a bare task query
type AmbiguousTaskError struct {
	Query   string
	Matches []string
}

func (e *AmbiguousTaskError) Error() string {
	return fmt.Sprintf("task %q is ambiguous, specify harness.task, one of: %s", e.Query, strings.Join(e.Matches, ", "))
}

func (e *AmbiguousTaskError) Unwrap() error {
	return ErrAmbiguousTask
}

// TaskNotFoundError is returned when no mapping entry matches a query
type TaskNotFoundError struct {
	Query string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %q not found in any known mapping", e.Query)
}

func (e *TaskNotFoundError) Unwrap() error {
	return ErrTaskNotFound
}
