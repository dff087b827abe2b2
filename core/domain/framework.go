package domain

import "fmt"

// HarnessIR describes one evaluation framework bundled in one container image
type HarnessIR struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	FullName        string `json:"full_name,omitempty"`
	URL             string `json:"url,omitempty"`
	Source          string `json:"source,omitempty"`
	Container       string `json:"container"`
	ContainerDigest string `json:"container_digest,omitempty"`
}

// TaskIR describes one evaluation task offered by a harness
type TaskIR struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Harness         string         `json:"harness"`
	Container       string         `json:"container"`
	ContainerDigest string         `json:"container_digest,omitempty"`
	Defaults        map[string]any `json:"defaults"`
}

// Key returns the mapping key of the task
func (t TaskIR) Key() TaskKey {
	return TaskKey{Harness: t.Harness, Task: t.Name}
}

// DeepMerge returns a new map with override merged on top of base.
// Nested maps are merged recursively, any other value (lists included) from
// override replaces the one from base. Neither argument is modified.
func DeepMerge(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = copyValue(v)
	}
	for k, v := range override {
		if overrideMap, ok := asMap(v); ok {
			if baseMap, ok := asMap(merged[k]); ok {
				merged[k] = DeepMerge(baseMap, overrideMap)
				continue
			}
		}
		merged[k] = copyValue(v)
	}
	return merged
}

// NormalizeMap converts nested map[any]any values, as produced by some YAML
// decoders, into map[string]any.
func NormalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := asMap(m)
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = copyValue(val)
		}
		return out, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = copyValue(val)
		}
		return out, true
	default:
		return nil, false
	}
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any, map[any]any:
		m, _ := asMap(val)
		return m
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = copyValue(val[i])
		}
		return out
	default:
		return v
	}
}
