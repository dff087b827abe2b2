package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepMerge(t *testing.T) {
	tests := []struct {
		name     string
		base     map[string]any
		override map[string]any
		want     map[string]any
	}{
		{
			name:     "nested maps merge, override wins",
			base:     map[string]any{"a": map[string]any{"x": 1, "y": 2}},
			override: map[string]any{"a": map[string]any{"y": 3, "z": 4}},
			want:     map[string]any{"a": map[string]any{"x": 1, "y": 3, "z": 4}},
		},
		{
			name:     "lists are replaced",
			base:     map[string]any{"stop": []any{"a", "b"}},
			override: map[string]any{"stop": []any{"c"}},
			want:     map[string]any{"stop": []any{"c"}},
		},
		{
			name:     "scalar replaces map",
			base:     map[string]any{"a": map[string]any{"x": 1}},
			override: map[string]any{"a": "flat"},
			want:     map[string]any{"a": "flat"},
		},
		{
			name:     "map replaces scalar",
			base:     map[string]any{"a": 1},
			override: map[string]any{"a": map[string]any{"x": 1}},
			want:     map[string]any{"a": map[string]any{"x": 1}},
		},
		{
			name:     "yaml style keys",
			base:     map[string]any{"a": map[any]any{"x": 1}},
			override: map[string]any{"a": map[any]any{1: "one"}},
			want:     map[string]any{"a": map[string]any{"x": 1, "1": "one"}},
		},
		{
			name: "nil inputs",
			want: map[string]any{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeepMerge(tt.base, tt.override))
		})
	}
}

func TestDeepMerge_DoesNotModifyInputs(t *testing.T) {
	base := map[string]any{"a": map[string]any{"x": 1}, "l": []any{1}}
	override := map[string]any{"a": map[string]any{"y": 2}}
	merged := DeepMerge(base, override)
	merged["a"].(map[string]any)["x"] = 100
	merged["l"].([]any)[0] = 100
	assert.Equal(t, map[string]any{"a": map[string]any{"x": 1}, "l": []any{1}}, base)
	assert.Equal(t, map[string]any{"a": map[string]any{"y": 2}}, override)
}

func TestTaskIR_Key(t *testing.T) {
	key := TaskIR{Name: "mmlu", Harness: "lm-eval"}.Key()
	assert.Equal(t, TaskKey{Harness: "lm-eval", Task: "mmlu"}, key)
	assert.Equal(t, "lm-eval.mmlu", key.String())
}

func TestParseTaskQuery(t *testing.T) {
	tests := []struct {
		query string
		want  TaskKey
	}{
		{query: "mmlu", want: TaskKey{Task: "mmlu"}},
		{query: "lm-eval.mmlu", want: TaskKey{Harness: "lm-eval", Task: "mmlu"}},
		{query: "lm-eval.mmlu.stem", want: TaskKey{Harness: "lm-eval", Task: "mmlu.stem"}},
		{query: ".mmlu", want: TaskKey{Task: ".mmlu"}},
		{query: "mmlu.", want: TaskKey{Task: "mmlu."}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTaskQuery(tt.query))
		})
	}
}
