package services

import (
	"context"
	"errors"
	"testing"

	"github.com/kubescape/evalresolver/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/assert/cmp"
	gotest "gotest.tools/v3/assert"
)

func task(harness, name, container string) domain.TaskIR {
	return domain.TaskIR{
		Name:      name,
		Harness:   harness,
		Container: container,
		Defaults:  map[string]any{},
	}
}

func testMapping() *TaskMappingIndex {
	return BuildTaskMapping(context.TODO(), []domain.TaskIR{
		task("lm-eval", "mmlu", "lm-eval:1"),
		task("lm-eval", "gsm8k", "lm-eval:1"),
		task("simple-evals", "mmlu", "simple-evals:1"),
		task("helm", "boolq", "helm:1"),
	})
}

func TestTaskMappingIndex_Lookup(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		allowMissing bool
		want         *domain.TaskKey
		wantErr      error
	}{
		{
			name:  "bare name, single match",
			query: "gsm8k",
			want:  &domain.TaskKey{Harness: "lm-eval", Task: "gsm8k"},
		},
		{
			name:    "bare name, ambiguous",
			query:   "mmlu",
			wantErr: domain.ErrAmbiguousTask,
		},
		{
			name:         "ambiguous even when missing is allowed",
			query:        "mmlu",
			allowMissing: true,
			wantErr:      domain.ErrAmbiguousTask,
		},
		{
			name:  "dotted, exact",
			query: "simple-evals.mmlu",
			want:  &domain.TaskKey{Harness: "simple-evals", Task: "mmlu"},
		},
		{
			name:    "dotted, wrong harness",
			query:   "helm.mmlu",
			wantErr: domain.ErrTaskNotFound,
		},
		{
			name:    "unknown",
			query:   "arc",
			wantErr: domain.ErrTaskNotFound,
		},
		{
			name:         "unknown allowed",
			query:        "arc",
			allowMissing: true,
		},
	}
	m := testMapping()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Lookup(tt.query, tt.allowMissing)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, got.Key)
			assert.Equal(t, tt.want.Harness, got.Task.Harness)
			assert.False(t, got.Unvalidated)
		})
	}
}

func TestTaskMappingIndex_AmbiguousListsEveryMatch(t *testing.T) {
	_, err := testMapping().Lookup("mmlu", false)
	var ambiguous *domain.AmbiguousTaskError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, []string{"lm-eval.mmlu", "simple-evals.mmlu"}, ambiguous.Matches)
	gotest.Assert(t, cmp.Contains(err.Error(), "lm-eval.mmlu, simple-evals.mmlu"))
}

func TestTaskMappingIndex_DuplicatesFirstWins(t *testing.T) {
	m := BuildTaskMapping(context.TODO(), []domain.TaskIR{
		task("lm-eval", "mmlu", "first:1"),
		task("lm-eval", "mmlu", "second:1"),
	})
	assert.Equal(t, 1, m.Len())
	entry, err := m.Lookup("lm-eval.mmlu", false)
	require.NoError(t, err)
	assert.Equal(t, "first:1", entry.Task.Container)
}

func TestTaskMappingIndex_Merge(t *testing.T) {
	m := testMapping()
	m.Merge(context.TODO(), BuildTaskMapping(context.TODO(), []domain.TaskIR{
		task("helm", "boolq", "other:1"),
		task("helm", "hellaswag", "helm:1"),
	}))
	m.Merge(context.TODO(), nil)
	assert.Equal(t, []domain.TaskKey{
		{Harness: "lm-eval", Task: "mmlu"},
		{Harness: "lm-eval", Task: "gsm8k"},
		{Harness: "simple-evals", Task: "mmlu"},
		{Harness: "helm", Task: "boolq"},
		{Harness: "helm", Task: "hellaswag"},
	}, m.Keys())
	entry, err := m.Lookup("boolq", false)
	require.NoError(t, err)
	assert.Equal(t, "helm:1", entry.Task.Container)

	harnesses := m.Harnesses()
	assert.Equal(t, 3, harnesses.Cardinality())
	assert.True(t, harnesses.Contains("lm-eval", "simple-evals", "helm"))
	assert.Len(t, m.Entries(), 5)
}

func TestTaskMappingIndex_LookupOrPlaceholder(t *testing.T) {
	m := testMapping()

	entry, err := m.LookupOrPlaceholder(context.TODO(), "gsm8k", "")
	require.NoError(t, err)
	assert.False(t, entry.Unvalidated)

	entry, err = m.LookupOrPlaceholder(context.TODO(), "custom.arc", "registry.example.com/custom:1")
	require.NoError(t, err)
	assert.True(t, entry.Unvalidated)
	assert.Equal(t, domain.TaskIR{
		Name:      "arc",
		Harness:   "custom",
		Container: "registry.example.com/custom:1",
		Defaults:  map[string]any{},
	}, entry.Task)

	_, err = m.LookupOrPlaceholder(context.TODO(), "arc", "")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	_, err = m.LookupOrPlaceholder(context.TODO(), "mmlu", "registry.example.com/custom:1")
	assert.ErrorIs(t, err, domain.ErrAmbiguousTask)
}
