package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImageReference(t *testing.T) {
	hosts := RegistryHosts{GitLab: []string{"registry.internal.example.com"}}
	tests := []struct {
		raw     string
		want    ImageReference
		wantErr bool
	}{
		{
			raw: "gitlab-master.example.com:5005/dl/ci-llm/lm-eval:25.01",
			want: ImageReference{
				Registry:   "gitlab-master.example.com:5005",
				Repository: "dl/ci-llm/lm-eval",
				Tag:        "25.01",
				Type:       RegistryGitLab,
			},
		},
		{
			raw: "nvcr.io/nvidia/eval-factory/simple-evals@sha256:5b0bcabd1ed22e9fb1310cf6c2dec7cdef19f0ad69efa1f392e94a4333501270",
			want: ImageReference{
				Registry:   "nvcr.io",
				Repository: "nvidia/eval-factory/simple-evals",
				Digest:     "sha256:5b0bcabd1ed22e9fb1310cf6c2dec7cdef19f0ad69efa1f392e94a4333501270",
				Type:       RegistryNGC,
			},
		},
		{
			raw: "registry.internal.example.com/team/harness:1.0",
			want: ImageReference{
				Registry:   "registry.internal.example.com",
				Repository: "team/harness",
				Tag:        "1.0",
				Type:       RegistryGitLab,
			},
		},
		{
			raw: "registry.example.com:5000/plain-name",
			want: ImageReference{
				Registry:   "registry.example.com:5000",
				Repository: "plain-name",
				Tag:        "latest",
				Type:       RegistryGeneric,
			},
		},
		{
			raw:     "Not A Reference",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseImageReference(tt.raw, hosts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.want.Raw = tt.raw
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImageReference_Reference(t *testing.T) {
	assert.Equal(t, "1.0", ImageReference{Tag: "1.0"}.Reference())
	assert.Equal(t, "sha256:abc", ImageReference{Tag: "1.0", Digest: "sha256:abc"}.Reference())
}

func TestDetectRegistryType(t *testing.T) {
	hosts := RegistryHosts{NGC: []string{"ngc.mirror.example.com"}}
	assert.Equal(t, RegistryNGC, DetectRegistryType("nvcr.io", hosts))
	assert.Equal(t, RegistryNGC, DetectRegistryType("stg.nvcr.io", hosts))
	assert.Equal(t, RegistryNGC, DetectRegistryType("NGC.mirror.example.com", hosts))
	assert.Equal(t, RegistryGitLab, DetectRegistryType("gitlab.example.com:5005", hosts))
	assert.Equal(t, RegistryGeneric, DetectRegistryType("ghcr.io", hosts))
}

func TestErrors(t *testing.T) {
	err := error(&AmbiguousTaskError{Query: "mmlu", Matches: []string{"a.mmlu", "b.mmlu"}})
	assert.True(t, errors.Is(err, ErrAmbiguousTask))
	assert.Equal(t, `task "mmlu" is ambiguous, specify harness.task, one of: a.mmlu, b.mmlu`, err.Error())
	assert.True(t, errors.Is(&TaskNotFoundError{Query: "arc"}, ErrTaskNotFound))
	assert.True(t, Anonymous().IsAnonymous())
	assert.Equal(t, SourceAnonymous, Anonymous().Source)
}
