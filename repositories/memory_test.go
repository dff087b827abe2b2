package repositories

import (
	"context"
	"testing"

	"github.com/kubescape/evalresolver/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_ReadWrite(t *testing.T) {
	m := NewMemoryStorage()
	ctx := context.TODO()
	key := domain.CacheKey{ImageRef: "nvcr.io/nvidia/eval-factory/simple-evals:25.07", TargetPath: "/opt/metadata/framework.yml"}
	got, ok := m.Read(ctx, key, "sha256:aaa")
	assert.False(t, ok)
	assert.Nil(t, got)
	_ = m.Write(ctx, key, []byte("framework: {}"), "sha256:aaa")
	got, ok = m.Read(ctx, key, "sha256:aaa")
	assert.True(t, ok)
	assert.Equal(t, []byte("framework: {}"), got)
	_, ok = m.Read(ctx, key, "sha256:bbb")
	assert.False(t, ok)
	_, ok = m.Read(ctx, key, "")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Writes())
	_ = m.Purge(ctx)
	_, ok = m.Read(ctx, key, "sha256:aaa")
	assert.False(t, ok)
}

func TestBrokenStore(t *testing.T) {
	b := BrokenStore{}
	ctx := context.TODO()
	key := domain.CacheKey{ImageRef: "img", TargetPath: "f"}
	assert.Error(t, b.Write(ctx, key, []byte("x"), "sha256:aaa"))
	_, ok := b.Read(ctx, key, "sha256:aaa")
	assert.False(t, ok)
}
