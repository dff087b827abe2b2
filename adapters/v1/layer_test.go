package v1

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kubescape/evalresolver/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarInspector_Find(t *testing.T) {
	files := []tools.LayerFile{
		{Name: "./opt/", Dir: true},
		{Name: "./opt/metadata/", Dir: true},
		{Name: "./opt/metadata/README.md", Content: "readme"},
		{Name: "./opt/metadata/framework.yml", Content: "first"},
		{Name: "./opt/metadata/nested/framework.yml", Content: "second"},
	}
	tests := []struct {
		name     string
		layer    []byte
		prefix   string
		filename string
		wantPath string
		want     string
		found    bool
	}{
		{
			name:     "gzip, first match",
			layer:    tools.GzipLayer(files...),
			prefix:   "/opt/metadata",
			filename: "framework.yml",
			wantPath: "/opt/metadata/framework.yml",
			want:     "first",
			found:    true,
		},
		{
			name:     "zstd",
			layer:    tools.ZstdLayer(files...),
			prefix:   "/opt/metadata",
			filename: "framework.yml",
			wantPath: "/opt/metadata/framework.yml",
			want:     "first",
			found:    true,
		},
		{
			name:     "plain tar, absolute entry names",
			layer:    tools.TarLayer(tools.LayerFile{Name: "/opt/metadata/framework.yml", Content: "abs"}),
			prefix:   "opt/metadata",
			filename: "framework.yml",
			wantPath: "/opt/metadata/framework.yml",
			want:     "abs",
			found:    true,
		},
		{
			name:     "nested prefix",
			layer:    tools.GzipLayer(files...),
			prefix:   "/opt/metadata/nested",
			filename: "framework.yml",
			wantPath: "/opt/metadata/nested/framework.yml",
			want:     "second",
			found:    true,
		},
		{
			name:     "no case folding",
			layer:    tools.GzipLayer(files...),
			prefix:   "/opt/metadata",
			filename: "Framework.yml",
		},
		{
			name:     "outside prefix",
			layer:    tools.GzipLayer(tools.LayerFile{Name: "etc/framework.yml", Content: "x"}),
			prefix:   "/opt/metadata",
			filename: "framework.yml",
		},
		{
			name:     "directory with the file name",
			layer:    tools.GzipLayer(tools.LayerFile{Name: "opt/metadata/framework.yml/", Dir: true}),
			prefix:   "/opt/metadata",
			filename: "framework.yml",
		},
		{
			name: "hard link is not followed",
			layer: tools.GzipLayer(
				tools.LayerFile{Name: "opt/data/framework.yml", Content: "target"},
				tools.LayerFile{Name: "opt/metadata/framework.yml", Link: "opt/data/framework.yml"},
			),
			prefix:   "/opt/metadata",
			filename: "framework.yml",
		},
		{
			name: "regular file after a hard link",
			layer: tools.GzipLayer(
				tools.LayerFile{Name: "opt/data/framework.yml", Content: "target"},
				tools.LayerFile{Name: "opt/metadata/framework.yml", Link: "opt/data/framework.yml"},
				tools.LayerFile{Name: "opt/metadata/sub/framework.yml", Content: "regular"},
			),
			prefix:   "/opt/metadata",
			filename: "framework.yml",
			wantPath: "/opt/metadata/sub/framework.yml",
			want:     "regular",
			found:    true,
		},
		{
			name:     "empty layer",
			layer:    tools.GzipLayer(),
			prefix:   "/opt/metadata",
			filename: "framework.yml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, ok, err := NewTarInspector(0).Find(bytes.NewReader(tt.layer), tt.prefix, tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.wantPath, found.Path)
				assert.Equal(t, tt.want, string(found.Content))
			}
		})
	}
}

func TestTarInspector_Errors(t *testing.T) {
	_, _, err := NewTarInspector(0).Find(bytes.NewReader([]byte{0x1f, 0x8b, 0x00, 0x01}), "/opt", "framework.yml")
	assert.Error(t, err)

	big := tools.GzipLayer(tools.LayerFile{Name: "opt/metadata/framework.yml", Content: strings.Repeat("x", 64)})
	_, _, err = NewTarInspector(16).Find(bytes.NewReader(big), "/opt/metadata", "framework.yml")
	assert.ErrorContains(t, err, "exceeds size limit")

	_, _, err = NewTarInspector(0).Find(strings.NewReader(strings.Repeat("garbage!", 100)), "/opt", "framework.yml")
	assert.Error(t, err)
}
