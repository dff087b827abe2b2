package v1

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// TarInspector implements LayerInspector by streaming a layer's tar entries,
// the layer is never written to disk
type TarInspector struct {
	maxFileSize int64
}

var _ ports.LayerInspector = (*TarInspector)(nil)

// NewTarInspector initializes the TarInspector struct, maxFileSize <= 0 means no limit on the matched file
func NewTarInspector(maxFileSize int64) *TarInspector {
	return &TarInspector{
		maxFileSize: maxFileSize,
	}
}

// Find returns the first entry whose path starts with prefix and whose base name is filename.
// Paths are compared without case folding, leading "./" and "/" are ignored on both sides.
// Only regular files match.
func (t *TarInspector) Find(r io.Reader, prefix, filename string) (domain.FoundFile, bool, error) {
	stream, closer, err := decompress(r)
	if err != nil {
		return domain.FoundFile{}, false, err
	}
	defer closer()

	wantPrefix := normalizeEntryPath(prefix)
	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return domain.FoundFile{}, false, nil
		}
		if err != nil {
			return domain.FoundFile{}, false, fmt.Errorf("failed to read layer archive: %w", err)
		}
		// links, including hard links to a matching file, are not followed
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := normalizeEntryPath(hdr.Name)
		if !strings.HasPrefix(name, wantPrefix) || path.Base(name) != filename {
			continue
		}
		if t.maxFileSize > 0 && hdr.Size > t.maxFileSize {
			return domain.FoundFile{}, false, fmt.Errorf("%s exceeds size limit (%d bytes): actual size %d bytes", hdr.Name, t.maxFileSize, hdr.Size)
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return domain.FoundFile{}, false, fmt.Errorf("failed to read %s from layer: %w", hdr.Name, err)
		}
		return domain.FoundFile{Path: "/" + name, Content: content}, true, nil
	}
}

func normalizeEntryPath(p string) string {
	p = strings.TrimPrefix(p, "./")
	return strings.TrimLeft(p, "/")
}

// decompress sniffs the stream and unwraps gzip or zstd, anything else is read as a plain tar
func decompress(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("failed to read layer header: %w", err)
	}
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open gzip layer: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open zstd layer: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return br, func() {}, nil
	}
}
