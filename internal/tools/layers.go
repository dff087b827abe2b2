package tools

import (
	"archive/tar"
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// LayerFile is one entry of a synthetic layer, an empty Content with Dir set makes a directory
type LayerFile struct {
	Name    string
	Content string
	Dir     bool
	// Link makes the entry a hard link to another entry of the layer
	Link    string
}

// TarLayer builds an uncompressed layer from files, in order
func TarLayer(files ...LayerFile) []byte {
	var buf bytes.Buffer
	writeTar(&buf, files)
	return buf.Bytes()
}

// GzipLayer builds a tar+gzip layer from files, in order
func GzipLayer(files ...LayerFile) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	writeTar(gz, files)
	if err := gz.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// ZstdLayer builds a tar+zstd layer from files, in order
func ZstdLayer(files ...LayerFile) []byte {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		panic(err)
	}
	writeTar(zw, files)
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func writeTar(w io.Writer, files []LayerFile) {
	tw := tar.NewWriter(w)
	for _, f := range files {
		hdr := &tar.Header{
			Name:     f.Name,
			Mode:     0o644,
			Size:     int64(len(f.Content)),
			Typeflag: tar.TypeReg,
		}
		if f.Dir {
			hdr.Mode = 0o755
			hdr.Size = 0
			hdr.Typeflag = tar.TypeDir
		}
		if f.Link != "" {
			hdr.Size = 0
			hdr.Typeflag = tar.TypeLink
			hdr.Linkname = f.Link
		}
		if err := tw.WriteHeader(hdr); err != nil {
			panic(err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(f.Content)); err != nil {
				panic(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		panic(err)
	}
}
