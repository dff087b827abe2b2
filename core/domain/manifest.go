package domain

import (
	"strings"

	"github.com/google/go-containerregistry/pkg/v1/types"
)

// ManifestMediaTypes are advertised in the Accept header of manifest requests, in preference order
var ManifestMediaTypes = []types.MediaType{
	types.OCIManifestSchema1,
	types.DockerManifestSchema2,
	types.OCIImageIndex,
	types.DockerManifestList,
}

// ManifestAccept returns the Accept header value for manifest requests
func ManifestAccept() string {
	accept := make([]string, 0, len(ManifestMediaTypes))
	for _, mt := range ManifestMediaTypes {
		accept = append(accept, string(mt))
	}
	return strings.Join(accept, ", ")
}

// Manifest is the request-scoped view of an image manifest
type Manifest struct {
	SchemaVersion int64
	MediaType     string
	Layers        []LayerRef
	Raw           []byte
}

// LayerRef identifies one compressed layer blob
type LayerRef struct {
	Digest    string `json:"digest"`
	Size      int64  `json:"size"`
	MediaType string `json:"mediaType"`
}

// Size returns the sum of all layer sizes
func (m Manifest) Size() int64 {
	var total int64
	for _, l := range m.Layers {
		total += l.Size
	}
	return total
}
