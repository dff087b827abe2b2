package domain

import "context"

const (
	// FrameworkPrefix is where harness images ship their metadata
	FrameworkPrefix = "/opt/metadata"
	// FrameworkFilename is the framework definition file (FDF)
	FrameworkFilename = "framework.yml"
)

type ResolutionIDKey struct{}

// ResolutionID returns the resolution ID stored in the context, if any
func ResolutionID(ctx context.Context) string {
	id, _ := ctx.Value(ResolutionIDKey{}).(string)
	return id
}

// CacheKey addresses one extracted file of one image reference
type CacheKey struct {
	ImageRef   string
	TargetPath string
}

// DigestCacheEntry is the persisted form of an extracted file. It is only
// valid for the manifest whose digest equals ImageDigest.
type DigestCacheEntry struct {
	ImageRef    string `json:"image_ref"`
	TargetPath  string `json:"target_path"`
	Content     []byte `json:"content"`
	ImageDigest string `json:"image_digest"`
	StoredAt    int64  `json:"stored_at"`
}

// FoundFile is a file located inside a layer
type FoundFile struct {
	Path    string
	Content []byte
}

// Resolution is the outcome of extracting framework.yml from one image.
// Digest and Content are independent: a digest may be known even when the
// content could not be obtained.
type Resolution struct {
	Content []byte
	Found   bool
	Digest  string
	Path    string
}
