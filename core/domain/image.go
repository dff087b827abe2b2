package domain

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// RegistryType selects the authentication flavour used against a registry host
type RegistryType string

const (
	RegistryGitLab  RegistryType = "gitlab"
	RegistryNGC     RegistryType = "ngc"
	RegistryGeneric RegistryType = "generic"
)

// RegistryHosts lists extra hosts that should be treated as a given registry type
type RegistryHosts struct {
	GitLab []string
	NGC    []string
}

// ImageReference is a container reference split into its registry coordinates
type ImageReference struct {
	Raw        string
	Registry   string
	Repository string
	Tag        string
	Digest     string
	Type       RegistryType
}

// ParseImageReference splits a container reference into registry, repository and tag or digest.
func ParseImageReference(raw string, hosts RegistryHosts) (ImageReference, error) {
	ref, err := name.ParseReference(strings.TrimSpace(raw))
	if err != nil {
		return ImageReference{}, fmt.Errorf("failed to parse image reference %s: %w", raw, err)
	}
	image := ImageReference{
		Raw:        raw,
		Registry:   ref.Context().RegistryStr(),
		Repository: ref.Context().RepositoryStr(),
	}
	switch r := ref.(type) {
	case name.Tag:
		image.Tag = r.TagStr()
	case name.Digest:
		image.Digest = r.DigestStr()
	}
	image.Type = DetectRegistryType(image.Registry, hosts)
	return image, nil
}

// Reference returns the manifest reference, the digest when pinned and the tag otherwise
func (i ImageReference) Reference() string {
	if i.Digest != "" {
		return i.Digest
	}
	return i.Tag
}

// DetectRegistryType maps a registry host to the authentication flavour it speaks.
func DetectRegistryType(host string, hosts RegistryHosts) RegistryType {
	h := strings.ToLower(host)
	for _, g := range hosts.GitLab {
		if strings.EqualFold(g, h) {
			return RegistryGitLab
		}
	}
	for _, n := range hosts.NGC {
		if strings.EqualFold(n, h) {
			return RegistryNGC
		}
	}
	switch {
	case h == "nvcr.io" || strings.HasSuffix(h, ".nvcr.io"):
		return RegistryNGC
	case strings.Contains(h, "gitlab"):
		return RegistryGitLab
	default:
		return RegistryGeneric
	}
}
