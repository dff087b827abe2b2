package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/opencontainers/go-digest"
)

const contentDigestHeader = "Docker-Content-Digest"

// CanonicalJSON re-encodes a JSON document with sorted keys, no insignificant
// whitespace and no HTML escaping. Numbers keep their original text and every
// non-ASCII character is written as a lower-case \uXXXX escape.
func CanonicalJSON(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return escapeNonASCII(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// escapeNonASCII rewrites runes outside printable ASCII, only string contents can hold them
func escapeNonASCII(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		if r < utf8.RuneSelf && r != 0x7f {
			out = append(out, byte(r))
			continue
		}
		if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
			out = fmt.Appendf(out, "\\u%04x\\u%04x", r1, r2)
			continue
		}
		out = fmt.Appendf(out, "\\u%04x", r)
	}
	return out
}

// ManifestDigest returns the digest announced by the registry verbatim, or
// sha256 of the canonical JSON form of body when the header is missing.
func ManifestDigest(header string, body []byte) (string, error) {
	if header != "" {
		if err := digest.Digest(header).Validate(); err != nil {
			logger.L().Debug("registry announced a malformed content digest",
				helpers.String("digest", header),
				helpers.Error(err))
		}
		return header, nil
	}
	canonical, err := CanonicalJSON(body)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize manifest: %w", err)
	}
	return digest.Canonical.FromBytes(canonical).String(), nil
}
