package v1

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/akyoto/cache"
	"github.com/distribution/distribution/registry/client/auth/challenge"
	"github.com/eapache/go-resiliency/retrier"
	containerv1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/opencontainers/go-digest"
	"go.opentelemetry.io/otel"
)

const (
	maxManifestSize   = 4 << 20
	maxTokenSize      = 1 << 20
	defaultSessionTTL = 5 * time.Minute
	sessionCleanup    = time.Minute
)

// RegistryOptions configures the HTTP side of every registry variant
type RegistryOptions struct {
	Insecure bool
	Platform string
	Retries  int
	Backoff  time.Duration
	Timeout  time.Duration
	// Transport overrides the HTTP transport, tests use it to count requests
	Transport http.RoundTripper
}

// RegistryError is returned for any failed registry request
type RegistryError struct {
	URL        string
	StatusCode int
	Temporary  bool
	Err        error
}

func (e *RegistryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("GET %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

type session struct {
	authorization string
	expiresIn     time.Duration
}

type retryClassifier struct{}

// Classify retries transport errors and server side failures only
func (retryClassifier) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}
	var re *RegistryError
	if errors.As(err, &re) && re.Temporary {
		return retrier.Retry
	}
	return retrier.Fail
}

// registryClient speaks the registry v2 HTTP API. The variant specific
// handshake produces the Authorization header cached per repository.
type registryClient struct {
	host      string
	baseURL   string
	creds     domain.RegistryCredentials
	client    *http.Client
	retrier   *retrier.Retrier
	sessions  *cache.Cache
	platform  containerv1.Platform
	handshake func(ctx context.Context, repository string) (session, error)
}

func newRegistryClient(host string, creds domain.RegistryCredentials, opts RegistryOptions) *registryClient {
	scheme := "https"
	if opts.Insecure {
		scheme = "http"
	}
	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if opts.Insecure {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		transport = t
	}
	platform := containerv1.Platform{OS: "linux", Architecture: "amd64"}
	if opts.Platform != "" {
		if p, err := containerv1.ParsePlatform(opts.Platform); err == nil {
			platform = *p
		} else {
			logger.L().Warning("failed to parse platform, using linux/amd64",
				helpers.String("platform", opts.Platform),
				helpers.Error(err))
		}
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &registryClient{
		host:     host,
		baseURL:  scheme + "://" + host,
		creds:    creds,
		client:   &http.Client{Transport: transport, Timeout: opts.Timeout},
		retrier:  retrier.New(retrier.ExponentialBackoff(opts.Retries, backoff), retryClassifier{}),
		sessions: cache.New(sessionCleanup),
		platform: platform,
	}
}

// Close stops the session cache janitor
func (c *registryClient) Close() error {
	c.sessions.Close()
	return nil
}

// Credentials returns the credentials this client presents
func (c *registryClient) Credentials() domain.RegistryCredentials {
	return c.creds
}

func (c *registryClient) session(repository string) (session, bool) {
	v, ok := c.sessions.Get(repository)
	if !ok {
		return session{}, false
	}
	s, ok := v.(session)
	return s, ok
}

// Authenticate runs the handshake once per repository and caches the session until it expires
func (c *registryClient) Authenticate(ctx context.Context, repository string) error {
	if _, ok := c.session(repository); ok {
		return nil
	}
	ctx, span := otel.Tracer("").Start(ctx, "RegistryAuthenticator.Authenticate")
	defer span.End()

	s, err := c.handshake(ctx, repository)
	if err != nil {
		return err
	}
	ttl := s.expiresIn
	switch {
	case ttl <= 0:
		ttl = defaultSessionTTL
	case ttl > 30*time.Second:
		// renew before the registry starts rejecting the token
		ttl -= 10 * time.Second
	}
	c.sessions.Set(repository, s, ttl)
	return nil
}

// send performs the request built by newRequest with retries on temporary failures.
// Non 2xx answers are turned into a RegistryError wrapping a domain error.
func (c *registryClient) send(ctx context.Context, newRequest func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response
	err := c.retrier.Run(func() error {
		req, err := newRequest()
		if err != nil {
			return err
		}
		r, err := c.client.Do(req)
		if err != nil {
			return &RegistryError{
				URL:       req.URL.Redacted(),
				Temporary: ctx.Err() == nil,
				Err:       fmt.Errorf("%w: %v", domain.ErrNetwork, err),
			}
		}
		if r.StatusCode < 200 || r.StatusCode > 299 {
			defer r.Body.Close()
			return statusError(req.URL, r)
		}
		resp = r
		return nil
	})
	return resp, err
}

func statusError(u *url.URL, r *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
	msg := strings.TrimSpace(string(body))
	re := &RegistryError{URL: u.Redacted(), StatusCode: r.StatusCode}
	switch {
	case r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden:
		re.Err = fmt.Errorf("%w: %s", domain.ErrAuthentication, msg)
	case r.StatusCode == http.StatusNotFound:
		re.Err = fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500:
		re.Temporary = true
		re.Err = fmt.Errorf("%w: %s", domain.ErrNetwork, msg)
	default:
		re.Err = fmt.Errorf("%w: unexpected response: %s", domain.ErrNetwork, msg)
	}
	return re
}

// get runs an authenticated GET against the registry
func (c *registryClient) get(ctx context.Context, repository, path, accept string) (*http.Response, error) {
	if err := c.Authenticate(ctx, repository); err != nil {
		return nil, err
	}
	return c.send(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		if s, ok := c.session(repository); ok && s.authorization != "" {
			req.Header.Set("Authorization", s.authorization)
		}
		return req, nil
	})
}

// GetManifestAndDigest fetches a manifest; an image index is resolved to the configured
// platform while the returned digest stays the one of the document reference points at.
func (c *registryClient) GetManifestAndDigest(ctx context.Context, repository, reference string) (domain.Manifest, string, error) {
	ctx, span := otel.Tracer("").Start(ctx, "RegistryAuthenticator.GetManifestAndDigest")
	defer span.End()

	body, header, err := c.fetchManifest(ctx, repository, reference)
	if err != nil {
		return domain.Manifest{}, "", err
	}
	dgst, err := ManifestDigest(header.Get(contentDigestHeader), body)
	if err != nil {
		return domain.Manifest{}, "", fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	manifest, err := c.parseManifest(ctx, repository, body, header.Get("Content-Type"), true)
	if err != nil {
		return domain.Manifest{}, dgst, err
	}
	return manifest, dgst, nil
}

func (c *registryClient) fetchManifest(ctx context.Context, repository, reference string) ([]byte, http.Header, error) {
	resp, err := c.get(ctx, repository, fmt.Sprintf("/v2/%s/manifests/%s", repository, reference), domain.ManifestAccept())
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read manifest: %v", domain.ErrNetwork, err)
	}
	if len(body) > maxManifestSize {
		return nil, nil, fmt.Errorf("%w: manifest exceeds %d bytes", domain.ErrNetwork, maxManifestSize)
	}
	return body, resp.Header, nil
}

func (c *registryClient) parseManifest(ctx context.Context, repository string, body []byte, contentType string, followIndex bool) (domain.Manifest, error) {
	var probe struct {
		SchemaVersion int64           `json:"schemaVersion"`
		MediaType     string          `json:"mediaType"`
		Manifests     json.RawMessage `json:"manifests"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: malformed manifest: %v", domain.ErrNetwork, err)
	}
	mediaType := types.MediaType(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if probe.MediaType != "" {
		mediaType = types.MediaType(probe.MediaType)
	}
	if probe.SchemaVersion == 1 {
		return domain.Manifest{}, fmt.Errorf("%w: schema 1 manifests are not supported", domain.ErrNotFound)
	}
	if mediaType.IsIndex() || (probe.MediaType == "" && probe.Manifests != nil) {
		if !followIndex {
			return domain.Manifest{}, fmt.Errorf("%w: nested image index", domain.ErrNetwork)
		}
		index, err := containerv1.ParseIndexManifest(bytes.NewReader(body))
		if err != nil {
			return domain.Manifest{}, fmt.Errorf("%w: malformed image index: %v", domain.ErrNetwork, err)
		}
		desc, err := c.selectPlatform(index)
		if err != nil {
			return domain.Manifest{}, err
		}
		logger.L().Debug("resolved image index to platform manifest",
			helpers.String("repository", repository),
			helpers.String("digest", desc.Digest.String()),
			helpers.String("platform", c.platform.String()))
		child, header, err := c.fetchManifest(ctx, repository, desc.Digest.String())
		if err != nil {
			return domain.Manifest{}, err
		}
		return c.parseManifest(ctx, repository, child, header.Get("Content-Type"), false)
	}

	m, err := containerv1.ParseManifest(bytes.NewReader(body))
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("%w: malformed manifest: %v", domain.ErrNetwork, err)
	}
	manifest := domain.Manifest{
		SchemaVersion: m.SchemaVersion,
		MediaType:     string(mediaType),
		Layers:        make([]domain.LayerRef, 0, len(m.Layers)),
		Raw:           body,
	}
	for _, l := range m.Layers {
		manifest.Layers = append(manifest.Layers, domain.LayerRef{
			Digest:    l.Digest.String(),
			Size:      l.Size,
			MediaType: string(l.MediaType),
		})
	}
	return manifest, nil
}

func (c *registryClient) selectPlatform(index *containerv1.IndexManifest) (containerv1.Descriptor, error) {
	for _, desc := range index.Manifests {
		p := desc.Platform
		if p == nil {
			continue
		}
		if p.OS == c.platform.OS && p.Architecture == c.platform.Architecture &&
			(c.platform.Variant == "" || p.Variant == c.platform.Variant) {
			return desc, nil
		}
	}
	if len(index.Manifests) == 1 {
		return index.Manifests[0], nil
	}
	return containerv1.Descriptor{}, fmt.Errorf("%w: no manifest for platform %s", domain.ErrNotFound, c.platform.String())
}

// GetBlob streams a blob, the caller closes it
func (c *registryClient) GetBlob(ctx context.Context, repository, dgst string) (io.ReadCloser, error) {
	ctx, span := otel.Tracer("").Start(ctx, "RegistryAuthenticator.GetBlob")
	defer span.End()

	if _, err := digest.Parse(dgst); err != nil {
		return nil, fmt.Errorf("invalid blob digest %q: %w", dgst, err)
	}
	resp, err := c.get(ctx, repository, fmt.Sprintf("/v2/%s/blobs/%s", repository, dgst), "")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// probe hits /v2/ and returns the challenge, ok is false when the registry needs no auth
func (c *registryClient) probe(ctx context.Context, authorization string) (challenge.Challenge, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/", nil)
	if err != nil {
		return challenge.Challenge{}, false, err
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	var resp *http.Response
	err = c.retrier.Run(func() error {
		r, err := c.client.Do(req.Clone(ctx))
		if err != nil {
			return &RegistryError{URL: req.URL.Redacted(), Temporary: ctx.Err() == nil, Err: fmt.Errorf("%w: %v", domain.ErrNetwork, err)}
		}
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			defer r.Body.Close()
			return statusError(req.URL, r)
		}
		resp = r
		return nil
	})
	if err != nil {
		return challenge.Challenge{}, false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusUnauthorized {
		return challenge.Challenge{}, false, nil
	}
	ch, ok := responseChallenge(resp)
	if !ok {
		return challenge.Challenge{}, true, fmt.Errorf("%w: 401 without WWW-Authenticate challenge", domain.ErrAuthentication)
	}
	return ch, true, nil
}

type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// exchangeToken requests a pull token for repository from realm
func (c *registryClient) exchangeToken(ctx context.Context, realm, service, repository string) (session, error) {
	u, err := url.Parse(realm)
	if err != nil || realm == "" {
		return session{}, fmt.Errorf("%w: invalid token realm %q", domain.ErrNetwork, realm)
	}
	q := u.Query()
	if service != "" {
		q.Set("service", service)
	}
	q.Set("scope", fmt.Sprintf("repository:%s:pull", repository))
	u.RawQuery = q.Encode()

	resp, err := c.send(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		if !c.creds.IsAnonymous() {
			req.SetBasicAuth(c.creds.Username, c.creds.Password)
		}
		return req, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) && c.creds.IsAnonymous() {
			return session{}, fmt.Errorf("%s requires credentials: %w", c.host, err)
		}
		return session{}, err
	}
	defer resp.Body.Close()
	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTokenSize)).Decode(&tr); err != nil {
		return session{}, fmt.Errorf("%w: malformed token response: %v", domain.ErrNetwork, err)
	}
	token := tr.Token
	if token == "" {
		token = tr.AccessToken
	}
	if token == "" {
		return session{}, fmt.Errorf("%w: token response did not include a token", domain.ErrAuthentication)
	}
	return session{
		authorization: "Bearer " + token,
		expiresIn:     time.Duration(tr.ExpiresIn) * time.Second,
	}, nil
}

// challengeHandshake follows whatever the registry asks for on /v2/
func (c *registryClient) challengeHandshake(ctx context.Context, repository, fallbackRealm, fallbackService string) (session, error) {
	ch, needed, err := c.probe(ctx, "")
	if err != nil {
		return session{}, err
	}
	if !needed {
		return session{}, nil
	}
	switch ch.Scheme {
	case "bearer":
		realm := ch.Parameters["realm"]
		if realm == "" {
			realm = fallbackRealm
		}
		service := ch.Parameters["service"]
		if service == "" {
			service = fallbackService
		}
		return c.exchangeToken(ctx, realm, service, repository)
	case "basic":
		return c.basicHandshake(ctx)
	default:
		return session{}, fmt.Errorf("%w: unsupported auth scheme %q", domain.ErrAuthentication, ch.Scheme)
	}
}

// basicHandshake verifies the credentials against /v2/ and keeps them as a Basic header
func (c *registryClient) basicHandshake(ctx context.Context) (session, error) {
	if c.creds.IsAnonymous() {
		return session{}, fmt.Errorf("%w: %s requires credentials", domain.ErrAuthentication, c.host)
	}
	authorization := "Basic " + base64.StdEncoding.EncodeToString([]byte(c.creds.Username+":"+c.creds.Password))
	_, rejected, err := c.probe(ctx, authorization)
	if err != nil {
		return session{}, err
	}
	if rejected {
		return session{}, fmt.Errorf("%w: %s rejected credentials from %s", domain.ErrAuthentication, c.host, c.creds.Source)
	}
	return session{authorization: authorization}, nil
}
