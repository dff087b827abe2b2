package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/gammazero/workerpool"
	"github.com/hashicorp/go-multierror"
	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type forceRefreshKey struct{}

// WithForceRefresh makes extraction skip cache reads, found files are still written back
func WithForceRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, forceRefreshKey{}, true)
}

func forceRefresh(ctx context.Context) bool {
	v, _ := ctx.Value(forceRefreshKey{}).(bool)
	return v
}

// FrameworkExtractor implements FrameworkService from ports, it locates framework.yml
// inside container images without pulling them
type FrameworkExtractor struct {
	factory   ports.AuthenticatorFactory
	cache     ports.DigestCache
	inspector ports.LayerInspector
	hosts     domain.RegistryHosts
	workers   int
	useCache  bool
}

var _ ports.FrameworkService = (*FrameworkExtractor)(nil)

// NewFrameworkExtractor initializes the FrameworkExtractor with all injected dependencies.
// A nil cache disables caching, workers bounds the number of layers fetched concurrently.
func NewFrameworkExtractor(factory ports.AuthenticatorFactory, cache ports.DigestCache, inspector ports.LayerInspector, hosts domain.RegistryHosts, workers int) *FrameworkExtractor {
	if workers < 1 {
		workers = 1
	}
	return &FrameworkExtractor{
		factory:   factory,
		cache:     cache,
		inspector: inspector,
		hosts:     hosts,
		workers:   workers,
		useCache:  cache != nil,
	}
}

// ManifestDigest returns the manifest digest of repository:reference, or "" when it
// cannot be determined for any reason
func (e *FrameworkExtractor) ManifestDigest(ctx context.Context, auth ports.RegistryAuthenticator, repository, reference string) string {
	if err := auth.Authenticate(ctx, repository); err != nil {
		logger.L().Ctx(ctx).Debug("digest lookup failed to authenticate",
			helpers.String("repository", repository),
			helpers.Error(err))
		return ""
	}
	_, dgst, err := auth.GetManifestAndDigest(ctx, repository, reference)
	if err != nil {
		logger.L().Ctx(ctx).Debug("digest lookup failed",
			helpers.String("repository", repository),
			helpers.String("reference", reference),
			helpers.Error(err))
	}
	return dgst
}

// ImageDigest returns the manifest digest of container, or "" when it cannot be determined
func (e *FrameworkExtractor) ImageDigest(ctx context.Context, container string) string {
	image, err := domain.ParseImageReference(container, e.hosts)
	if err != nil {
		logger.L().Ctx(ctx).Debug("digest lookup failed to parse reference", helpers.Error(err))
		return ""
	}
	auth, err := e.factory.NewAuthenticator(ctx, image)
	if err != nil {
		return ""
	}
	defer closeAuthenticator(auth)
	return e.ManifestDigest(ctx, auth, image.Repository, image.Reference())
}

// Find locates the first file under prefix named filename, scanning layers in manifest order.
// The digest is returned whenever it was obtained, even alongside an error.
func (e *FrameworkExtractor) Find(ctx context.Context, auth ports.RegistryAuthenticator, repository, reference, prefix, filename string, key domain.CacheKey, useCache bool) (domain.FoundFile, bool, string, error) {
	ctx, span := otel.Tracer("").Start(ctx, "FrameworkExtractor.Find")
	defer span.End()

	var manifest *domain.Manifest
	var dgst string
	fetch := func() error {
		if manifest != nil {
			return nil
		}
		if err := auth.Authenticate(ctx, repository); err != nil {
			return err
		}
		m, d, err := auth.GetManifestAndDigest(ctx, repository, reference)
		dgst = d
		if err != nil {
			return err
		}
		manifest = &m
		return nil
	}

	if useCache && e.cache != nil {
		if err := fetch(); err != nil {
			return domain.FoundFile{}, false, dgst, err
		}
		if dgst != "" {
			if content, ok := e.cache.Read(ctx, key, dgst); ok {
				logger.L().Ctx(ctx).Debug("framework file served from cache",
					helpers.String("image", key.ImageRef),
					helpers.String("digest", dgst))
				return domain.FoundFile{Path: key.TargetPath, Content: content}, true, dgst, nil
			}
		}
	}

	if err := fetch(); err != nil {
		return domain.FoundFile{}, false, dgst, err
	}
	logger.L().Ctx(ctx).Debug("scanning image layers",
		helpers.String("image", key.ImageRef),
		helpers.Int("layers", len(manifest.Layers)),
		helpers.Int("size", int(manifest.Size())))
	span.SetAttributes(attribute.Int64("imageSize", manifest.Size()))
	found, ok, err := e.scanLayers(ctx, auth, repository, manifest.Layers, prefix, filename)
	if err != nil || !ok {
		return domain.FoundFile{}, false, dgst, err
	}
	if dgst != "" && e.cache != nil {
		if err := e.cache.Write(ctx, key, found.Content, dgst); err != nil {
			logger.L().Ctx(ctx).Warning("failed to cache framework file",
				helpers.String("image", key.ImageRef),
				helpers.Error(err))
		}
	}
	return found, true, dgst, nil
}

type layerResult struct {
	found domain.FoundFile
	ok    bool
	err   error
}

// scanLayers inspects layers through a bounded pool, the lowest manifest index holding a
// match wins no matter which download finishes first
func (e *FrameworkExtractor) scanLayers(ctx context.Context, auth ports.RegistryAuthenticator, repository string, layers []domain.LayerRef, prefix, filename string) (domain.FoundFile, bool, error) {
	if len(layers) == 0 {
		return domain.FoundFile{}, false, nil
	}
	wp := workerpool.New(min(e.workers, len(layers)))
	defer wp.Stop()
	// cancel runs before Stop so in-flight downloads past the winner are aborted
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]chan layerResult, len(layers))
	for i, layer := range layers {
		results[i] = make(chan layerResult, 1)
		out := results[i]
		wp.Submit(func() {
			if ctx.Err() != nil {
				out <- layerResult{err: ctx.Err()}
				return
			}
			found, ok, err := e.inspectLayer(ctx, auth, repository, layer, prefix, filename)
			out <- layerResult{found: found, ok: ok, err: err}
		})
	}

	var errs *multierror.Error
	for i, out := range results {
		var res layerResult
		select {
		case res = <-out:
		case <-ctx.Done():
			return domain.FoundFile{}, false, ctx.Err()
		}
		if res.err != nil {
			// an unreadable layer does not prove the file is absent from the next ones
			logger.L().Ctx(ctx).Warning("failed to inspect layer",
				helpers.String("digest", layers[i].Digest),
				helpers.Error(res.err))
			errs = multierror.Append(errs, fmt.Errorf("layer %s: %w", layers[i].Digest, res.err))
			continue
		}
		if res.ok {
			logger.L().Ctx(ctx).Debug("framework file found",
				helpers.String("path", res.found.Path),
				helpers.String("layer", layers[i].Digest),
				helpers.Int("index", i))
			return res.found, true, nil
		}
	}
	if errs != nil {
		return domain.FoundFile{}, false, fmt.Errorf("%s not found and %d layers could not be inspected: %w", filename, errs.Len(), errs.ErrorOrNil())
	}
	return domain.FoundFile{}, false, nil
}

func (e *FrameworkExtractor) inspectLayer(ctx context.Context, auth ports.RegistryAuthenticator, repository string, layer domain.LayerRef, prefix, filename string) (domain.FoundFile, bool, error) {
	trace.SpanFromContext(ctx).AddEvent("inspecting layer", trace.WithAttributes(
		attribute.String("digest", layer.Digest),
		attribute.Int64("size", layer.Size)))
	blob, err := auth.GetBlob(ctx, repository, layer.Digest)
	if err != nil {
		return domain.FoundFile{}, false, err
	}
	defer blob.Close()
	return e.inspector.Find(blob, prefix, filename)
}

// ExtractFrameworkYML implements the public entry point of the extraction,
// the digest is kept in the result even when extraction fails
func (e *FrameworkExtractor) ExtractFrameworkYML(ctx context.Context, container string) (domain.Resolution, error) {
	ctx, span := otel.Tracer("").Start(ctx, "FrameworkExtractor.ExtractFrameworkYML")
	defer span.End()

	image, err := domain.ParseImageReference(container, e.hosts)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	auth, err := e.factory.NewAuthenticator(ctx, image)
	if err != nil {
		return domain.Resolution{}, err
	}
	defer closeAuthenticator(auth)

	key := domain.CacheKey{
		ImageRef:   container,
		TargetPath: path.Join(domain.FrameworkPrefix, domain.FrameworkFilename),
	}
	useCache := e.useCache && !forceRefresh(ctx)
	found, ok, dgst, err := e.Find(ctx, auth, image.Repository, image.Reference(), domain.FrameworkPrefix, domain.FrameworkFilename, key, useCache)
	res := domain.Resolution{Digest: dgst}
	if err != nil {
		return res, fmt.Errorf("failed to extract %s from %s: %w", domain.FrameworkFilename, container, err)
	}
	if !ok {
		logger.L().Ctx(ctx).Debug("image has no framework file",
			helpers.String("image", container),
			helpers.String("digest", dgst))
		return res, nil
	}
	res.Content = found.Content
	res.Found = true
	res.Path = found.Path
	return res, nil
}

func closeAuthenticator(auth ports.RegistryAuthenticator) {
	if c, ok := auth.(io.Closer); ok {
		if err := c.Close(); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Debug("failed to close registry authenticator", helpers.Error(err))
		}
	}
}
