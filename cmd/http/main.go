package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	v1 "github.com/kubescape/evalresolver/adapters/v1"
	"github.com/kubescape/evalresolver/config"
	"github.com/kubescape/evalresolver/controllers"
	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
	"github.com/kubescape/evalresolver/core/services"
	"github.com/kubescape/evalresolver/internal/listener"
	"github.com/kubescape/evalresolver/repositories"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
)

func main() {
	ctx := context.Background()

	configDir := "/etc/config"
	if envPath := os.Getenv("CONFIG_DIR"); envPath != "" {
		configDir = envPath
	}

	c, err := config.LoadConfig(configDir)
	if err != nil {
		logger.L().Ctx(ctx).Fatal("load config error", helpers.Error(err))
	}

	// to enable otel, set OTEL_COLLECTOR_SVC=otel-collector:4317
	if otelHost, present := os.LookupEnv("OTEL_COLLECTOR_SVC"); present {
		ctx = logger.InitOtel("evalresolver",
			os.Getenv("RELEASE"),
			"",
			"",
			url.URL{Host: otelHost})
		defer logger.ShutdownOtel(ctx)
	}

	// modify context to listen to interrupt signals from the OS.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, err := newResolveService(c)
	if err != nil {
		logger.L().Ctx(ctx).Fatal("service initialization error", helpers.Error(err))
	}
	controller := controllers.NewHTTPController(service, c.RequestQueue)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	listener.SetupRouter(router, controller)

	srv := &http.Server{
		Addr:    c.ListenAddress,
		Handler: router,
	}

	// Initializing the server in a goroutine so that
	// it won't block the graceful shutdown handling below
	go func() {
		logger.L().Info("starting server", helpers.String("address", c.ListenAddress))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L().Ctx(ctx).Fatal("router error", helpers.Error(err))
		}
	}()

	// readiness flips once the configured containers are indexed
	if len(c.ContainersToIndex) > 0 {
		go func() {
			result, err := service.Resolve(ctx, c.ContainersToIndex, c.UseCache)
			if err != nil {
				logger.L().Ctx(ctx).Warning("initial resolution finished with errors", helpers.Error(err))
			}
			logger.L().Info("initial resolution done",
				helpers.Int("harnesses", len(result.Harnesses)),
				helpers.Int("tasks", len(result.Tasks)),
				helpers.Int("skipped", len(result.Skipped)))
		}()
	}

	// Listen for the interrupt signal.
	<-ctx.Done()

	// Restore default behavior on the interrupt signal and notify user of shutdown.
	stop()
	logger.L().Info("shutting down gracefully")

	// modify context to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.L().Ctx(ctx).Fatal("server forced to shutdown", helpers.Error(err))
	}

	// Purging the controller worker queue
	controller.Shutdown()

	logger.L().Info("evalresolver exiting")
}

// newResolveService wires the registry adapters, the digest cache and the extractor
func newResolveService(c config.Config) (*services.ResolveService, error) {
	helper := v1.NewExternalCredentialHelper(c.HelperTimeout)
	resolver := v1.NewCredentialResolver(c.DockerConfig, helper)
	factory := v1.NewAuthenticatorFactory(resolver, v1.RegistryOptions{
		Insecure: c.Insecure,
		Platform: c.Platform,
		Retries:  c.Retries,
		Backoff:  c.RetryBackoff,
		Timeout:  c.HTTPTimeout,
	}, c.GitLabAuthURL)

	var cache ports.DigestCache
	if c.UseCache {
		storage, err := repositories.NewFileStorage(c.CacheDir)
		if err != nil {
			return nil, err
		}
		cache = storage
	}

	hosts := domain.RegistryHosts{GitLab: c.GitLabHosts, NGC: c.NGCHosts}
	extractor := services.NewFrameworkExtractor(factory, cache, v1.NewTarInspector(c.MaxLayerSize), hosts, c.LayerWorkers)
	return services.NewResolveService(extractor), nil
}
