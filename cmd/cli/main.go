package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	v1 "github.com/kubescape/evalresolver/adapters/v1"
	"github.com/kubescape/evalresolver/config"
	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
	"github.com/kubescape/evalresolver/core/services"
	"github.com/kubescape/evalresolver/internal/tools"
	"github.com/kubescape/evalresolver/repositories"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
)

const descriptionWidth = 60

// images collects repeated -image flags, comma separated values are split
type images []string

func (i *images) String() string {
	return strings.Join(*i, ",")
}

func (i *images) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*i = append(*i, v)
		}
	}
	return nil
}

type options struct {
	images     images
	task       string
	container  string
	noCache    bool
	list       bool
	digest     bool
	purgeCache bool
}

func main() {
	var opts options
	flag.Var(&opts.images, "image", "Harness container to index, can be repeated (defaults to the configured containers)")
	flag.StringVar(&opts.task, "task", "", "Task to look up, either <task> or <harness>.<task>")
	flag.StringVar(&opts.container, "container", "", "Container to run -task in when it is not in any mapping")
	flag.BoolVar(&opts.noCache, "no-cache", false, "Ignore cached framework definitions and refresh them")
	flag.BoolVar(&opts.list, "list", false, "List every task of the indexed containers")
	flag.BoolVar(&opts.digest, "digest", false, "Print the manifest digest of each container")
	flag.BoolVar(&opts.purgeCache, "purge-cache", false, "Remove every cached framework definition and exit")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "Usage: evalresolver [options]")
		fmt.Fprintln(flag.CommandLine.Output(), "")
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output(), "")
		fmt.Fprintln(flag.CommandLine.Output(), "Examples:")
		fmt.Fprintln(flag.CommandLine.Output(), "  evalresolver -image nvcr.io/nvidia/eval-factory/simple-evals:25.07 -list")
		fmt.Fprintln(flag.CommandLine.Output(), "  evalresolver -image nvcr.io/nvidia/eval-factory/simple-evals:25.07 -task simple-evals.mmlu")
		fmt.Fprintln(flag.CommandLine.Output(), "  evalresolver -task my_task -container registry.example.com/team/harness:1.0")
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := loadConfig(ctx)
	if err := run(ctx, c, opts, os.Stdout); err != nil {
		stop()
		logger.L().Ctx(ctx).Fatal("evalresolver failed", helpers.Error(err))
	}
}

func loadConfig(ctx context.Context) config.Config {
	configDir, present := os.LookupEnv("CONFIG_DIR")
	if !present {
		return config.Defaults()
	}
	c, err := config.LoadConfig(configDir)
	if err != nil {
		logger.L().Ctx(ctx).Warning("load config error, using defaults", helpers.Error(err))
		return config.Defaults()
	}
	return c
}

// app holds the components a CLI run needs
type app struct {
	cache     ports.DigestCache
	extractor *services.FrameworkExtractor
	service   *services.ResolveService
}

func newApp(c config.Config, factory ports.AuthenticatorFactory) (*app, error) {
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
	return &app{
		cache:     cache,
		extractor: extractor,
		service:   services.NewResolveService(extractor),
	}, nil
}

func registryFactory(c config.Config) ports.AuthenticatorFactory {
	resolver := v1.NewCredentialResolver(c.DockerConfig, v1.NewExternalCredentialHelper(c.HelperTimeout))
	return v1.NewAuthenticatorFactory(resolver, v1.RegistryOptions{
		Insecure: c.Insecure,
		Platform: c.Platform,
		Retries:  c.Retries,
		Backoff:  c.RetryBackoff,
		Timeout:  c.HTTPTimeout,
	}, c.GitLabAuthURL)
}

func run(ctx context.Context, c config.Config, opts options, out io.Writer) error {
	return runWith(ctx, c, opts, registryFactory(c), out)
}

func runWith(ctx context.Context, c config.Config, opts options, factory ports.AuthenticatorFactory, out io.Writer) error {
	a, err := newApp(c, factory)
	if err != nil {
		return err
	}

	if opts.purgeCache {
		if a.cache == nil {
			return errors.New("cache is disabled")
		}
		if err := a.cache.Purge(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "purged %s\n", c.CacheDir)
		return nil
	}

	containers := []string(opts.images)
	if len(containers) == 0 {
		containers = c.ContainersToIndex
	}
	if len(containers) == 0 && opts.container != "" {
		containers = []string{opts.container}
	}
	if len(containers) == 0 {
		return errors.New("no container to index, use -image")
	}

	if opts.digest {
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CONTAINER\tDIGEST")
		for _, container := range containers {
			dgst := a.extractor.ImageDigest(ctx, container)
			if dgst == "" {
				dgst = "-"
			}
			fmt.Fprintf(w, "%s\t%s\n", container, dgst)
		}
		return w.Flush()
	}

	result, err := a.service.Resolve(ctx, containers, !opts.noCache)
	if err != nil {
		if len(result.Harnesses) == 0 && len(result.Skipped) == 0 {
			return err
		}
		logger.L().Ctx(ctx).Warning("some containers could not be resolved", helpers.Error(err))
	}
	for _, skipped := range result.Skipped {
		logger.L().Ctx(ctx).Info("container has no framework definition", helpers.String("container", skipped))
	}

	if opts.list || opts.task == "" {
		if err := printTasks(out, result); err != nil {
			return err
		}
	}
	if opts.task != "" {
		entry, err := a.service.Lookup(ctx, opts.task, opts.container)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	}
	return nil
}

func printTasks(out io.Writer, result domain.ResolveResult) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tCONTAINER\tDESCRIPTION")
	for _, entry := range result.Tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\n", entry.Key, entry.Task.Container, tools.Ellipsis(entry.Task.Description, descriptionWidth))
	}
	return w.Flush()
}
