package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"gopkg.in/yaml.v3"
)

const (
	// images published from internal CI live under this namespace
	internalNamespace = "ci-llm"
	// images published on public registries live under this namespace
	publicNamespace = "eval-factory"
)

type frameworkInfo struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	FullName    string `yaml:"full_name"`
	URL         string `yaml:"url"`
	Source      string `yaml:"source"`
}

type evaluationConfig struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Defaults    map[string]any `yaml:"defaults"`
}

type frameworkDefinition struct {
	Framework   frameworkInfo      `yaml:"framework"`
	Defaults    map[string]any     `yaml:"defaults"`
	Evaluations []evaluationConfig `yaml:"evaluations"`
}

// ParseFramework builds the harness and task IR from a framework.yml document
func ParseFramework(ctx context.Context, content []byte, container, digest string) (domain.HarnessIR, []domain.TaskIR, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return domain.HarnessIR{}, nil, fmt.Errorf("%w: %s: empty document", domain.ErrParse, container)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return domain.HarnessIR{}, nil, fmt.Errorf("%w: %s: %v", domain.ErrParse, container, err)
	}
	// comment-only documents yield no content, null documents a null scalar
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return domain.HarnessIR{}, nil, fmt.Errorf("%w: %s: document is not a mapping", domain.ErrParse, container)
	}
	var def frameworkDefinition
	if err := root.Content[0].Decode(&def); err != nil {
		return domain.HarnessIR{}, nil, fmt.Errorf("%w: %s: %v", domain.ErrParse, container, err)
	}

	name := hyphenate(strings.TrimSpace(def.Framework.Name))
	if name == "" {
		var ok bool
		name, ok = HarnessNameFromContainer(container)
		if !ok {
			return domain.HarnessIR{}, nil, fmt.Errorf("%w: %s: no framework name and none derivable from the reference", domain.ErrParse, container)
		}
		logger.L().Ctx(ctx).Debug("harness name derived from container reference",
			helpers.String("container", container),
			helpers.String("harness", name))
	}

	harness := domain.HarnessIR{
		Name:            name,
		Description:     def.Framework.Description,
		FullName:        def.Framework.FullName,
		URL:             def.Framework.URL,
		Source:          def.Framework.Source,
		Container:       container,
		ContainerDigest: digest,
	}

	frameworkDefaults := domain.NormalizeMap(def.Defaults)
	tasks := make([]domain.TaskIR, 0, len(def.Evaluations))
	for i, eval := range def.Evaluations {
		if strings.TrimSpace(eval.Name) == "" {
			logger.L().Ctx(ctx).Warning("skipping evaluation without a name",
				helpers.String("harness", name),
				helpers.Int("index", i))
			continue
		}
		tasks = append(tasks, domain.TaskIR{
			Name:            eval.Name,
			Description:     eval.Description,
			Harness:         name,
			Container:       container,
			ContainerDigest: digest,
			Defaults:        domain.DeepMerge(frameworkDefaults, domain.NormalizeMap(eval.Defaults)),
		})
	}
	return harness, tasks, nil
}

// HarnessNameFromContainer derives a harness name from a container reference:
// the segment after the internal namespace as is, then the segment after the public
// namespace, then the image name itself, the last two hyphen-normalized.
func HarnessNameFromContainer(container string) (string, bool) {
	ref, _, _ := strings.Cut(strings.TrimSpace(container), "@")
	segments := strings.Split(ref, "/")
	last := segments[len(segments)-1]
	if i := strings.LastIndex(last, ":"); i >= 0 {
		last = last[:i]
	}
	segments[len(segments)-1] = last

	if name, ok := segmentAfter(segments, internalNamespace); ok {
		return name, true
	}
	if name, ok := segmentAfter(segments, publicNamespace); ok {
		return hyphenate(name), true
	}
	if last == "" {
		return "", false
	}
	return hyphenate(last), true
}

func segmentAfter(segments []string, marker string) (string, bool) {
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == marker && segments[i+1] != "" {
			return segments[i+1], true
		}
	}
	return "", false
}

func hyphenate(s string) string {
	return strings.ReplaceAll(s, "_", "-")
}
