package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kinbiko/jsonassert"
	"github.com/kubescape/evalresolver/adapters"
	v1 "github.com/kubescape/evalresolver/adapters/v1"
	"github.com/kubescape/evalresolver/config"
	"github.com/kubescape/evalresolver/controllers"
	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/services"
	"github.com/kubescape/evalresolver/internal/listener"
	"github.com/kubescape/evalresolver/internal/tools"
	"github.com/kubescape/evalresolver/repositories"
	"gotest.tools/v3/assert"
)

const framework = `framework:
  name: simple_evals
evaluations:
  - name: mmlu
    defaults:
      config:
        type: mmlu
  - name: humaneval
`

func TestResolveAndLookup(t *testing.T) {
	registry := adapters.NewMockRegistry()
	registry.AddImage("team/simple-evals", "1.0", "sha256:5b0bcabd1ed22e9fb1310cf6c2dec7cdef19f0ad69efa1f392e94a4333501270",
		tools.GzipLayer(tools.LayerFile{Name: "usr/bin/eval", Content: "#!/bin/sh"}),
		tools.GzipLayer(tools.LayerFile{Name: "opt/metadata/framework.yml", Content: framework}),
	)
	registry.AddImage("team/base", "1.0", "sha256:0e5e2d4b1c3a6e3f48a1b5a9a0f1d7c2b9e8a7d6c5b4a3f2e1d0c9b8a7f6e5d4",
		tools.ZstdLayer(tools.LayerFile{Name: "usr/bin/eval", Content: "#!/bin/sh"}),
	)
	extractor := services.NewFrameworkExtractor(registry, repositories.NewMemoryStorage(), v1.NewTarInspector(0), domain.RegistryHosts{}, 2)
	controller := controllers.NewHTTPController(services.NewResolveService(extractor), 1)
	defer controller.Shutdown()
	router := listener.SetupRouter(gin.Default(), controller)

	steps := []struct {
		name         string
		method       string
		path         string
		body         string
		expectedCode int
		expectedBody string
	}{
		{
			name:         "alive",
			method:       "GET",
			path:         listener.LivenessPath,
			expectedCode: http.StatusOK,
			expectedBody: `{"status": 200, "title": "OK"}`,
		},
		{
			name:         "not ready before the first resolution",
			method:       "GET",
			path:         listener.ReadinessPath,
			expectedCode: http.StatusServiceUnavailable,
			expectedBody: `{"status": 503, "title": "Service Unavailable"}`,
		},
		{
			name:         "lookup before resolution",
			method:       "GET",
			path:         "/v1/tasks/mmlu",
			expectedCode: http.StatusNotFound,
			expectedBody: `{"detail": "<<PRESENCE>>", "status": 404, "title": "Not Found"}`,
		},
		{
			name:         "resolve",
			method:       "POST",
			path:         "/v1/resolve",
			body:         `{"containers": ["registry.example.com/team/simple-evals:1.0", "registry.example.com/team/base:1.0"]}`,
			expectedCode: http.StatusOK,
			expectedBody: `{
				"harnesses": [{"name": "simple-evals", "description": "", "container": "registry.example.com/team/simple-evals:1.0", "container_digest": "<<PRESENCE>>"}],
				"tasks": "<<PRESENCE>>",
				"skipped": ["registry.example.com/team/base:1.0"]
			}`,
		},
		{
			name:         "ready",
			method:       "GET",
			path:         listener.ReadinessPath,
			expectedCode: http.StatusOK,
			expectedBody: `{"status": 200, "title": "OK"}`,
		},
		{
			name:         "lookup",
			method:       "GET",
			path:         "/v1/tasks/simple-evals.mmlu",
			expectedCode: http.StatusOK,
			expectedBody: `{"task": {
				"name": "mmlu",
				"description": "",
				"harness": "simple-evals",
				"container": "registry.example.com/team/simple-evals:1.0",
				"container_digest": "<<PRESENCE>>",
				"defaults": {"config": {"type": "mmlu"}}
			}}`,
		},
		{
			name:         "unknown task",
			method:       "GET",
			path:         "/v1/tasks/gsm8k",
			expectedCode: http.StatusNotFound,
			expectedBody: `{"detail": "task \"gsm8k\" not found in any known mapping", "status": 404, "title": "Not Found"}`,
		},
		{
			name:         "unknown task with container",
			method:       "GET",
			path:         "/v1/tasks/gsm8k?container=registry.example.com/team/simple-evals:1.0",
			expectedCode: http.StatusOK,
			expectedBody: `{"task": "<<PRESENCE>>", "unvalidated": true}`,
		},
	}
	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			req, _ := http.NewRequest(step.method, step.path, strings.NewReader(step.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Assert(t, step.expectedCode == w.Code, w.Body.String())
			jsonassert.New(t).Assertf(w.Body.String(), "%s", step.expectedBody)
		})
	}
}

func TestNewResolveService(t *testing.T) {
	c := config.Config{CacheDir: t.TempDir(), UseCache: true, LayerWorkers: 2}
	service, err := newResolveService(c)
	assert.NilError(t, err)
	assert.Assert(t, !service.Ready(t.Context()))

	_, err = newResolveService(config.Config{CacheDir: "/dev/null/cache", UseCache: true})
	assert.Assert(t, err != nil)

	service, err = newResolveService(config.Config{CacheDir: "/dev/null/cache"})
	assert.NilError(t, err)
	assert.Assert(t, service != nil)
}
