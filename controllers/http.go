package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gammazero/workerpool"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"schneider.vip/problem"
)

// HTTPController maps ResolveService ports to gin handlers that can be mapped to paths and methods
// this mapping is usually done in main()
type HTTPController struct {
	resolveService ports.ResolveService
	workerPool     *workerpool.WorkerPool
}

// NewHTTPController initializes the HTTPController struct with the injected resolveService,
// resolutions are queued on a pool of concurrency workers
func NewHTTPController(resolveService ports.ResolveService, concurrency int) *HTTPController {
	return &HTTPController{
		resolveService: resolveService,
		workerPool:     workerpool.New(concurrency),
	}
}

// ResolveRequest is the payload of POST /v1/resolve
type ResolveRequest struct {
	Containers []string `json:"containers" binding:"required,min=1"`
	NoCache    bool     `json:"noCache"`
}

// ResolveResponse is the answer of POST /v1/resolve, Errors lists containers that failed
type ResolveResponse struct {
	domain.ResolveResult
	Errors []string `json:"errors,omitempty"`
}

func (h HTTPController) Alive(c *gin.Context) {
	problem.Of(http.StatusOK).WriteTo(c.Writer)
}

// Ready calls resolveService.Ready
func (h HTTPController) Ready(c *gin.Context) {
	if !h.resolveService.Ready(c.Request.Context()) {
		problem.Of(http.StatusServiceUnavailable).WriteTo(c.Writer)
		return
	}

	problem.Of(http.StatusOK).WriteTo(c.Writer)
}

// Resolve unmarshalls the payload and calls resolveService.Resolve on the worker pool
func (h HTTPController) Resolve(c *gin.Context) {
	var req ResolveRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		logger.L().Ctx(c.Request.Context()).Error("handler error", helpers.Error(err))
		problem.Of(http.StatusBadRequest).Append(problem.Detail(err.Error())).WriteTo(c.Writer)
		return
	}

	ctx := c.Request.Context()
	var result domain.ResolveResult
	h.workerPool.SubmitWait(func() {
		result, err = h.resolveService.Resolve(ctx, req.Containers, !req.NoCache)
	})
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}

	resp := ResolveResponse{ResolveResult: result}
	if err != nil {
		logger.L().Ctx(ctx).Warning("resolution finished with errors", helpers.Error(err))
		resp.Errors = splitErrors(err)
		if len(result.Harnesses) == 0 && len(result.Skipped) == 0 {
			problem.Of(http.StatusBadGateway).Append(problem.Detail(strings.Join(resp.Errors, "; "))).WriteTo(c.Writer)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Lookup resolves the :query task against the last resolved mapping,
// an optional container query parameter allows unknown tasks
func (h HTTPController) Lookup(c *gin.Context) {
	query := c.Param("query")
	container := c.Query("container")
	entry, err := h.resolveService.Lookup(c.Request.Context(), query, container)
	switch {
	case errors.Is(err, domain.ErrAmbiguousTask):
		problem.Of(http.StatusConflict).Append(problem.Detail(err.Error())).WriteTo(c.Writer)
		return
	case errors.Is(err, domain.ErrTaskNotFound):
		problem.Of(http.StatusNotFound).Append(problem.Detail(err.Error())).WriteTo(c.Writer)
		return
	case err != nil:
		logger.L().Ctx(c.Request.Context()).Error("service error", helpers.Error(err))
		problem.Of(http.StatusInternalServerError).WriteTo(c.Writer)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Shutdown waits for queued resolutions to finish
func (h HTTPController) Shutdown() {
	logger.L().Info("purging resolution queue", helpers.Int("remaining jobs", h.workerPool.WaitingQueueSize()))
	h.workerPool.StopWait()
}

func splitErrors(err error) []string {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		msgs := make([]string, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
