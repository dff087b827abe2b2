package docs

import (
	"github.com/kubescape/evalresolver/controllers"
	"github.com/kubescape/evalresolver/core/domain"
)

/*
The service is alive.

swagger:response
*/
type livenessAlive struct{}

/*
swagger:route GET /v1/liveness probes getLiveness
Checks if the HTTP server answers.

Responses:
  200: livenessAlive
*/

/*
A task mapping has been built.

swagger:response
*/
type readinessReady struct{}

/*
No task mapping has been built yet.

swagger:response
*/
type readinessServiceUnavailable struct{}

/*
swagger:route GET /v1/readiness probes getReadiness
Checks if the service can answer task lookups.

Responses:
  200: readinessReady
  503: readinessServiceUnavailable
*/

/*
The containers to index.

swagger:parameters postResolve
*/
type postResolveRequest struct {
	// In: body
	Body controllers.ResolveRequest
}

/*
Harnesses and tasks found in the containers, errors lists the containers that failed.

swagger:response
*/
type postResolveOK struct {
	// In: body
	Body controllers.ResolveResponse
}

/*
Malformed request.

swagger:response
*/
type postResolveBadRequest struct{}

/*
Every container failed to resolve.

swagger:response
*/
type postResolveBadGateway struct{}

/*
swagger:route POST /v1/resolve resolve postResolve
Indexes harness containers.

Replaces the task mapping with the tasks found in the given containers.
The framework definition is read from the digest cache unless noCache is set.

Consumes:
  - application/json

Responses:
  200: postResolveOK
  400: postResolveBadRequest
  502: postResolveBadGateway
*/

/*
The task to look up.

swagger:parameters getTask
*/
type getTaskRequest struct {
	// Either <task> or <harness>.<task>
	// In: path
	Query string `json:"query"`
	// Container running the task when it is not in any mapping
	// In: query
	Container string `json:"container"`
}

/*
The resolved task.

swagger:response
*/
type getTaskOK struct {
	// In: body
	Body domain.TaskMappingEntry
}

/*
The task is not in any mapping.

swagger:response
*/
type getTaskNotFound struct{}

/*
A bare task name matches several harnesses.

swagger:response
*/
type getTaskConflict struct{}

/*
swagger:route GET /v1/tasks/{query} tasks getTask
Looks up a task in the last built mapping.

Responses:
  200: getTaskOK
  404: getTaskNotFound
  409: getTaskConflict
*/
