package listener

import (
	"github.com/gin-gonic/gin"
	"github.com/kubescape/evalresolver/controllers"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	LivenessPath  = "/v1/liveness"
	ReadinessPath = "/v1/readiness"
	APIVersion    = "/v1"
	ResolvePath   = "/resolve"
	TasksPath     = "/tasks/:query"
)

// SetupRouter maps the controller handlers to their paths, only API calls are traced
func SetupRouter(router *gin.Engine, controller *controllers.HTTPController) *gin.Engine {
	router.GET(LivenessPath, controller.Alive)
	router.GET(ReadinessPath, controller.Ready)

	group := router.Group(APIVersion)
	{
		group.Use(otelgin.Middleware("evalresolver-svc"))
		group.POST(ResolvePath, controller.Resolve)
		group.GET(TasksPath, controller.Lookup)
	}
	return router
}
