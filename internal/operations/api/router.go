package api

import (
	"github.com/gin-gonic/gin"

	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/operations"
)

// SetupRoutes configures the streamed operation routes.
// router should be the /api group
func SetupRoutes(router *gin.RouterGroup, svc *operations.Service, log *logger.Logger) {
	handler := NewHandler(svc, log)

	firebase := router.Group("/firebase")
	{
		firebase.POST("/install-dependencies", handler.InstallDependencies)
		firebase.POST("/deploy", handler.Deploy)
		firebase.POST("/deploy/cancel", handler.CancelDeploy)
		firebase.POST("/emulators", handler.Emulators)
		firebase.GET("/running-emulators", handler.RunningEmulators)
	}

	scripts := router.Group("/scripts")
	{
		scripts.GET("/vite-servers", handler.ViteServers)
		scripts.POST("/run", handler.RunScript)
	}
}
