package api

import (
	"github.com/gin-gonic/gin"

	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/console"
)

// SetupRoutes configures the Firestore, Storage, Auth and Rules routes.
// router should be the /api group
func SetupRoutes(router *gin.RouterGroup, svc *console.Service, log *logger.Logger) {
	handler := NewHandler(svc, log)

	fb := router.Group("/firebase")

	firestore := fb.Group("/firestore")
	{
		firestore.GET("/get", handler.GetFirestore)
		firestore.POST("/delete", handler.DeleteDocument)
	}

	storage := fb.Group("/storage")
	{
		storage.GET("/list", handler.ListStorage)
		storage.POST("/upload", handler.Upload)
		storage.POST("/move", handler.Move)
		storage.POST("/delete", handler.DeleteObject)
		storage.GET("/download", handler.Download)
	}

	auth := fb.Group("/auth")
	{
		auth.GET("/users", handler.ListUsers)
		auth.POST("/update-user", handler.UpdateUser)
	}

	rules := fb.Group("/rules")
	{
		rules.GET("/get", handler.GetRules)
		rules.POST("/set", handler.SetRules)
	}
}
