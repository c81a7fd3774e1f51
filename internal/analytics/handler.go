package analytics

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moderniselife/GFM/internal/common/httpmw"
)

// SetupRoutes mounts GET /api/ga4/data.
func SetupRoutes(api *gin.RouterGroup, svc *Service) {
	api.GET("/ga4/data", func(c *gin.Context) {
		dir := c.Query("projectDir")
		if dir == "" {
			dir = c.Query("dir")
		}
		report, err := svc.Report(c.Request.Context(), dir, c.Query("projectId"), c.Query("timeRange"))
		if err != nil {
			httpmw.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})
}
