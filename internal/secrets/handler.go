package secrets

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moderniselife/GFM/internal/common/httpmw"
)

type fetchBody struct {
	ProjectDir  string `json:"projectDir"`
	Environment string `json:"environment"`
	ProjectID   string `json:"projectId"`
}

type createBody struct {
	ProjectID   string `json:"projectId"`
	SecretKey   string `json:"secretKey"`
	SecretValue string `json:"secretValue"`
}

// SetupRoutes mounts /api/secrets/fetch and /api/secrets/create.
func SetupRoutes(api *gin.RouterGroup, svc *Service) {
	g := api.Group("/secrets")

	g.POST("/fetch", func(c *gin.Context) {
		var body fetchBody
		if err := c.ShouldBindJSON(&body); err != nil {
			httpmw.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
		res, err := svc.Fetch(c.Request.Context(), FetchRequest{
			Dir:         body.ProjectDir,
			Environment: body.Environment,
			ProjectID:   body.ProjectID,
		})
		if err != nil {
			httpmw.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	g.POST("/create", func(c *gin.Context) {
		var body createBody
		if err := c.ShouldBindJSON(&body); err != nil {
			httpmw.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
		err := svc.Create(c.Request.Context(), CreateRequest{
			ProjectID: body.ProjectID,
			SecretKey: body.SecretKey,
			Value:     body.SecretValue,
		})
		if err != nil {
			httpmw.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}
