package cli

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moderniselife/GFM/internal/common/constants"
	"github.com/moderniselife/GFM/internal/common/httpmw"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/project"
)

// NoCurrentProject is reported when firebase has no active project for a directory.
const NoCurrentProject = "No current project"

// Handlers exposes the firebase and gcloud CLI wrappers over HTTP.
type Handlers struct {
	firebase   *Firebase
	gcloud     *Gcloud
	defaultDir string
	logger     *logger.Logger
}

// NewHandlers creates the CLI handlers.
func NewHandlers(fb *Firebase, gc *Gcloud, defaultDir string, log *logger.Logger) *Handlers {
	return &Handlers{
		firebase:   fb,
		gcloud:     gc,
		defaultDir: defaultDir,
		logger:     log.WithFields(zap.String("component", "cli-handlers")),
	}
}

// RegisterRoutes mounts the handlers under /api.
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	fb := api.Group("/firebase")
	fb.GET("/current-project", h.httpCurrentProject)
	fb.POST("/switch-project", h.httpSwitchProject)
	fb.GET("/projects", h.httpListProjects)
	fb.GET("/config", h.httpConfig)
	fb.GET("/deploy-targets", h.httpDeployTargets)
	fb.POST("/login", h.httpFirebaseLogin)

	gc := api.Group("/gcloud")
	gc.GET("/auth-status", h.httpAuthStatus)
	gc.POST("/login", h.httpGcloudLogin)
	gc.POST("/setup-adc", h.httpSetupADC)
}

// optionalDir resolves ?dir= but tolerates its absence, running in the server's directory.
func (h *Handlers) optionalDir(c *gin.Context) (string, bool) {
	dir := c.Query("dir")
	if dir == "" && h.defaultDir == "" {
		return "", true
	}
	resolved, err := project.ResolveDir(dir, h.defaultDir)
	if err != nil {
		httpmw.AbortWithError(c, err)
		return "", false
	}
	return resolved, true
}

func (h *Handlers) requiredDir(c *gin.Context) (string, bool) {
	resolved, err := project.ResolveDir(c.Query("dir"), h.defaultDir)
	if err != nil {
		httpmw.AbortWithError(c, err)
		return "", false
	}
	return resolved, true
}

func (h *Handlers) httpCurrentProject(c *gin.Context) {
	dir, ok := h.optionalDir(c)
	if !ok {
		return
	}
	current, err := h.firebase.CurrentProject(c.Request.Context(), dir)
	if err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	if current == "" {
		current = NoCurrentProject
	}
	c.JSON(http.StatusOK, gin.H{"project": current})
}

type switchProjectRequest struct {
	ProjectID string `json:"projectId"`
}

func (h *Handlers) httpSwitchProject(c *gin.Context) {
	dir, ok := h.optionalDir(c)
	if !ok {
		return
	}
	var req switchProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.BadRequest(c, "invalid request body")
		return
	}
	if err := project.ValidateProjectID(req.ProjectID); err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	if err := h.firebase.UseProject(c.Request.Context(), dir, req.ProjectID); err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Switched to project: " + req.ProjectID})
}

func (h *Handlers) httpListProjects(c *gin.Context) {
	dir, ok := h.optionalDir(c)
	if !ok {
		return
	}
	projects, err := h.firebase.ListProjects(c.Request.Context(), dir)
	if err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *Handlers) httpConfig(c *gin.Context) {
	dir, ok := h.requiredDir(c)
	if !ok {
		return
	}
	cfg, err := ReadConfig(dir)
	if err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *Handlers) httpDeployTargets(c *gin.Context) {
	dir, ok := h.requiredDir(c)
	if !ok {
		return
	}
	cfg, err := ReadConfig(dir)
	if err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"targets": DeployTargets(cfg)})
}

func loginContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, constants.LoginTimeout)
}

func (h *Handlers) httpFirebaseLogin(c *gin.Context) {
	ctx, cancel := loginContext(c.Request.Context())
	defer cancel()
	if err := h.firebase.Login(ctx); err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handlers) httpAuthStatus(c *gin.Context) {
	status, err := h.gcloud.AuthStatus(c.Request.Context())
	if err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handlers) httpGcloudLogin(c *gin.Context) {
	ctx, cancel := loginContext(c.Request.Context())
	defer cancel()
	if err := h.gcloud.Login(ctx); err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handlers) httpSetupADC(c *gin.Context) {
	ctx, cancel := loginContext(c.Request.Context())
	defer cancel()
	if err := h.gcloud.SetupADC(ctx); err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
