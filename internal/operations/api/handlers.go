package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moderniselife/GFM/internal/common/httpmw"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/operations"
)

// Handler contains HTTP handlers for streamed operations
type Handler struct {
	service *operations.Service
	logger  *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc *operations.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  log.WithFields(zap.String("component", "operations-api")),
	}
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	h.logger.WithContext(c.Request.Context()).Warn("operation rejected", zap.String("operation", op), zap.Error(err))
	httpmw.AbortWithError(c, err)
}

// InstallDependencies installs packages in every package directory
// POST /api/firebase/install-dependencies?dir=
func (h *Handler) InstallDependencies(c *gin.Context) {
	var req InstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	ack, err := h.service.Install(c.Request.Context(), operations.InstallRequest{
		Dir:      c.Query("dir"),
		ClientID: req.ClientID,
	})
	if err != nil {
		h.fail(c, "install", err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

// Deploy runs firebase deploy
// POST /api/firebase/deploy?dir=
func (h *Handler) Deploy(c *gin.Context) {
	var req DeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	ack, err := h.service.Deploy(c.Request.Context(), operations.DeployRequest{
		Dir:       c.Query("dir"),
		ClientID:  req.ClientID,
		ProjectID: req.ProjectID,
		Options:   req.Options,
		Targets:   req.Targets,
	})
	if err != nil {
		h.fail(c, "deploy", err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

// CancelDeploy stops a running deployment
// POST /api/firebase/deploy/cancel
func (h *Handler) CancelDeploy(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	ack, err := h.service.CancelDeploy(req.ClientID)
	if err != nil {
		h.fail(c, "deploy-cancel", err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

// Emulators starts, stops or restarts the emulator suite
// POST /api/firebase/emulators?dir=
func (h *Handler) Emulators(c *gin.Context) {
	var req EmulatorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	ack, err := h.service.Emulators(c.Request.Context(), operations.EmulatorsRequest{
		Dir:       c.Query("dir"),
		ClientID:  req.ClientID,
		ProjectID: req.ProjectID,
		Action:    req.Action,
		Services:  req.Services,
	})
	if err != nil {
		h.fail(c, "emulators", err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

// RunningEmulators lists emulator processes on this machine
// GET /api/firebase/running-emulators
func (h *Handler) RunningEmulators(c *gin.Context) {
	procs, services, err := h.service.RunningEmulators(c.Request.Context())
	if err != nil {
		h.fail(c, "running-emulators", err)
		return
	}
	if services == nil {
		services = []string{}
	}
	c.JSON(http.StatusOK, RunningEmulatorsResponse{RunningEmulators: services, Processes: procs})
}

// ViteServers lists vite packages in the project
// GET /api/scripts/vite-servers?dir=
func (h *Handler) ViteServers(c *gin.Context) {
	servers, err := h.service.ViteServers(c.Query("dir"))
	if err != nil {
		h.fail(c, "vite-servers", err)
		return
	}
	c.JSON(http.StatusOK, ViteServersResponse{Servers: servers})
}

// RunScript runs a package.json script
// POST /api/scripts/run
func (h *Handler) RunScript(c *gin.Context) {
	var req RunScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	ack, err := h.service.RunScript(c.Request.Context(), operations.RunScriptRequest{
		ScriptPath: req.ScriptPath,
		ScriptName: req.ScriptName,
		ClientID:   req.ClientID,
	})
	if err != nil {
		h.fail(c, "script", err)
		return
	}
	c.JSON(http.StatusOK, ack)
}
