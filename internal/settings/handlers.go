package settings

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/common/httpmw"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/project"
)

// maxKeySize bounds uploaded service account keys.
const maxKeySize = 64 << 10

// Handler serves project settings and service account management.
type Handler struct {
	store      *Store
	creds      *Credentials
	defaultDir string
	logger     *logger.Logger
}

// NewHandler creates the settings handler.
func NewHandler(store *Store, creds *Credentials, defaultDir string, log *logger.Logger) *Handler {
	return &Handler{
		store:      store,
		creds:      creds,
		defaultDir: defaultDir,
		logger:     log.WithFields(zap.String("component", "settings-handlers")),
	}
}

// SetupRoutes mounts the settings routes under /api.
func SetupRoutes(api *gin.RouterGroup, h *Handler) {
	api.GET("/project/settings", h.httpGetSettings)
	api.POST("/project/settings", h.httpSaveSettings)

	sa := api.Group("/firebase/service-account")
	{
		sa.POST("/add", h.httpAddServiceAccount)
		sa.POST("/set-active", h.httpSetActive)
		sa.POST("/delete", h.httpDeleteServiceAccount)
		sa.GET("/check", h.httpCheck)
	}
}

func (h *Handler) resolve(c *gin.Context, dir string) (string, bool) {
	resolved, err := project.ResolveDir(dir, h.defaultDir)
	if err != nil {
		httpmw.AbortWithError(c, err)
		return "", false
	}
	return resolved, true
}

func queryDir(c *gin.Context) string {
	if dir := c.Query("projectDir"); dir != "" {
		return dir
	}
	return c.Query("dir")
}

// GET /api/project/settings?projectDir=
func (h *Handler) httpGetSettings(c *gin.Context) {
	dir, ok := h.resolve(c, queryDir(c))
	if !ok {
		return
	}
	st, err := h.store.Load(dir)
	if err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type saveSettingsRequest struct {
	ProjectDir string   `json:"projectDir"`
	Settings   Settings `json:"settings"`
}

// POST /api/project/settings
func (h *Handler) httpSaveSettings(c *gin.Context) {
	var req saveSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	dir, ok := h.resolve(c, req.ProjectDir)
	if !ok {
		return
	}
	st, err := h.store.Update(dir, req.Settings)
	if err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "settings": st})
}

// POST /api/firebase/service-account/add (multipart: serviceKey, projectDir)
func (h *Handler) httpAddServiceAccount(c *gin.Context) {
	dir, ok := h.resolve(c, c.PostForm("projectDir"))
	if !ok {
		return
	}
	fh, err := c.FormFile("serviceKey")
	if err != nil {
		httpmw.BadRequest(c, "serviceKey file is required")
		return
	}
	if fh.Size > maxKeySize {
		httpmw.BadRequest(c, "Service account key is too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		httpmw.AbortWithError(c, apperrors.Internal("Failed to read uploaded key", err))
		return
	}
	defer func() { _ = f.Close() }()
	key, err := io.ReadAll(io.LimitReader(f, maxKeySize))
	if err != nil {
		httpmw.AbortWithError(c, apperrors.Internal("Failed to read uploaded key", err))
		return
	}

	sa, err := h.store.AddServiceAccount(dir, key)
	if err != nil {
		h.logger.Warn("service account upload rejected", zap.String("dir", dir), zap.Error(err))
		httpmw.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "serviceAccount": sa})
}

type serviceAccountRequest struct {
	ProjectDir string `json:"projectDir"`
	ProjectID  string `json:"projectId"`
}

func (h *Handler) bindServiceAccount(c *gin.Context) (string, string, bool) {
	var req serviceAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.BadRequest(c, "invalid request body: "+err.Error())
		return "", "", false
	}
	if req.ProjectID == "" {
		httpmw.BadRequest(c, "projectId is required")
		return "", "", false
	}
	dir, ok := h.resolve(c, req.ProjectDir)
	return dir, req.ProjectID, ok
}

// POST /api/firebase/service-account/set-active
func (h *Handler) httpSetActive(c *gin.Context) {
	dir, projectID, ok := h.bindServiceAccount(c)
	if !ok {
		return
	}
	st, err := h.store.SetActive(dir, projectID)
	if err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "settings": st})
}

// POST /api/firebase/service-account/delete
func (h *Handler) httpDeleteServiceAccount(c *gin.Context) {
	dir, projectID, ok := h.bindServiceAccount(c)
	if !ok {
		return
	}
	st, err := h.store.DeleteServiceAccount(dir, projectID)
	if err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "settings": st})
}

// GET /api/firebase/service-account/check?projectId=
func (h *Handler) httpCheck(c *gin.Context) {
	projectID := c.Query("projectId")
	if projectID == "" {
		httpmw.BadRequest(c, "projectId is required")
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasServiceAccount": h.creds.Has(queryDir(c), projectID)})
}
