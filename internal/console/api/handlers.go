package api

import (
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moderniselife/GFM/internal/common/httpmw"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/console"
)

// maxUploadSize bounds multipart uploads held in memory before spilling to disk.
const maxUploadSize = 32 << 20

// Handler contains HTTP handlers for the project console
type Handler struct {
	service *console.Service
	logger  *logger.Logger
}

// NewHandler creates a new console handler
func NewHandler(svc *console.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  log.WithFields(zap.String("component", "console-api")),
	}
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	h.logger.WithContext(c.Request.Context()).Warn("console request failed", zap.String("operation", op), zap.Error(err))
	httpmw.AbortWithError(c, err)
}

func page(c *gin.Context) console.PageRequest {
	return console.ParsePage(c.Query("page"), c.Query("limit"))
}

// GetFirestore returns a document or a page of a collection
// GET /api/firebase/firestore/get?path=&projectId=&page=&limit=
func (h *Handler) GetFirestore(c *gin.Context) {
	result, err := h.service.GetFirestore(c.Request.Context(), c.Query("projectId"), c.Query("path"), page(c))
	if err != nil {
		h.fail(c, "firestore.get", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeleteDocument deletes one document
// POST /api/firebase/firestore/delete?projectId=
func (h *Handler) DeleteDocument(c *gin.Context) {
	var req DeleteDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := h.service.DeleteDocument(c.Request.Context(), c.Query("projectId"), req.Path); err != nil {
		h.fail(c, "firestore.delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListStorage lists a folder of the default bucket
// GET /api/firebase/storage/list?path=&projectId=&page=&limit=
func (h *Handler) ListStorage(c *gin.Context) {
	listing, err := h.service.ListStorage(c.Request.Context(), c.Query("projectId"), c.Query("path"), page(c))
	if err != nil {
		h.fail(c, "storage.list", err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// Upload stores a multipart file
// POST /api/firebase/storage/upload (multipart: file, path, projectId)
func (h *Handler) Upload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadSize); err != nil {
		httpmw.BadRequest(c, "invalid multipart form: "+err.Error())
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		httpmw.BadRequest(c, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		httpmw.BadRequest(c, "could not read uploaded file")
		return
	}
	defer func() { _ = f.Close() }()

	obj, err := h.service.Upload(c.Request.Context(), console.UploadRequest{
		ProjectID:   c.PostForm("projectId"),
		Folder:      c.PostForm("path"),
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	})
	if err != nil {
		h.fail(c, "storage.upload", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "file": obj})
}

// Move copies an object and deletes the source unless asked to keep it
// POST /api/firebase/storage/move
func (h *Handler) Move(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	err := h.service.Move(c.Request.Context(), console.MoveRequest{
		ProjectID:   req.ProjectID,
		Source:      req.SourcePath,
		Destination: req.DestinationPath,
		KeepSource:  req.keepSource(),
	})
	if err != nil {
		h.fail(c, "storage.move", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteObject removes an object
// POST /api/firebase/storage/delete
func (h *Handler) DeleteObject(c *gin.Context) {
	var req DeleteObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := h.service.DeleteObject(c.Request.Context(), req.ProjectID, req.Path); err != nil {
		h.fail(c, "storage.delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Download streams an object as an attachment
// GET /api/firebase/storage/download?path=&projectId=
func (h *Handler) Download(c *gin.Context) {
	started := false
	err := h.service.Download(c.Request.Context(), c.Query("projectId"), c.Query("path"), c.Writer, func(obj *console.Object) {
		started = true
		contentType := obj.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Content-Type", contentType)
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(obj.Path)}))
		if obj.Size > 0 {
			c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
		}
		c.Status(http.StatusOK)
	})
	if err != nil && !started {
		h.fail(c, "storage.download", err)
	}
}

// ListUsers returns a page of Auth users
// GET /api/firebase/auth/users?dir=&projectId=&page=&limit=
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context(), c.Query("dir"), c.Query("projectId"), page(c))
	if err != nil {
		h.fail(c, "auth.users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// UpdateUser enables or disables a user
// POST /api/firebase/auth/update-user?dir=&projectId=
func (h *Handler) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Disabled == nil {
		httpmw.BadRequest(c, "disabled is required")
		return
	}
	user, err := h.service.SetUserDisabled(c.Request.Context(), c.Query("dir"), c.Query("projectId"), req.UID, *req.Disabled)
	if err != nil {
		h.fail(c, "auth.update-user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// GetRules returns the released ruleset
// GET /api/firebase/rules/get?projectId=&type=
func (h *Handler) GetRules(c *gin.Context) {
	service, err := console.ParseRulesService(c.Query("type"))
	if err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	doc, err := h.service.GetRules(c.Request.Context(), c.Query("projectId"), service)
	if err != nil {
		h.fail(c, "rules.get", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// SetRules publishes a ruleset, rejecting stale etags with 409
// POST /api/firebase/rules/set
func (h *Handler) SetRules(c *gin.Context) {
	var req SetRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	service, err := console.ParseRulesService(req.Type)
	if err != nil {
		httpmw.AbortWithError(c, err)
		return
	}
	doc, err := h.service.SetRules(c.Request.Context(), console.SetRulesRequest{
		ProjectID: req.ProjectID,
		Service:   service,
		Content:   req.Content,
		ETag:      req.ETag,
	})
	if err != nil {
		h.fail(c, "rules.set", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}
