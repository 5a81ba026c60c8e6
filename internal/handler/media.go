package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/team-spoved/spoved/internal/model"
	"github.com/team-spoved/spoved/internal/service"
)

// maxUpload bounds one multipart media upload.
const maxUpload = 64 << 20

type MediaHandler struct {
	svc       service.MediaServicer
	maxUpload int64
}

func NewMediaHandler(svc service.MediaServicer) *MediaHandler {
	return &MediaHandler{svc: svc, maxUpload: maxUpload}
}

func (h *MediaHandler) Create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	blobType := c.PostForm("blobType")
	if blobType == "" {
		blobType = fh.Header.Get("Content-Type")
	}
	m, err := h.svc.Create(c.Request.Context(), model.MediaUpload{
		Filename:  fh.Filename,
		MediaType: model.MediaType(c.PostForm("mediaType")),
		BlobType:  blobType,
		Content:   content,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *MediaHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *MediaHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	m, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *MediaHandler) UpdateAnalyzed(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var analyzed bool
	if err := c.ShouldBindJSON(&analyzed); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be true or false"})
		return
	}
	m, err := h.svc.SetAnalyzed(c.Request.Context(), id, analyzed)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *MediaHandler) UpdateResult(c *gin.Context) {
	h.updateText(c, h.svc.SetResult)
}

func (h *MediaHandler) UpdateReason(c *gin.Context) {
	h.updateText(c, h.svc.SetReason)
}

func (h *MediaHandler) updateText(c *gin.Context, set func(ctx context.Context, id int, text string) (*model.Media, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	m, err := set(c.Request.Context(), id, string(body))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
