package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"society-service/internal/models"
	"society-service/internal/providers"
)

// FileHandler hands out presigned URLs for gate photos and notice
// attachments
type FileHandler struct {
	store     providers.FileStore
	urlExpiry time.Duration
}

// NewFileHandler creates a new file handler
func NewFileHandler(store providers.FileStore, urlExpiry time.Duration) *FileHandler {
	if urlExpiry == 0 {
		urlExpiry = 15 * time.Minute
	}
	return &FileHandler{store: store, urlExpiry: urlExpiry}
}

// UploadURL returns a presigned PUT URL for a direct client upload
func (h *FileHandler) UploadURL(c *gin.Context) {
	var req models.UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	key := h.store.ObjectKey(req.Prefix, req.FileName)
	url, err := h.store.UploadURL(c.Request.Context(), key, req.ContentType, h.urlExpiry)
	if err != nil {
		ErrorResponse(c, http.StatusServiceUnavailable, "Failed to generate upload URL", err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Upload URL generated", models.UploadURLResponse{
		UploadURL: url,
		ObjectKey: key,
		ExpiresIn: int(h.urlExpiry.Seconds()),
	})
}

// DownloadURL returns a presigned GET URL for an object key
func (h *FileHandler) DownloadURL(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		ErrorResponse(c, http.StatusBadRequest, "key query parameter is required", nil)
		return
	}

	url, err := h.store.DownloadURL(c.Request.Context(), key, h.urlExpiry)
	if err != nil {
		ErrorResponse(c, http.StatusServiceUnavailable, "Failed to generate download URL", err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Download URL generated", gin.H{
		"downloadUrl": url,
		"expiresIn":   int(h.urlExpiry.Seconds()),
	})
}
