// Package media issues pre-signed upload URLs for poll and quiz images.
package media

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulse-engage/backend/pkg/response"
	"github.com/pulse-engage/backend/pkg/storage"
)

// UploadURLRequest is the body for POST /media/upload-url.
type UploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// Handler handles media endpoints. s3 may be nil when AWS is not configured.
type Handler struct {
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a media handler.
func NewHandler(s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{s3: s3, logger: logger}
}

// UploadURL handles POST /media/upload-url (admin). Returns a pre-signed PUT
// URL and the public object URL to store in the poll/quiz image field.
func (h *Handler) UploadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "media uploads are not configured")
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !storage.ValidateImageType(req.ContentType, req.Filename) {
		response.BadRequest(c, "unsupported image type")
		return
	}

	key := storage.MediaKey(uuid.New().String(), req.Filename)
	uploadURL, objectURL, err := h.s3.PresignUpload(c.Request.Context(), key, req.ContentType)
	if err != nil {
		h.logger.Error("presign upload", zap.Error(err))
		response.Internal(c, "failed to create upload url")
		return
	}
	response.OK(c, gin.H{
		"upload_url": uploadURL,
		"object_url": objectURL,
		"key":        key,
		"max_bytes":  storage.MaxMediaFileSize,
	})
}
