package activity

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pulse-engage/backend/internal/kvstore"
	"github.com/pulse-engage/backend/pkg/response"
)

// Handler serves the activity feed.
type Handler struct {
	repo         *Repository
	defaultLimit int
	logger       *zap.Logger
}

// NewHandler creates an activity handler.
func NewHandler(repo *Repository, defaultLimit int, logger *zap.Logger) *Handler {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &Handler{repo: repo, defaultLimit: defaultLimit, logger: logger}
}

// List handles GET /activity (public). Supports ?limit=N.
func (h *Handler) List(c *gin.Context) {
	limit := h.defaultLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	items, err := h.repo.List(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, kvstore.ErrUnavailable) {
			response.ServiceUnavailable(c, "storage temporarily unavailable")
			return
		}
		h.logger.Error("list activity", zap.Error(err))
		response.Internal(c, "failed to list activity")
		return
	}
	response.OK(c, gin.H{"activities": items})
}
