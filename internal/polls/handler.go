package polls

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulse-engage/backend/internal/kvstore"
	"github.com/pulse-engage/backend/internal/middleware"
	"github.com/pulse-engage/backend/internal/models"
	"github.com/pulse-engage/backend/internal/realtime"
	"github.com/pulse-engage/backend/pkg/queue"
	"github.com/pulse-engage/backend/pkg/response"
)

// SaveRequest is the body for POST /polls and PUT /polls/:id.
type SaveRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Options     []string `json:"options" binding:"required"`
	Status      string   `json:"status" binding:"omitempty,oneof=open closed"`
	Image       string   `json:"image"`
}

// StatusRequest is the body for PATCH /polls/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=open closed"`
}

// VoteRequest is the body for POST /polls/:id/vote.
type VoteRequest struct {
	OptionID string `json:"option_id" binding:"required"`
}

// Handler handles poll HTTP endpoints.
type Handler struct {
	repo     *Repository
	notifier realtime.Notifier
	jobs     *queue.Queue
	logger   *zap.Logger
}

// NewHandler creates a polls handler. jobs may be nil (activity feed disabled).
func NewHandler(repo *Repository, notifier realtime.Notifier, jobs *queue.Queue, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, notifier: notifier, jobs: jobs, logger: logger}
}

// List handles GET /polls (public).
func (h *Handler) List(c *gin.Context) {
	polls, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.storeError(c, err, "failed to list polls")
		return
	}
	response.OK(c, gin.H{"polls": polls})
}

// Get handles GET /polls/:id (public).
func (h *Handler) Get(c *gin.Context) {
	p, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "failed to load poll")
		return
	}
	response.OK(c, p)
}

// Results handles GET /polls/:id/results (public).
func (h *Handler) Results(c *gin.Context) {
	res, err := h.repo.Results(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "failed to load results")
		return
	}
	response.OK(c, res)
}

// Create handles POST /polls (admin).
func (h *Handler) Create(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	options, errMsg := normalizeOptions(req.Options)
	if errMsg != "" {
		response.BadRequest(c, errMsg)
		return
	}

	p := &models.Poll{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Options:     options,
		Status:      req.Status,
		Image:       strings.TrimSpace(req.Image),
	}
	if err := h.repo.Create(c.Request.Context(), p); err != nil {
		h.storeError(c, err, "failed to create poll")
		return
	}

	h.notify("poll_created", models.PollKey(p.ID))
	h.recordActivity(c, "poll_created", p.ID, p.Title, "")
	response.Created(c, p)
}

// Update handles PUT /polls/:id (admin). Option edits preserve the vote count
// at each position; added options start at zero.
func (h *Handler) Update(c *gin.Context) {
	pollID := c.Param("id")
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	options, errMsg := normalizeOptions(req.Options)
	if errMsg != "" {
		response.BadRequest(c, errMsg)
		return
	}

	p, err := h.repo.Mutate(c.Request.Context(), pollID, func(p *models.Poll) error {
		p.Title = strings.TrimSpace(req.Title)
		p.Description = strings.TrimSpace(req.Description)
		p.Image = strings.TrimSpace(req.Image)
		if req.Status != "" {
			p.Status = req.Status
		}
		total := 0
		for i := range options {
			if i < len(p.Options) {
				options[i].Votes = p.Options[i].Votes
			}
			total += options[i].Votes
		}
		p.Options = options
		p.TotalVotes = total
		return nil
	})
	if err != nil {
		h.storeError(c, err, "failed to update poll")
		return
	}

	h.notify("poll_updated", models.PollKey(pollID))
	response.OK(c, p)
}

// SetStatus handles PATCH /polls/:id/status (admin).
func (h *Handler) SetStatus(c *gin.Context) {
	pollID := c.Param("id")
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status must be open or closed")
		return
	}
	p, err := h.repo.SetStatus(c.Request.Context(), pollID, req.Status)
	if err != nil {
		h.storeError(c, err, "failed to update poll status")
		return
	}

	h.notify("poll_status", models.PollKey(pollID))
	if req.Status == models.StatusClosed {
		h.recordActivity(c, "poll_closed", p.ID, p.Title, "")
	}
	response.OK(c, p)
}

// Delete handles DELETE /polls/:id (admin). Cascades the vote ledger.
func (h *Handler) Delete(c *gin.Context) {
	pollID := c.Param("id")
	if err := h.repo.Delete(c.Request.Context(), pollID); err != nil {
		h.storeError(c, err, "failed to delete poll")
		return
	}
	h.notify("poll_deleted", models.PollKey(pollID))
	response.NoContent(c)
}

// Vote handles POST /polls/:id/vote (participant or admin).
func (h *Handler) Vote(c *gin.Context) {
	pollID := c.Param("id")
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID).String()

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "option_id is required")
		return
	}

	p, err := h.repo.CastVote(c.Request.Context(), userID, pollID, req.OptionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyVoted):
			response.Conflict(c, "you already voted in this poll")
		case errors.Is(err, ErrPollClosed):
			response.BadRequest(c, "poll is not open for voting")
		case errors.Is(err, ErrUnknownOption):
			response.BadRequest(c, "unknown poll option")
		default:
			h.storeError(c, err, "failed to record vote")
		}
		return
	}

	h.notify("poll_voted", models.PollKey(pollID))
	h.recordActivity(c, "vote_cast", p.ID, p.Title, req.OptionID)
	response.OK(c, gin.H{"poll_id": pollID, "option_id": req.OptionID, "totalVotes": p.TotalVotes})
}

// MyVote handles GET /polls/:id/vote. A missing vote is a normal outcome.
func (h *Handler) MyVote(c *gin.Context) {
	pollID := c.Param("id")
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID).String()

	v, err := h.repo.GetVote(c.Request.Context(), userID, pollID)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			response.OK(c, gin.H{"voted": false})
			return
		}
		h.storeError(c, err, "failed to load vote")
		return
	}
	response.OK(c, gin.H{"voted": true, "vote": v})
}

func (h *Handler) notify(event, key string) {
	if h.notifier != nil {
		h.notifier.DocumentChanged(event, key)
	}
}

func (h *Handler) recordActivity(c *gin.Context, kind, subjectID, subjectTitle, detail string) {
	if h.jobs == nil {
		return
	}
	userID := ""
	if v, ok := c.Get(middleware.ContextUserID); ok {
		if id, ok := v.(uuid.UUID); ok {
			userID = id.String()
		}
	}
	email := c.GetString(middleware.ContextUserEmail)
	payload := queue.ActivityPayload{
		Kind:         kind,
		ActorID:      userID,
		ActorName:    email,
		SubjectID:    subjectID,
		SubjectTitle: subjectTitle,
		Detail:       detail,
		At:           time.Now().UTC(),
	}
	if err := h.jobs.EnqueueActivity(c.Request.Context(), payload); err != nil {
		h.logger.Warn("enqueue activity", zap.Error(err), zap.String("kind", kind))
	}
}

func (h *Handler) storeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		response.NotFound(c, "poll not found")
	case errors.Is(err, kvstore.ErrAlreadyExists):
		response.Conflict(c, "poll already exists")
	case errors.Is(err, kvstore.ErrUnavailable):
		response.ServiceUnavailable(c, "storage temporarily unavailable")
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c, msg)
	}
}

// normalizeOptions trims and validates option texts and assigns stable ids by
// position (option_0, option_1, ...), matching the stored document layout.
func normalizeOptions(texts []string) ([]models.PollOption, string) {
	options := make([]models.PollOption, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		options = append(options, models.PollOption{
			ID:   fmt.Sprintf("option_%d", len(options)),
			Text: t,
		})
	}
	if len(options) < 2 {
		return nil, "options: at least 2 non-empty options are required"
	}
	return options, ""
}
