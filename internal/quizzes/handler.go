package quizzes

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

// QuestionRequest is one question in a quiz save request.
type QuestionRequest struct {
	Question      string   `json:"question" binding:"required"`
	Options       []string `json:"options" binding:"required"`
	CorrectAnswer int      `json:"correct_answer"`
	Image         string   `json:"image"`
}

// SaveRequest is the body for POST /quizzes and PUT /quizzes/:id.
type SaveRequest struct {
	Title       string            `json:"title" binding:"required"`
	Description string            `json:"description" binding:"required"`
	Questions   []QuestionRequest `json:"questions" binding:"required"`
	Status      string            `json:"status" binding:"omitempty,oneof=open closed"`
	Image       string            `json:"image"`
}

// StatusRequest is the body for PATCH /quizzes/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=open closed"`
}

// ProgressRequest is the body for PUT /quizzes/:id/progress.
type ProgressRequest struct {
	Answers              []int `json:"answers" binding:"required"`
	CurrentQuestionIndex int   `json:"current_question_index"`
}

// SubmitRequest is the body for POST /quizzes/:id/submit.
type SubmitRequest struct {
	Answers []int `json:"answers" binding:"required"`
}

// Handler handles quiz HTTP endpoints.
type Handler struct {
	repo     *Repository
	notifier realtime.Notifier
	jobs     *queue.Queue
	logger   *zap.Logger
}

// NewHandler creates a quizzes handler. jobs may be nil (activity feed disabled).
func NewHandler(repo *Repository, notifier realtime.Notifier, jobs *queue.Queue, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, notifier: notifier, jobs: jobs, logger: logger}
}

// List handles GET /quizzes (public). Answer keys are stripped.
func (h *Handler) List(c *gin.Context) {
	quizzes, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.storeError(c, err, "failed to list quizzes")
		return
	}
	public := make([]models.QuizPublic, 0, len(quizzes))
	for i := range quizzes {
		public = append(public, quizzes[i].Public())
	}
	response.OK(c, gin.H{"quizzes": public})
}

// Get handles GET /quizzes/:id (public). Answer key stripped.
func (h *Handler) Get(c *gin.Context) {
	q, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "failed to load quiz")
		return
	}
	response.OK(c, q.Public())
}

// GetFull handles GET /quizzes/:id/full (admin). Includes the answer key.
func (h *Handler) GetFull(c *gin.Context) {
	q, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "failed to load quiz")
		return
	}
	response.OK(c, q)
}

// Create handles POST /quizzes (admin).
func (h *Handler) Create(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	questions, errMsg := normalizeQuestions(req.Questions)
	if errMsg != "" {
		response.BadRequest(c, errMsg)
		return
	}

	q := &models.Quiz{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Questions:   questions,
		Status:      req.Status,
		Image:       strings.TrimSpace(req.Image),
	}
	if err := h.repo.Create(c.Request.Context(), q); err != nil {
		h.storeError(c, err, "failed to create quiz")
		return
	}

	h.notify("quiz_created", models.QuizKey(q.ID))
	h.recordActivity(c, "quiz_created", q.ID, q.Title, "")
	response.Created(c, q)
}

// Update handles PUT /quizzes/:id (admin).
func (h *Handler) Update(c *gin.Context) {
	quizID := c.Param("id")
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	questions, errMsg := normalizeQuestions(req.Questions)
	if errMsg != "" {
		response.BadRequest(c, errMsg)
		return
	}

	q, err := h.repo.Mutate(c.Request.Context(), quizID, func(q *models.Quiz) error {
		q.Title = strings.TrimSpace(req.Title)
		q.Description = strings.TrimSpace(req.Description)
		q.Questions = questions
		q.Image = strings.TrimSpace(req.Image)
		if req.Status != "" {
			q.Status = req.Status
		}
		return nil
	})
	if err != nil {
		h.storeError(c, err, "failed to update quiz")
		return
	}

	h.notify("quiz_updated", models.QuizKey(quizID))
	response.OK(c, q)
}

// SetStatus handles PATCH /quizzes/:id/status (admin).
func (h *Handler) SetStatus(c *gin.Context) {
	quizID := c.Param("id")
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status must be open or closed")
		return
	}
	q, err := h.repo.SetStatus(c.Request.Context(), quizID, req.Status)
	if err != nil {
		h.storeError(c, err, "failed to update quiz status")
		return
	}

	h.notify("quiz_status", models.QuizKey(quizID))
	if req.Status == models.StatusClosed {
		h.recordActivity(c, "quiz_closed", q.ID, q.Title, "")
	}
	response.OK(c, q)
}

// Delete handles DELETE /quizzes/:id (admin). Cascades progress and submissions.
func (h *Handler) Delete(c *gin.Context) {
	quizID := c.Param("id")
	if err := h.repo.Delete(c.Request.Context(), quizID); err != nil {
		h.storeError(c, err, "failed to delete quiz")
		return
	}
	h.notify("quiz_deleted", models.QuizKey(quizID))
	response.NoContent(c)
}

// SaveProgress handles PUT /quizzes/:id/progress.
func (h *Handler) SaveProgress(c *gin.Context) {
	quizID := c.Param("id")
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID).String()

	var req ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "answers are required")
		return
	}
	progress := models.QuizProgress{
		Answers:              req.Answers,
		CurrentQuestionIndex: req.CurrentQuestionIndex,
	}
	if err := h.repo.SaveProgress(c.Request.Context(), userID, quizID, progress); err != nil {
		switch {
		case errors.Is(err, ErrQuizClosed):
			response.BadRequest(c, "quiz is closed")
		case errors.Is(err, ErrAlreadySubmitted):
			response.Conflict(c, "quiz already submitted")
		default:
			h.storeError(c, err, "failed to save progress")
		}
		return
	}
	response.OK(c, gin.H{"quiz_id": quizID, "saved": true})
}

// GetProgress handles GET /quizzes/:id/progress. Not started is a normal outcome.
func (h *Handler) GetProgress(c *gin.Context) {
	quizID := c.Param("id")
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID).String()

	p, err := h.repo.GetProgress(c.Request.Context(), userID, quizID)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			response.OK(c, gin.H{"started": false})
			return
		}
		h.storeError(c, err, "failed to load progress")
		return
	}
	response.OK(c, gin.H{"started": true, "progress": p})
}

// Submit handles POST /quizzes/:id/submit. Grading is server-side; the raw
// answer indices are the only thing trusted from the client.
func (h *Handler) Submit(c *gin.Context) {
	quizID := c.Param("id")
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID).String()

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "answers are required")
		return
	}

	sub, err := h.repo.Submit(c.Request.Context(), userID, quizID, req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadySubmitted):
			response.Conflict(c, "you already submitted this quiz")
		case errors.Is(err, ErrQuizClosed):
			response.BadRequest(c, "quiz is not open for submissions")
		case errors.Is(err, ErrAnswerCount):
			response.BadRequest(c, "answers: one answer per question is required")
		case errors.Is(err, ErrAnswerRange):
			response.BadRequest(c, "answers: index out of range for question options")
		default:
			h.storeError(c, err, "failed to submit quiz")
		}
		return
	}

	h.notify("quiz_submitted", models.QuizKey(quizID))
	h.recordActivity(c, "quiz_submitted", quizID, "", fmt.Sprintf("%d/%d", sub.Score, sub.TotalQuestions))
	response.OK(c, gin.H{
		"submission": sub,
		"percentage": ScorePercent(sub.Score, sub.TotalQuestions),
		"band":       GradeBand(sub.Score, sub.TotalQuestions),
	})
}

// MySubmission handles GET /quizzes/:id/submission.
func (h *Handler) MySubmission(c *gin.Context) {
	quizID := c.Param("id")
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID).String()

	sub, err := h.repo.GetSubmission(c.Request.Context(), userID, quizID)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			response.OK(c, gin.H{"submitted": false})
			return
		}
		h.storeError(c, err, "failed to load submission")
		return
	}
	response.OK(c, gin.H{
		"submitted":  true,
		"submission": sub,
		"percentage": ScorePercent(sub.Score, sub.TotalQuestions),
		"band":       GradeBand(sub.Score, sub.TotalQuestions),
	})
}

// Submissions handles GET /quizzes/:id/submissions (admin monitoring).
func (h *Handler) Submissions(c *gin.Context) {
	subs, err := h.repo.Submissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "failed to list submissions")
		return
	}
	response.OK(c, gin.H{"submissions": subs})
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
	payload := queue.ActivityPayload{
		Kind:         kind,
		ActorID:      userID,
		ActorName:    c.GetString(middleware.ContextUserEmail),
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
		response.NotFound(c, "quiz not found")
	case errors.Is(err, kvstore.ErrAlreadyExists):
		response.Conflict(c, "quiz already exists")
	case errors.Is(err, kvstore.ErrUnavailable):
		response.ServiceUnavailable(c, "storage temporarily unavailable")
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c, msg)
	}
}

// normalizeQuestions validates question texts, options and answer indices and
// assigns stable position-based ids.
func normalizeQuestions(reqs []QuestionRequest) ([]models.QuizQuestion, string) {
	if len(reqs) == 0 {
		return nil, "questions: at least 1 question is required"
	}
	questions := make([]models.QuizQuestion, 0, len(reqs))
	for i, qr := range reqs {
		text := strings.TrimSpace(qr.Question)
		if text == "" {
			return nil, fmt.Sprintf("questions[%d].question: text is required", i)
		}
		options := make([]string, 0, len(qr.Options))
		for j, opt := range qr.Options {
			opt = strings.TrimSpace(opt)
			if opt == "" {
				return nil, fmt.Sprintf("questions[%d].options[%d]: text is required", i, j)
			}
			options = append(options, opt)
		}
		if len(options) < 2 {
			return nil, fmt.Sprintf("questions[%d].options: at least 2 options are required", i)
		}
		if qr.CorrectAnswer < 0 || qr.CorrectAnswer >= len(options) {
			return nil, fmt.Sprintf("questions[%d].correct_answer: index out of range", i)
		}
		questions = append(questions, models.QuizQuestion{
			ID:            fmt.Sprintf("question_%d", i),
			Question:      text,
			Options:       options,
			CorrectAnswer: qr.CorrectAnswer,
			Image:         strings.TrimSpace(qr.Image),
		})
	}
	return questions, ""
}
