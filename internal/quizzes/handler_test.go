package quizzes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulse-engage/backend/internal/kvstore"
	"github.com/pulse-engage/backend/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type quizEnv struct {
	router *gin.Engine
	repo   *Repository
	userID uuid.UUID
}

func newQuizEnv(t *testing.T) *quizEnv {
	t.Helper()
	repo := NewRepository(kvstore.NewMemory())
	handler := NewHandler(repo, nil, nil, zap.NewNop())
	userID := uuid.New()

	auth := func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextUserEmail, "user@example.com")
		c.Next()
	}

	router := gin.New()
	router.GET("/quizzes", handler.List)
	router.GET("/quizzes/:id", handler.Get)
	authed := router.Group("/", auth)
	authed.PUT("/quizzes/:id/progress", handler.SaveProgress)
	authed.GET("/quizzes/:id/progress", handler.GetProgress)
	authed.POST("/quizzes/:id/submit", handler.Submit)
	authed.GET("/quizzes/:id/submission", handler.MySubmission)
	admin := router.Group("/admin", auth)
	admin.POST("/quizzes", handler.Create)
	admin.GET("/quizzes/:id/full", handler.GetFull)
	admin.GET("/quizzes/:id/submissions", handler.Submissions)

	return &quizEnv{router: router, repo: repo, userID: userID}
}

func (e *quizEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestQuizListStripsAnswerKeys(t *testing.T) {
	env := newQuizEnv(t)
	newTestQuiz(t, env.repo)

	rec := env.do(t, http.MethodGet, "/quizzes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "correctAnswer")
	assert.Contains(t, rec.Body.String(), "question_0")
}

func TestQuizGetFullIncludesAnswerKey(t *testing.T) {
	env := newQuizEnv(t)
	q := newTestQuiz(t, env.repo)

	rec := env.do(t, http.MethodGet, "/quizzes/"+q.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "correctAnswer")

	rec = env.do(t, http.MethodGet, "/admin/quizzes/"+q.ID+"/full", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "correctAnswer")
}

func TestCreateQuizEndpointValidation(t *testing.T) {
	env := newQuizEnv(t)

	rec := env.do(t, http.MethodPost, "/admin/quizzes", gin.H{
		"title":       "Go basics",
		"description": "warmup",
		"questions": []gin.H{
			{"question": "q0", "options": []string{"a", "b"}, "correct_answer": 5},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/quizzes", gin.H{
		"title":       "Go basics",
		"description": "warmup",
		"questions": []gin.H{
			{"question": "q0", "options": []string{"a", "b"}, "correct_answer": 1},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"question_0"`)
}

func TestSubmitEndpointGradesAndDedupes(t *testing.T) {
	env := newQuizEnv(t)
	q := newTestQuiz(t, env.repo)

	rec := env.do(t, http.MethodPost, "/quizzes/"+q.ID+"/submit", gin.H{"answers": []int{0, 1, 1}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"score":2`)
	assert.Contains(t, rec.Body.String(), `"percentage":67`)
	assert.Contains(t, rec.Body.String(), `"band":"good"`)

	rec = env.do(t, http.MethodPost, "/quizzes/"+q.ID+"/submit", gin.H{"answers": []int{0, 1, 2}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The stored submission still carries the first attempt's score.
	sub, err := env.repo.GetSubmission(context.Background(), env.userID.String(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Score)
}

func TestSubmitEndpointValidatesAnswers(t *testing.T) {
	env := newQuizEnv(t)
	q := newTestQuiz(t, env.repo)

	rec := env.do(t, http.MethodPost, "/quizzes/"+q.ID+"/submit", gin.H{"answers": []int{0}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/quizzes/"+q.ID+"/submit", gin.H{"answers": []int{0, 9, 2}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgressEndpointsRoundTrip(t *testing.T) {
	env := newQuizEnv(t)
	q := newTestQuiz(t, env.repo)

	rec := env.do(t, http.MethodGet, "/quizzes/"+q.ID+"/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"started":false`)

	rec = env.do(t, http.MethodPut, "/quizzes/"+q.ID+"/progress", gin.H{
		"answers":                []int{0, 1},
		"current_question_index": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/quizzes/"+q.ID+"/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"started":true`)
	assert.Contains(t, rec.Body.String(), `"currentQuestionIndex":2`)
}

func TestProgressAfterSubmitConflicts(t *testing.T) {
	env := newQuizEnv(t)
	q := newTestQuiz(t, env.repo)

	rec := env.do(t, http.MethodPost, "/quizzes/"+q.ID+"/submit", gin.H{"answers": []int{0, 1, 2}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, "/quizzes/"+q.ID+"/progress", gin.H{"answers": []int{0}})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMySubmissionEndpoint(t *testing.T) {
	env := newQuizEnv(t)
	q := newTestQuiz(t, env.repo)

	rec := env.do(t, http.MethodGet, "/quizzes/"+q.ID+"/submission", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"submitted":false`)

	env.do(t, http.MethodPost, "/quizzes/"+q.ID+"/submit", gin.H{"answers": []int{0, 1, 2}})

	rec = env.do(t, http.MethodGet, "/quizzes/"+q.ID+"/submission", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"submitted":true`)
	assert.Contains(t, rec.Body.String(), `"band":"excellent"`)
}

func TestSubmissionsEndpoint(t *testing.T) {
	env := newQuizEnv(t)
	q := newTestQuiz(t, env.repo)

	_, err := env.repo.Submit(context.Background(), "other-user", q.ID, []int{0, 0, 0})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/admin/quizzes/"+q.ID+"/submissions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"userId":"other-user"`)
}
