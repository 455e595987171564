// Package quizzes implements quiz authoring, in-flight progress, server-side
// grading and the submission dedupe ledger.
package quizzes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulse-engage/backend/internal/kvstore"
	"github.com/pulse-engage/backend/internal/models"
)

var (
	// ErrAlreadySubmitted means a submission document already exists for (user, quiz).
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	// ErrQuizClosed means the quiz is not accepting submissions.
	ErrQuizClosed = errors.New("quiz is closed")
	// ErrAnswerCount means the answer list does not cover every question.
	ErrAnswerCount = errors.New("answer count does not match question count")
	// ErrAnswerRange means an answer index is outside its question's options.
	ErrAnswerRange = errors.New("answer index out of range")
)

// Repository persists quizzes, progress and submissions in the document store.
type Repository struct {
	store kvstore.Store
}

// NewRepository creates a quizzes repository.
func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

// List returns all quizzes, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Quiz, error) {
	docs, err := r.store.ScanByPrefix(ctx, models.PrefixQuiz)
	if err != nil {
		return nil, err
	}
	quizzes := make([]models.Quiz, 0, len(docs))
	for _, d := range docs {
		var q models.Quiz
		if err := json.Unmarshal(d.Value, &q); err != nil {
			return nil, fmt.Errorf("decode %s: %w", d.Key, err)
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, nil
}

// Get returns one quiz by id, answer key included. Callers serving
// participants must use Quiz.Public().
func (r *Repository) Get(ctx context.Context, quizID string) (*models.Quiz, error) {
	value, err := r.store.Get(ctx, models.QuizKey(quizID))
	if err != nil {
		return nil, err
	}
	var q models.Quiz
	if err := json.Unmarshal(value, &q); err != nil {
		return nil, fmt.Errorf("decode quiz %s: %w", quizID, err)
	}
	return &q, nil
}

// Create inserts a new quiz.
func (r *Repository) Create(ctx context.Context, q *models.Quiz) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.Status == "" {
		q.Status = models.StatusOpen
	}
	q.CreatedAt = time.Now().UTC()
	value, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return r.store.Insert(ctx, models.QuizKey(q.ID), value)
}

// Mutate applies fn to the stored quiz under the store's write lock.
func (r *Repository) Mutate(ctx context.Context, quizID string, fn func(q *models.Quiz) error) (*models.Quiz, error) {
	var updated models.Quiz
	err := r.store.Update(ctx, models.QuizKey(quizID), func(current []byte) ([]byte, error) {
		var q models.Quiz
		if err := json.Unmarshal(current, &q); err != nil {
			return nil, fmt.Errorf("decode quiz %s: %w", quizID, err)
		}
		if err := fn(&q); err != nil {
			return nil, err
		}
		updated = q
		return json.Marshal(&q)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetStatus toggles a quiz open/closed.
func (r *Repository) SetStatus(ctx context.Context, quizID, status string) (*models.Quiz, error) {
	return r.Mutate(ctx, quizID, func(q *models.Quiz) error {
		q.Status = status
		return nil
	})
}

// Delete removes a quiz and cascades its progress and submission documents.
func (r *Repository) Delete(ctx context.Context, quizID string) error {
	if err := r.store.Delete(ctx, models.QuizKey(quizID)); err != nil {
		return err
	}
	suffix := ":" + quizID
	for _, prefix := range []string{models.PrefixQuizProgress, models.PrefixQuizSubmission} {
		docs, err := r.store.ScanByPrefix(ctx, prefix)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if strings.HasSuffix(d.Key, suffix) {
				if err := r.store.Delete(ctx, d.Key); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
					return err
				}
			}
		}
	}
	return nil
}

// SaveProgress upserts the user's in-flight answers. Rejected once a
// submission exists or the quiz is closed.
func (r *Repository) SaveProgress(ctx context.Context, userID, quizID string, progress models.QuizProgress) error {
	q, err := r.Get(ctx, quizID)
	if err != nil {
		return err
	}
	if q.Status != models.StatusOpen {
		return ErrQuizClosed
	}
	if _, err := r.store.Get(ctx, models.QuizSubmissionKey(userID, quizID)); err == nil {
		return ErrAlreadySubmitted
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		return err
	}
	progress.Timestamp = time.Now().UTC()
	value, err := json.Marshal(&progress)
	if err != nil {
		return err
	}
	return r.store.Upsert(ctx, models.QuizProgressKey(userID, quizID), value)
}

// GetProgress returns the user's progress document. kvstore.ErrNotFound means
// the user has not started.
func (r *Repository) GetProgress(ctx context.Context, userID, quizID string) (*models.QuizProgress, error) {
	value, err := r.store.Get(ctx, models.QuizProgressKey(userID, quizID))
	if err != nil {
		return nil, err
	}
	var p models.QuizProgress
	if err := json.Unmarshal(value, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Submit grades the answers server-side and records the submission once.
// The strict insert on the submission key is the dedupe: a second attempt
// returns ErrAlreadySubmitted and never alters the stored score. The
// progress document is deleted on success.
func (r *Repository) Submit(ctx context.Context, userID, quizID string, answers []int) (*models.QuizSubmission, error) {
	q, err := r.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if q.Status != models.StatusOpen {
		return nil, ErrQuizClosed
	}
	if len(answers) != len(q.Questions) {
		return nil, ErrAnswerCount
	}
	for i, a := range answers {
		if a < 0 || a >= len(q.Questions[i].Options) {
			return nil, ErrAnswerRange
		}
	}

	sub := models.QuizSubmission{
		UserID:         userID,
		QuizID:         quizID,
		Answers:        answers,
		Score:          Grade(q.Questions, answers),
		TotalQuestions: len(q.Questions),
		Timestamp:      time.Now().UTC(),
	}
	value, err := json.Marshal(&sub)
	if err != nil {
		return nil, err
	}
	if err := r.store.Insert(ctx, models.QuizSubmissionKey(userID, quizID), value); err != nil {
		if errors.Is(err, kvstore.ErrAlreadyExists) {
			return nil, ErrAlreadySubmitted
		}
		return nil, err
	}
	if err := r.store.Delete(ctx, models.QuizProgressKey(userID, quizID)); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		// Submission is recorded; an orphaned progress doc is swept by the reaper.
		return &sub, nil
	}
	return &sub, nil
}

// GetSubmission returns the user's graded submission, or kvstore.ErrNotFound.
func (r *Repository) GetSubmission(ctx context.Context, userID, quizID string) (*models.QuizSubmission, error) {
	value, err := r.store.Get(ctx, models.QuizSubmissionKey(userID, quizID))
	if err != nil {
		return nil, err
	}
	var sub models.QuizSubmission
	if err := json.Unmarshal(value, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Submissions returns all submissions for a quiz, newest first (monitoring view).
func (r *Repository) Submissions(ctx context.Context, quizID string) ([]models.QuizSubmission, error) {
	docs, err := r.store.ScanByPrefix(ctx, models.PrefixQuizSubmission)
	if err != nil {
		return nil, err
	}
	suffix := ":" + quizID
	subs := make([]models.QuizSubmission, 0)
	for _, d := range docs {
		if !strings.HasSuffix(d.Key, suffix) {
			continue
		}
		var sub models.QuizSubmission
		if err := json.Unmarshal(d.Value, &sub); err != nil {
			return nil, fmt.Errorf("decode %s: %w", d.Key, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
