package models

import "time"

// QuizQuestion is one multiple-choice question. CorrectAnswer is a zero-based
// index into Options and must never reach a participant client before grading.
type QuizQuestion struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Image         string   `json:"image,omitempty"`
}

// Quiz is an ordered sequence of questions, stored as the document at quiz:<id>.
type Quiz struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Questions   []QuizQuestion `json:"questions"`
	Status      string         `json:"status"`
	Image       string         `json:"image,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// QuizQuestionPublic is a question with the answer key stripped.
type QuizQuestionPublic struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Image    string   `json:"image,omitempty"`
}

// QuizPublic is the participant-facing quiz representation.
type QuizPublic struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Questions   []QuizQuestionPublic `json:"questions"`
	Status      string               `json:"status"`
	Image       string               `json:"image,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// Public strips correct answers for participant consumption.
func (q *Quiz) Public() QuizPublic {
	pub := QuizPublic{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		Status:      q.Status,
		Image:       q.Image,
		CreatedAt:   q.CreatedAt,
	}
	pub.Questions = make([]QuizQuestionPublic, 0, len(q.Questions))
	for _, question := range q.Questions {
		pub.Questions = append(pub.Questions, QuizQuestionPublic{
			ID:       question.ID,
			Question: question.Question,
			Options:  question.Options,
			Image:    question.Image,
		})
	}
	return pub
}

// QuizProgress is the transient in-flight answer state at
// quiz_progress:<userId>:<quizId>, deleted on submission.
type QuizProgress struct {
	Answers              []int     `json:"answers"`
	CurrentQuestionIndex int       `json:"currentQuestionIndex"`
	Timestamp            time.Time `json:"timestamp"`
}

// QuizSubmission is the immutable graded result at
// quiz_submission:<userId>:<quizId>. Its existence is the dedupe signal.
type QuizSubmission struct {
	UserID         string    `json:"userId"`
	QuizID         string    `json:"quizId"`
	Answers        []int     `json:"answers"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Timestamp      time.Time `json:"timestamp"`
}
