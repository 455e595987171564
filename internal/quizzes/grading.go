package quizzes

import (
	"math"

	"github.com/pulse-engage/backend/internal/models"
)

// Grade counts answers matching the question's correct index. Answers beyond
// the question list are ignored; grading always runs server-side against the
// stored answer key.
func Grade(questions []models.QuizQuestion, answers []int) int {
	score := 0
	for i, q := range questions {
		if i < len(answers) && answers[i] == q.CorrectAnswer {
			score++
		}
	}
	return score
}

// ScorePercent returns the rounded score percentage, 0 for an empty quiz.
func ScorePercent(score, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(total)))
}

// GradeBand maps a score to the UI feedback band. Cosmetic, never stored.
func GradeBand(score, total int) string {
	switch pct := ScorePercent(score, total); {
	case pct >= 90:
		return "excellent"
	case pct >= 70:
		return "great"
	case pct >= 50:
		return "good"
	default:
		return "keep learning"
	}
}
