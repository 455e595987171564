package models

// Key prefixes for the document store. Keys are colon-delimited; the key itself
// encodes the entity's logical address, so these builders are the schema.
const (
	PrefixPoll           = "poll:"
	PrefixQuiz           = "quiz:"
	PrefixVote           = "vote:"
	PrefixQuizProgress   = "quiz_progress:"
	PrefixQuizSubmission = "quiz_submission:"
	PrefixActivity       = "activity:"
)

// PollKey is poll:<pollId>.
func PollKey(pollID string) string { return PrefixPoll + pollID }

// QuizKey is quiz:<quizId>.
func QuizKey(quizID string) string { return PrefixQuiz + quizID }

// VoteKey is vote:<userId>:<pollId>. One document per (user, poll).
func VoteKey(userID, pollID string) string { return PrefixVote + userID + ":" + pollID }

// QuizProgressKey is quiz_progress:<userId>:<quizId>.
func QuizProgressKey(userID, quizID string) string {
	return PrefixQuizProgress + userID + ":" + quizID
}

// QuizSubmissionKey is quiz_submission:<userId>:<quizId>. One document per (user, quiz).
func QuizSubmissionKey(userID, quizID string) string {
	return PrefixQuizSubmission + userID + ":" + quizID
}

// ActivityKey is activity:<id>.
func ActivityKey(id string) string { return PrefixActivity + id }
