package models

import "time"

// Activity status values shared by polls and quizzes.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// PollOption is one votable option. Votes is a denormalized counter kept in
// step with Poll.TotalVotes by the vote transaction.
type PollOption struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// Poll is a titled question with multiple named options, stored as the
// document at poll:<id>.
type Poll struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Options     []PollOption `json:"options"`
	Status      string       `json:"status"`
	TotalVotes  int          `json:"totalVotes"`
	Image       string       `json:"image,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Option returns the option with the given id, or nil.
func (p *Poll) Option(optionID string) *PollOption {
	for i := range p.Options {
		if p.Options[i].ID == optionID {
			return &p.Options[i]
		}
	}
	return nil
}

// Vote records that a user voted for one option of one poll. The existence of
// its document at vote:<userId>:<pollId> is the dedupe signal.
type Vote struct {
	UserID    string    `json:"userId"`
	PollID    string    `json:"pollId"`
	OptionID  string    `json:"optionId"`
	Timestamp time.Time `json:"timestamp"`
}

// PollOptionResult is one option with its computed share of the vote.
type PollOptionResult struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Votes      int    `json:"votes"`
	Percentage int    `json:"percentage"`
}

// PollResults is the read-time tally view of a poll.
type PollResults struct {
	PollID     string             `json:"pollId"`
	Title      string             `json:"title"`
	Status     string             `json:"status"`
	TotalVotes int                `json:"totalVotes"`
	Options    []PollOptionResult `json:"options"`
}
