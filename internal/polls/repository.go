// Package polls implements poll authoring, the vote dedupe ledger and the
// tally aggregation on top of the document store.
package polls

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
	// ErrAlreadyVoted means a vote document already exists for (user, poll).
	ErrAlreadyVoted = errors.New("already voted in this poll")
	// ErrPollClosed means the poll is not accepting votes.
	ErrPollClosed = errors.New("poll is closed")
	// ErrUnknownOption means the option id is not one of the poll's options.
	ErrUnknownOption = errors.New("unknown poll option")
)

// Repository persists polls and votes in the document store.
type Repository struct {
	store kvstore.Store
}

// NewRepository creates a polls repository.
func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

// List returns all polls, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Poll, error) {
	docs, err := r.store.ScanByPrefix(ctx, models.PrefixPoll)
	if err != nil {
		return nil, err
	}
	polls := make([]models.Poll, 0, len(docs))
	for _, d := range docs {
		var p models.Poll
		if err := json.Unmarshal(d.Value, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", d.Key, err)
		}
		polls = append(polls, p)
	}
	return polls, nil
}

// Get returns one poll by id.
func (r *Repository) Get(ctx context.Context, pollID string) (*models.Poll, error) {
	value, err := r.store.Get(ctx, models.PollKey(pollID))
	if err != nil {
		return nil, err
	}
	var p models.Poll
	if err := json.Unmarshal(value, &p); err != nil {
		return nil, fmt.Errorf("decode poll %s: %w", pollID, err)
	}
	return &p, nil
}

// Create inserts a new poll with fresh counters.
func (r *Repository) Create(ctx context.Context, p *models.Poll) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = models.StatusOpen
	}
	p.TotalVotes = 0
	for i := range p.Options {
		p.Options[i].Votes = 0
	}
	p.CreatedAt = time.Now().UTC()
	value, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.store.Insert(ctx, models.PollKey(p.ID), value)
}

// Mutate applies fn to the stored poll under the store's write lock. Used for
// admin edits and status toggles; fn must not touch the vote counters unless
// it is the vote transaction itself.
func (r *Repository) Mutate(ctx context.Context, pollID string, fn func(p *models.Poll) error) (*models.Poll, error) {
	var updated models.Poll
	err := r.store.Update(ctx, models.PollKey(pollID), func(current []byte) ([]byte, error) {
		var p models.Poll
		if err := json.Unmarshal(current, &p); err != nil {
			return nil, fmt.Errorf("decode poll %s: %w", pollID, err)
		}
		if err := fn(&p); err != nil {
			return nil, err
		}
		updated = p
		return json.Marshal(&p)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetStatus toggles a poll open/closed without touching its tallies.
func (r *Repository) SetStatus(ctx context.Context, pollID, status string) (*models.Poll, error) {
	return r.Mutate(ctx, pollID, func(p *models.Poll) error {
		p.Status = status
		return nil
	})
}

// Delete removes a poll and cascades its vote ledger entries. Vote keys embed
// the poll id as a suffix, so the ledger sweep is a prefix scan plus filter.
func (r *Repository) Delete(ctx context.Context, pollID string) error {
	if err := r.store.Delete(ctx, models.PollKey(pollID)); err != nil {
		return err
	}
	docs, err := r.store.ScanByPrefix(ctx, models.PrefixVote)
	if err != nil {
		return err
	}
	suffix := ":" + pollID
	for _, d := range docs {
		if strings.HasSuffix(d.Key, suffix) {
			if err := r.store.Delete(ctx, d.Key); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
				return err
			}
		}
	}
	return nil
}

// CastVote records one vote for (userID, pollID) and bumps the tallies, all
// in a single atomic store operation: strict insert of the vote key plus a
// locked update of the poll document. A duplicate vote surfaces as
// ErrAlreadyVoted and leaves the tallies untouched.
func (r *Repository) CastVote(ctx context.Context, userID, pollID, optionID string) (*models.Poll, error) {
	vote := models.Vote{
		UserID:    userID,
		PollID:    pollID,
		OptionID:  optionID,
		Timestamp: time.Now().UTC(),
	}
	voteValue, err := json.Marshal(&vote)
	if err != nil {
		return nil, err
	}

	var updated models.Poll
	err = r.store.InsertAndUpdate(ctx,
		models.VoteKey(userID, pollID), voteValue,
		models.PollKey(pollID),
		func(current []byte) ([]byte, error) {
			var p models.Poll
			if err := json.Unmarshal(current, &p); err != nil {
				return nil, fmt.Errorf("decode poll %s: %w", pollID, err)
			}
			if p.Status != models.StatusOpen {
				return nil, ErrPollClosed
			}
			opt := p.Option(optionID)
			if opt == nil {
				return nil, ErrUnknownOption
			}
			opt.Votes++
			p.TotalVotes++
			updated = p
			return json.Marshal(&p)
		})
	if err != nil {
		if errors.Is(err, kvstore.ErrAlreadyExists) {
			return nil, ErrAlreadyVoted
		}
		return nil, err
	}
	return &updated, nil
}

// GetVote returns the user's vote for a poll. kvstore.ErrNotFound is a
// normal outcome here, not a failure.
func (r *Repository) GetVote(ctx context.Context, userID, pollID string) (*models.Vote, error) {
	value, err := r.store.Get(ctx, models.VoteKey(userID, pollID))
	if err != nil {
		return nil, err
	}
	var v models.Vote
	if err := json.Unmarshal(value, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Results computes the read-time tally view with percentages.
func (r *Repository) Results(ctx context.Context, pollID string) (*models.PollResults, error) {
	p, err := r.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	res := &models.PollResults{
		PollID:     p.ID,
		Title:      p.Title,
		Status:     p.Status,
		TotalVotes: p.TotalVotes,
		Options:    make([]models.PollOptionResult, 0, len(p.Options)),
	}
	for _, opt := range p.Options {
		res.Options = append(res.Options, models.PollOptionResult{
			ID:         opt.ID,
			Text:       opt.Text,
			Votes:      opt.Votes,
			Percentage: Percentage(opt.Votes, p.TotalVotes),
		})
	}
	return res, nil
}
