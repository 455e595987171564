package polls

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulse-engage/backend/internal/kvstore"
	"github.com/pulse-engage/backend/internal/models"
)

func newTestPoll(t *testing.T, repo *Repository) *models.Poll {
	t.Helper()
	p := &models.Poll{
		Title: "Favourite language?",
		Options: []models.PollOption{
			{ID: "option_0", Text: "Go"},
			{ID: "option_1", Text: "Rust"},
		},
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestCastVoteTalliesAndDedupe(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(kvstore.NewMemory())
	p := newTestPoll(t, repo)

	_, err := repo.CastVote(ctx, "user-1", p.ID, "option_0")
	require.NoError(t, err)
	_, err = repo.CastVote(ctx, "user-2", p.ID, "option_0")
	require.NoError(t, err)

	// user-1 switching options is still a duplicate.
	_, err = repo.CastVote(ctx, "user-1", p.ID, "option_1")
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalVotes)
	assert.Equal(t, 2, got.Option("option_0").Votes)
	assert.Equal(t, 0, got.Option("option_1").Votes)
}

func TestCastVoteTotalMatchesOptionSum(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(kvstore.NewMemory())
	p := newTestPoll(t, repo)

	users := []struct{ user, option string }{
		{"u1", "option_0"},
		{"u2", "option_1"},
		{"u3", "option_0"},
		{"u4", "option_1"},
		{"u5", "option_0"},
	}
	for _, v := range users {
		_, err := repo.CastVote(ctx, v.user, p.ID, v.option)
		require.NoError(t, err)
	}

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	sum := 0
	for _, opt := range got.Options {
		sum += opt.Votes
	}
	assert.Equal(t, got.TotalVotes, sum)
	assert.Equal(t, len(users), got.TotalVotes)
}

func TestCastVoteClosedPoll(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(kvstore.NewMemory())
	p := newTestPoll(t, repo)

	_, err := repo.SetStatus(ctx, p.ID, models.StatusClosed)
	require.NoError(t, err)

	_, err = repo.CastVote(ctx, "user-1", p.ID, "option_0")
	assert.ErrorIs(t, err, ErrPollClosed)

	// A rejected vote must not leave a ledger entry behind; reopening the
	// poll lets the same user vote.
	_, err = repo.SetStatus(ctx, p.ID, models.StatusOpen)
	require.NoError(t, err)
	_, err = repo.CastVote(ctx, "user-1", p.ID, "option_0")
	assert.NoError(t, err)
}

func TestCastVoteUnknownOption(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(kvstore.NewMemory())
	p := newTestPoll(t, repo)

	_, err := repo.CastVote(ctx, "user-1", p.ID, "option_9")
	assert.ErrorIs(t, err, ErrUnknownOption)

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalVotes)
}

func TestCastVoteMissingPoll(t *testing.T) {
	repo := NewRepository(kvstore.NewMemory())
	_, err := repo.CastVote(context.Background(), "user-1", "nope", "option_0")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestCastVoteConcurrentUsers(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(kvstore.NewMemory())
	p := newTestPoll(t, repo)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := "user-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
			option := "option_0"
			if i%2 == 1 {
				option = "option_1"
			}
			_, err := repo.CastVote(ctx, user, p.ID, option)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.TotalVotes)
	assert.Equal(t, n/2, got.Option("option_0").Votes)
	assert.Equal(t, n/2, got.Option("option_1").Votes)
}

func TestCastVoteConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(kvstore.NewMemory())
	p := newTestPoll(t, repo)

	const n = 64
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			option := "option_0"
			if i%2 == 1 {
				option = "option_1"
			}
			_, err := repo.CastVote(ctx, "user-1", p.ID, option)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyVoted)
		}
	}
	assert.Equal(t, 1, wins)

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalVotes)
	sum := 0
	for _, opt := range got.Options {
		sum += opt.Votes
	}
	assert.Equal(t, got.TotalVotes, sum)
}

func TestSetStatusPreservesTallies(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(kvstore.NewMemory())
	p := newTestPoll(t, repo)

	_, err := repo.CastVote(ctx, "user-1", p.ID, "option_0")
	require.NoError(t, err)

	closed, err := repo.SetStatus(ctx, p.ID, models.StatusClosed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)
	assert.Equal(t, 1, closed.TotalVotes)
	assert.Equal(t, 1, closed.Option("option_0").Votes)
}

func TestGetVote(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(kvstore.NewMemory())
	p := newTestPoll(t, repo)

	_, err := repo.GetVote(ctx, "user-1", p.ID)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	_, err = repo.CastVote(ctx, "user-1", p.ID, "option_1")
	require.NoError(t, err)

	v, err := repo.GetVote(ctx, "user-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", v.UserID)
	assert.Equal(t, p.ID, v.PollID)
	assert.Equal(t, "option_1", v.OptionID)
}

func TestDeleteCascadesVotes(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	repo := NewRepository(store)
	p := newTestPoll(t, repo)
	other := newTestPoll(t, repo)

	_, err := repo.CastVote(ctx, "user-1", p.ID, "option_0")
	require.NoError(t, err)
	_, err = repo.CastVote(ctx, "user-1", other.ID, "option_0")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, p.ID))

	_, err = repo.Get(ctx, p.ID)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
	_, err = repo.GetVote(ctx, "user-1", p.ID)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	// Votes on other polls survive the cascade.
	_, err = repo.GetVote(ctx, "user-1", other.ID)
	assert.NoError(t, err)
}

func TestResultsPercentages(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(kvstore.NewMemory())
	p := newTestPoll(t, repo)

	// No votes yet: every percentage is zero, not a division by zero.
	res, err := repo.Results(ctx, p.ID)
	require.NoError(t, err)
	for _, opt := range res.Options {
		assert.Equal(t, 0, opt.Percentage)
	}

	for i, user := range []string{"u1", "u2", "u3", "u4"} {
		option := "option_0"
		if i == 3 {
			option = "option_1"
		}
		_, err := repo.CastVote(ctx, user, p.ID, option)
		require.NoError(t, err)
	}

	res, err = repo.Results(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalVotes)
	assert.Equal(t, 75, res.Options[0].Percentage)
	assert.Equal(t, 25, res.Options[1].Percentage)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(kvstore.NewMemory())
	first := newTestPoll(t, repo)
	second := newTestPoll(t, repo)

	polls, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, polls, 2)
	assert.Equal(t, second.ID, polls[0].ID)
	assert.Equal(t, first.ID, polls[1].ID)
}
