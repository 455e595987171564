package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulse-engage/backend/internal/activity"
	"github.com/pulse-engage/backend/internal/kvstore"
	"github.com/pulse-engage/backend/internal/models"
	"github.com/pulse-engage/backend/pkg/queue"
)

type fakeNotifier struct {
	events []string
	keys   []string
}

func (f *fakeNotifier) DocumentChanged(event, key string) {
	f.events = append(f.events, event)
	f.keys = append(f.keys, key)
}

func activityJob(t *testing.T, payload queue.ActivityPayload) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{
		ID:        "job-1",
		Type:      queue.JobTypeActivity,
		Payload:   raw,
		CreatedAt: time.Now(),
	}
}

func TestProcessRecordsActivityAndNotifies(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	repo := activity.NewRepository(store)
	notifier := &fakeNotifier{}
	proc := NewActivityProcessor(repo, nil, notifier, nil)

	job := activityJob(t, queue.ActivityPayload{
		Kind:         "vote_cast",
		ActorID:      "user-1",
		ActorName:    "alex@example.com",
		SubjectID:    "poll-1",
		SubjectTitle: "Favourite language?",
		At:           time.Now().UTC(),
	})
	require.NoError(t, proc.Process(ctx, job))

	items, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "job-1", items[0].ID)
	assert.Equal(t, "vote_cast", items[0].Kind)
	assert.Equal(t, "poll-1", items[0].SubjectID)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "activity_recorded", notifier.events[0])
	assert.Equal(t, models.ActivityKey("job-1"), notifier.keys[0])
}

func TestProcessRejectsUnknownJobType(t *testing.T) {
	proc := NewActivityProcessor(activity.NewRepository(kvstore.NewMemory()), nil, nil, nil)
	err := proc.Process(context.Background(), &queue.Job{ID: "job-1", Type: "email"})
	assert.Error(t, err)
}

func TestProcessRejectsMalformedPayload(t *testing.T) {
	proc := NewActivityProcessor(activity.NewRepository(kvstore.NewMemory()), nil, nil, nil)
	err := proc.Process(context.Background(), &queue.Job{
		ID:      "job-1",
		Type:    queue.JobTypeActivity,
		Payload: json.RawMessage(`{broken`),
	})
	assert.Error(t, err)
}

func TestActivityListHonorsLimit(t *testing.T) {
	ctx := context.Background()
	repo := activity.NewRepository(kvstore.NewMemory())
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Record(ctx, models.Activity{Kind: "poll_created"}))
	}

	items, err := repo.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}
