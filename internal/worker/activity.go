// Package worker runs the background loops: the activity feed consumer and
// the abandoned quiz-progress reaper.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulse-engage/backend/internal/activity"
	"github.com/pulse-engage/backend/internal/models"
	"github.com/pulse-engage/backend/internal/realtime"
	"github.com/pulse-engage/backend/pkg/queue"
)

// ActivityProcessor consumes engagement events off the queue and persists
// them as activity feed documents.
type ActivityProcessor struct {
	repo     *activity.Repository
	queue    *queue.Queue
	notifier realtime.Notifier
	logger   *zap.Logger
}

// NewActivityProcessor creates an activity feed processor. notifier may be nil.
func NewActivityProcessor(repo *activity.Repository, q *queue.Queue, notifier realtime.Notifier, logger *zap.Logger) *ActivityProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityProcessor{repo: repo, queue: q, notifier: notifier, logger: logger}
}

// Process executes one activity job.
func (p *ActivityProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeActivity {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ActivityPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	entry := models.Activity{
		ID:           job.ID,
		Kind:         payload.Kind,
		ActorID:      payload.ActorID,
		ActorName:    payload.ActorName,
		SubjectID:    payload.SubjectID,
		SubjectTitle: payload.SubjectTitle,
		Detail:       payload.Detail,
		CreatedAt:    payload.At,
	}
	if err := p.repo.Record(ctx, entry); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	if p.notifier != nil {
		p.notifier.DocumentChanged("activity_recorded", models.ActivityKey(entry.ID))
	}
	p.logger.Debug("activity recorded", zap.String("job_id", job.ID), zap.String("kind", payload.Kind))
	return nil
}

// Run starts the consumer loop: dequeue, process, retry on error.
func (p *ActivityProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("activity job failed", zap.Error(err), zap.String("job_id", job.ID))
			_ = p.queue.Retry(ctx, job)
		}
	}
}
