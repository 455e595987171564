// Package activity persists and serves the engagement activity feed.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulse-engage/backend/internal/kvstore"
	"github.com/pulse-engage/backend/internal/models"
)

// Repository stores activity feed entries as activity:<id> documents.
type Repository struct {
	store kvstore.Store
}

// NewRepository creates an activity repository.
func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

// Record inserts one feed entry.
func (r *Repository) Record(ctx context.Context, a models.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	value, err := json.Marshal(&a)
	if err != nil {
		return err
	}
	return r.store.Insert(ctx, models.ActivityKey(a.ID), value)
}

// List returns the newest feed entries, at most limit.
func (r *Repository) List(ctx context.Context, limit int) ([]models.Activity, error) {
	docs, err := r.store.ScanByPrefix(ctx, models.PrefixActivity)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	items := make([]models.Activity, 0, len(docs))
	for _, d := range docs {
		var a models.Activity
		if err := json.Unmarshal(d.Value, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", d.Key, err)
		}
		items = append(items, a)
	}
	return items, nil
}
