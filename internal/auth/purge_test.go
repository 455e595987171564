package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulse-engage/backend/internal/kvstore"
	"github.com/pulse-engage/backend/internal/models"
)

func TestPurgeUserDocuments(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()

	require.NoError(t, store.Insert(ctx, models.VoteKey("u1", "p1"), []byte(`{}`)))
	require.NoError(t, store.Insert(ctx, models.VoteKey("u1", "p2"), []byte(`{}`)))
	require.NoError(t, store.Insert(ctx, models.QuizProgressKey("u1", "q1"), []byte(`{}`)))
	require.NoError(t, store.Insert(ctx, models.QuizSubmissionKey("u1", "q1"), []byte(`{}`)))

	// Another user's documents and the entities themselves must survive.
	require.NoError(t, store.Insert(ctx, models.VoteKey("u2", "p1"), []byte(`{}`)))
	require.NoError(t, store.Insert(ctx, models.PollKey("p1"), []byte(`{}`)))

	n, err := PurgeUserDocuments(ctx, store, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = store.Get(ctx, models.VoteKey("u1", "p1"))
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
	_, err = store.Get(ctx, models.QuizSubmissionKey("u1", "q1"))
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	_, err = store.Get(ctx, models.VoteKey("u2", "p1"))
	assert.NoError(t, err)
	_, err = store.Get(ctx, models.PollKey("p1"))
	assert.NoError(t, err)
}

func TestPurgeUserDocumentsPrefixIsUserScoped(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()

	// "u1" must not match "u10": the trailing colon scopes the prefix.
	require.NoError(t, store.Insert(ctx, models.VoteKey("u10", "p1"), []byte(`{}`)))

	n, err := PurgeUserDocuments(ctx, store, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = store.Get(ctx, models.VoteKey("u10", "p1"))
	assert.NoError(t, err)
}
