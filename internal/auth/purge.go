package auth

import (
	"context"

	"github.com/pulse-engage/backend/internal/kvstore"
	"github.com/pulse-engage/backend/internal/models"
)

// PurgeUserDocuments removes every document owned by a user: the vote ledger,
// in-flight quiz progress and graded submissions. Poll and quiz tallies are
// left as counted; a deleted account's past votes stay in the totals.
func PurgeUserDocuments(ctx context.Context, store kvstore.Store, userID string) (int, error) {
	prefixes := []string{
		models.PrefixVote + userID + ":",
		models.PrefixQuizProgress + userID + ":",
		models.PrefixQuizSubmission + userID + ":",
	}
	total := 0
	for _, prefix := range prefixes {
		n, err := store.DeleteByPrefix(ctx, prefix)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
