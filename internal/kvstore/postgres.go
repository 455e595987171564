package kvstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	maxRetries   = 3
	retryBackoff = 100 * time.Millisecond

	uniqueViolation = "23505"
)

// Postgres implements Store on a single kv_store table.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres creates a Postgres-backed document store.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: pool, logger: logger}
}

// Get returns the value at key, or ErrNotFound.
func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.withRetry(ctx, func() error {
		return s.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

// ScanByPrefix returns all documents under prefix, newest first.
func (s *Postgres) ScanByPrefix(ctx context.Context, prefix string) ([]Document, error) {
	var docs []Document
	err := s.withRetry(ctx, func() error {
		rows, err := s.pool.Query(ctx,
			`SELECT key, value, created_at, updated_at FROM kv_store
			WHERE key LIKE $1 ESCAPE '\' ORDER BY created_at DESC`,
			likePrefix(prefix))
		if err != nil {
			return err
		}
		defer rows.Close()
		docs = docs[:0]
		for rows.Next() {
			var d Document
			if err := rows.Scan(&d.Key, &d.Value, &d.CreatedAt, &d.UpdatedAt); err != nil {
				return err
			}
			docs = append(docs, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Insert stores value at key; ErrAlreadyExists on key conflict. The primary
// key constraint makes the check-and-insert atomic under concurrent callers.
func (s *Postgres) Insert(ctx context.Context, key string, value []byte) error {
	return s.withRetry(ctx, func() error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO kv_store (key, value) VALUES ($1, $2)`, key, value)
		return translateConflict(err)
	})
}

// Upsert stores value at key, replacing any existing document.
func (s *Postgres) Upsert(ctx context.Context, key string, value []byte) error {
	return s.withRetry(ctx, func() error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO kv_store (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			key, value)
		return err
	})
}

// Delete removes the document at key, or returns ErrNotFound.
func (s *Postgres) Delete(ctx context.Context, key string) error {
	return s.withRetry(ctx, func() error {
		tag, err := s.pool.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteByPrefix removes all documents under prefix.
func (s *Postgres) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	err := s.withRetry(ctx, func() error {
		tag, err := s.pool.Exec(ctx,
			`DELETE FROM kv_store WHERE key LIKE $1 ESCAPE '\'`, likePrefix(prefix))
		if err != nil {
			return err
		}
		n = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Update applies fn to the document at key inside a transaction holding a row
// lock, so concurrent tally increments serialize instead of losing updates.
func (s *Postgres) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return s.withRetry(ctx, func() error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			return updateLocked(ctx, tx, key, fn)
		})
	})
}

// InsertAndUpdate runs a strict insert and a locked update in one transaction.
func (s *Postgres) InsertAndUpdate(ctx context.Context, insertKey string, insertValue []byte, updateKey string, fn UpdateFunc) error {
	return s.withRetry(ctx, func() error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx,
				`INSERT INTO kv_store (key, value) VALUES ($1, $2)`, insertKey, insertValue)
			if err != nil {
				return translateConflict(err)
			}
			return updateLocked(ctx, tx, updateKey, fn)
		})
	})
}

func updateLocked(ctx context.Context, tx pgx.Tx, key string, fn UpdateFunc) error {
	var current []byte
	err := tx.QueryRow(ctx,
		`SELECT value FROM kv_store WHERE key = $1 FOR UPDATE`, key).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE kv_store SET value = $2, updated_at = NOW() WHERE key = $1`, key, next)
	return err
}

// withRetry retries fn a bounded number of times with doubling backoff on
// transient (connection-class) failures, then surfaces ErrUnavailable.
// Domain errors (ErrNotFound, ErrAlreadyExists, UpdateFunc errors) pass through.
func (s *Postgres) withRetry(ctx context.Context, fn func() error) error {
	backoff := retryBackoff
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}
		s.logger.Warn("kv store transient failure",
			zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func isTransient(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) {
		return false
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}
	return err
}

// likePrefix escapes LIKE metacharacters so prefixes such as quiz_progress:
// match literally.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
