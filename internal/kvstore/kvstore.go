// Package kvstore provides the key-addressed JSON document store backing the
// engagement portal. Keys are colon-delimited strings; the only query
// capabilities are exact-key lookup and prefix scan, so key design is the
// access-pattern design.
package kvstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get, Delete and Update on a missing key.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by strict Insert when the key is taken.
	// Dedupe ledgers rely on this being raced-insert safe.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrUnavailable wraps transient backend failures that survived retries.
	ErrUnavailable = errors.New("store unavailable")
)

// Document is one stored key/value pair.
type Document struct {
	Key       string
	Value     []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpdateFunc transforms the current value of a document into its next value.
// It runs while the document is locked against concurrent writers.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is the document store contract. All operations are safe for
// concurrent use; Insert is an atomic check-and-insert.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// ScanByPrefix returns all documents whose key starts with prefix,
	// newest first by creation time.
	ScanByPrefix(ctx context.Context, prefix string) ([]Document, error)
	// Insert stores value at key, failing with ErrAlreadyExists if the key is taken.
	Insert(ctx context.Context, key string, value []byte) error
	// Upsert stores value at key, replacing any existing document.
	Upsert(ctx context.Context, key string, value []byte) error
	// Delete removes the document at key, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error
	// DeleteByPrefix removes all documents under prefix and reports how many.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	// Update applies fn to the document at key under a write lock, so
	// read-modify-write sequences cannot lose updates.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	// InsertAndUpdate performs a strict insert of insertValue at insertKey and
	// an Update of updateKey as one atomic operation. Either both take effect
	// or neither does. This is the vote path: ledger insert plus tally bump.
	InsertAndUpdate(ctx context.Context, insertKey string, insertValue []byte, updateKey string, fn UpdateFunc) error
}
