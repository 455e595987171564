package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store used in tests. It provides the same atomicity
// guarantees as the Postgres implementation: strict inserts are
// check-and-insert under one lock, and Update/InsertAndUpdate run their
// whole read-modify-write under that lock.
type Memory struct {
	mu   sync.Mutex
	docs map[string]memoryDoc
	seq  int64
}

type memoryDoc struct {
	value     []byte
	seq       int64
	createdAt time.Time
	updatedAt time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]memoryDoc)}
}

// Get returns the value at key, or ErrNotFound.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(doc.value), nil
}

// ScanByPrefix returns all documents under prefix, newest first.
func (m *Memory) ScanByPrefix(_ context.Context, prefix string) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Document
	type withSeq struct {
		doc Document
		seq int64
	}
	var matched []withSeq
	for key, doc := range m.docs {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, withSeq{
				doc: Document{Key: key, Value: cloneBytes(doc.value), CreatedAt: doc.createdAt, UpdatedAt: doc.updatedAt},
				seq: doc.seq,
			})
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })
	for _, ws := range matched {
		out = append(out, ws.doc)
	}
	return out, nil
}

// Insert stores value at key; ErrAlreadyExists on conflict.
func (m *Memory) Insert(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(key, value)
}

// Upsert stores value at key, replacing any existing document.
func (m *Memory) Upsert(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if doc, ok := m.docs[key]; ok {
		doc.value = cloneBytes(value)
		doc.updatedAt = now
		m.docs[key] = doc
		return nil
	}
	m.seq++
	m.docs[key] = memoryDoc{value: cloneBytes(value), seq: m.seq, createdAt: now, updatedAt: now}
	return nil
}

// Delete removes the document at key, or returns ErrNotFound.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[key]; !ok {
		return ErrNotFound
	}
	delete(m.docs, key)
	return nil
}

// DeleteByPrefix removes all documents under prefix.
func (m *Memory) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.docs {
		if strings.HasPrefix(key, prefix) {
			delete(m.docs, key)
			n++
		}
	}
	return n, nil
}

// Update applies fn to the document at key atomically.
func (m *Memory) Update(_ context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(key, fn)
}

// InsertAndUpdate performs the strict insert and the update under one lock;
// if the update fails the insert is rolled back.
func (m *Memory) InsertAndUpdate(_ context.Context, insertKey string, insertValue []byte, updateKey string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertLocked(insertKey, insertValue); err != nil {
		return err
	}
	if err := m.updateLocked(updateKey, fn); err != nil {
		delete(m.docs, insertKey)
		return err
	}
	return nil
}

func (m *Memory) insertLocked(key string, value []byte) error {
	if _, ok := m.docs[key]; ok {
		return ErrAlreadyExists
	}
	now := time.Now()
	m.seq++
	m.docs[key] = memoryDoc{value: cloneBytes(value), seq: m.seq, createdAt: now, updatedAt: now}
	return nil
}

func (m *Memory) updateLocked(key string, fn UpdateFunc) error {
	doc, ok := m.docs[key]
	if !ok {
		return ErrNotFound
	}
	next, err := fn(cloneBytes(doc.value))
	if err != nil {
		return err
	}
	doc.value = cloneBytes(next)
	doc.updatedAt = time.Now()
	m.docs[key] = doc
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
