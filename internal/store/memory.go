package store

import (
	"context"
	"sync"
	"time"

	"github.com/vanshika/tunetraits/internal/domain"
)

// MemoryStore is an in-process Client. Each upsert runs under one lock, which
// gives it the same atomicity as the real backends. It also supports injected
// failures for exercising retry behaviour.
type MemoryStore struct {
	mu           sync.Mutex
	docs         map[domain.Identity]*document
	failures     []error
	connectivity error
	upserts      []UpsertCall
}

// UpsertCall records one successful UpsertSection.
type UpsertCall struct {
	ID   domain.Identity
	Path domain.SectionPath
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[domain.Identity]*document{}}
}

// FailNext makes the next len(errs) calls fail with the given errors, in order.
func (m *MemoryStore) FailNext(errs ...error) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
	return m
}

// WithConnectivityError forces VerifyConnectivity to return the supplied error.
func (m *MemoryStore) WithConnectivityError(err error) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivity = err
	return m
}

func (m *MemoryStore) UpsertSection(_ context.Context, id domain.Identity, path domain.SectionPath, payload any, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.popFailure(); err != nil {
		return err
	}

	doc, ok := m.docs[id]
	if !ok {
		doc = newDocument(id, now)
		m.docs[id] = doc
	}
	doc.set(path, payload)
	m.upserts = append(m.upserts, UpsertCall{ID: id, Path: path})
	return nil
}

func (m *MemoryStore) FindRecord(_ context.Context, id domain.Identity) (domain.UnifiedUserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.popFailure(); err != nil {
		return domain.UnifiedUserRecord{}, err
	}

	doc, ok := m.docs[id]
	if !ok {
		return domain.UnifiedUserRecord{}, ErrNotFound
	}
	return doc.record(), nil
}

func (m *MemoryStore) VerifyConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectivity
}

func (m *MemoryStore) Close(context.Context) error {
	return nil
}

// Upserts returns a snapshot of the successful upserts.
func (m *MemoryStore) Upserts() []UpsertCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]UpsertCall(nil), m.upserts...)
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *MemoryStore) popFailure() error {
	if len(m.failures) == 0 {
		return nil
	}
	err := m.failures[0]
	m.failures = m.failures[1:]
	return err
}
