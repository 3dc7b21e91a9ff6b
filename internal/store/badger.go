package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/vanshika/tunetraits/internal/domain"
)

const (
	recordKeyPrefix = "record:"
	recordLockCount = 64
)

// BadgerStore is an embedded single-node backend. Each upsert is one
// serializable transaction. Upserts for the same identity are serialized by a
// striped lock, so their read-modify-write transactions never overlap; an
// ErrConflict can then only come from another process sharing the directory
// and is reported as transient.
type BadgerStore struct {
	db    *badger.DB
	locks [recordLockCount]sync.Mutex
}

// NewBadgerClient opens (or creates) the database at opts.DataDir, or an
// in-memory database when opts.InMemory is set.
func NewBadgerClient(opts Options) (*BadgerStore, error) {
	var bopts badger.Options
	switch {
	case opts.InMemory:
		bopts = badger.DefaultOptions("").WithInMemory(true)
	case opts.DataDir != "":
		bopts = badger.DefaultOptions(opts.DataDir)
	default:
		return nil, errors.New("badger data dir is required")
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func recordKey(id domain.Identity) []byte {
	return []byte(recordKeyPrefix + string(id))
}

func (s *BadgerStore) lockFor(id domain.Identity) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.locks[h.Sum32()%recordLockCount]
}

func (s *BadgerStore) UpsertSection(_ context.Context, id domain.Identity, path domain.SectionPath, payload any, now time.Time) error {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		doc, err := loadDocument(txn, id)
		if errors.Is(err, ErrNotFound) {
			doc = newDocument(id, now)
		} else if err != nil {
			return err
		}

		doc.set(path, payload)
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		return txn.Set(recordKey(id), data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return Unavailable(err)
	}
	if err != nil {
		return fmt.Errorf("upsert %s for %s: %w", path, id, err)
	}
	return nil
}

func (s *BadgerStore) FindRecord(_ context.Context, id domain.Identity) (domain.UnifiedUserRecord, error) {
	var rec domain.UnifiedUserRecord
	err := s.db.View(func(txn *badger.Txn) error {
		doc, err := loadDocument(txn, id)
		if err != nil {
			return err
		}
		rec = doc.record()
		return nil
	})
	if err != nil {
		return domain.UnifiedUserRecord{}, err
	}
	return rec, nil
}

func (s *BadgerStore) VerifyConnectivity(context.Context) error {
	if s.db.IsClosed() {
		return Unavailable(errors.New("badger database is closed"))
	}
	return nil
}

func (s *BadgerStore) Close(context.Context) error {
	return s.db.Close()
}

func loadDocument(txn *badger.Txn, id domain.Identity) (*document, error) {
	item, err := txn.Get(recordKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var doc document
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	}); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &doc, nil
}
