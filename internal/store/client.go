// Package store persists unified user records. Every backend implements the
// same atomic per-section upsert: one call sets exactly one section path and
// stamps id/created_at only when the record is first created.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vanshika/tunetraits/internal/domain"
)

// Client is the contract the repository needs from a document store.
type Client interface {
	// UpsertSection atomically sets path to payload on the record for id,
	// creating the record with created_at = now when absent.
	UpsertSection(ctx context.Context, id domain.Identity, path domain.SectionPath, payload any, now time.Time) error
	// FindRecord returns the full record or ErrNotFound.
	FindRecord(ctx context.Context, id domain.Identity) (domain.UnifiedUserRecord, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendNeo4j  = "neo4j"
	BackendBadger = "badger"
)

// Options configures a store backend.
type Options struct {
	Backend                string
	URI                    string
	Database               string
	Collection             string
	Username               string
	Password               string
	MaxConnections         int
	ServerSelectionTimeout time.Duration
	DataDir                string
	InMemory               bool
}

var (
	// ErrNotFound indicates no record exists for the identity.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable marks transient connectivity failures that are safe to retry.
	ErrUnavailable = errors.New("store unavailable")
	// ErrMissingURI indicates the store URI is not provided.
	ErrMissingURI = errors.New("store URI is required")
	// ErrUnknownBackend indicates an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// Unavailable wraps err so that IsTransient reports true for it.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Open builds the backend named in opts.
func Open(ctx context.Context, opts Options) (Client, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendMongo:
		return NewMongoClient(ctx, opts)
	case BackendNeo4j:
		return NewNeo4jClient(ctx, opts)
	case BackendBadger:
		return NewBadgerClient(opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
