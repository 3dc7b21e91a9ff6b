package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/vanshika/tunetraits/internal/domain"
)

// Each section path is kept in its own node property holding the JSON encoded
// section, so "SET u += $props" touches exactly one path.
const sectionPropertyPrefix = "section:"

const (
	ensureRecordConstraintCypher = `
CREATE CONSTRAINT user_record_id IF NOT EXISTS
FOR (u:UserRecord) REQUIRE u.id IS UNIQUE`

	upsertSectionCypher = `
MERGE (u:UserRecord {id: $id})
ON CREATE SET u.created_at = $createdAt
SET u += $props`

	findRecordCypher = `
MATCH (u:UserRecord {id: $id})
RETURN properties(u) AS props
LIMIT 1`
)

// cypherRunner is the slice of the driver the graph store uses.
type cypherRunner interface {
	Run(ctx context.Context, write bool, cypher string, params map[string]any) ([]map[string]any, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Neo4jStore keeps records as UserRecord nodes in Neo4j or any Bolt
// compatible graph database.
type Neo4jStore struct {
	runner cypherRunner
}

// NewNeo4jClient establishes a Bolt connection using the official Neo4j driver
// and makes sure the id uniqueness constraint exists, which is what keeps
// concurrent MERGEs on one identity from creating two nodes.
func NewNeo4jClient(ctx context.Context, opts Options) (*Neo4jStore, error) {
	if opts.URI == "" {
		return nil, ErrMissingURI
	}

	auth := neo4j.NoAuth()
	if opts.Username != "" {
		auth = neo4j.BasicAuth(opts.Username, opts.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(opts.URI, auth, func(c *neo4j.Config) {
		if opts.MaxConnections > 0 {
			c.MaxConnectionPoolSize = opts.MaxConnections
		}
		if opts.ServerSelectionTimeout > 0 {
			c.SocketConnectTimeout = opts.ServerSelectionTimeout
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	verifyCtx := ctx
	if opts.ServerSelectionTimeout > 0 {
		var cancel context.CancelFunc
		verifyCtx, cancel = context.WithTimeout(ctx, opts.ServerSelectionTimeout)
		defer cancel()
	}
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify graph connectivity: %w", err)
	}

	s := newNeo4jStore(&driverRunner{driver: driver, database: opts.Database})
	if _, err := s.runner.Run(ctx, true, ensureRecordConstraintCypher, nil); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("ensure record constraint: %w", err)
	}
	return s, nil
}

func newNeo4jStore(runner cypherRunner) *Neo4jStore {
	return &Neo4jStore{runner: runner}
}

func (s *Neo4jStore) UpsertSection(ctx context.Context, id domain.Identity, path domain.SectionPath, payload any, now time.Time) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode section %s: %w", path, err)
	}

	params := map[string]any{
		"id":        string(id),
		"createdAt": now.UTC(),
		"props": map[string]any{
			sectionPropertyPrefix + path.String(): string(encoded),
		},
	}
	if _, err := s.runner.Run(ctx, true, upsertSectionCypher, params); err != nil {
		return classifyNeo4jError(fmt.Errorf("upsert %s for %s: %w", path, id, err))
	}
	return nil
}

func (s *Neo4jStore) FindRecord(ctx context.Context, id domain.Identity) (domain.UnifiedUserRecord, error) {
	records, err := s.runner.Run(ctx, false, findRecordCypher, map[string]any{"id": string(id)})
	if err != nil {
		return domain.UnifiedUserRecord{}, classifyNeo4jError(fmt.Errorf("find record %s: %w", id, err))
	}
	if len(records) == 0 {
		return domain.UnifiedUserRecord{}, ErrNotFound
	}

	props, ok := records[0]["props"].(map[string]any)
	if !ok {
		return domain.UnifiedUserRecord{}, fmt.Errorf("find record %s: unexpected props type %T", id, records[0]["props"])
	}

	doc := newDocument(id, toTime(props["created_at"]))
	for key, value := range props {
		if !strings.HasPrefix(key, sectionPropertyPrefix) {
			continue
		}
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var section any
		if err := json.Unmarshal([]byte(raw), &section); err != nil {
			return domain.UnifiedUserRecord{}, fmt.Errorf("decode section %s: %w", key, err)
		}
		doc.set(domain.SectionPath(strings.TrimPrefix(key, sectionPropertyPrefix)), section)
	}
	return doc.record(), nil
}

func (s *Neo4jStore) VerifyConnectivity(ctx context.Context) error {
	return s.runner.VerifyConnectivity(ctx)
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.runner.Close(ctx)
}

func classifyNeo4jError(err error) error {
	if neo4j.IsRetryable(err) {
		return Unavailable(err)
	}
	return err
}

func toTime(value any) time.Time {
	switch v := value.(type) {
	case time.Time:
		return v.UTC()
	case neo4j.Time:
		return time.Time(v).UTC()
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (r *driverRunner) Run(ctx context.Context, write bool, cypher string, params map[string]any) ([]map[string]any, error) {
	mode := neo4j.AccessModeRead
	if write {
		mode = neo4j.AccessModeWrite
	}
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: r.database,
		AccessMode:   mode,
	})
	defer session.Close(ctx)

	res, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	for res.Next(ctx) {
		rec := res.Record()
		record := make(map[string]any, len(rec.Keys))
		for _, key := range rec.Keys {
			value, _ := rec.Get(key)
			record[key] = value
		}
		records = append(records, record)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *driverRunner) VerifyConnectivity(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

func (r *driverRunner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}
