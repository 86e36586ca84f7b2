// Package graphstore implements C1, the graph database adapter. It
// generalizes the teacher repo's Neo4j backend (internal/graph/backend.go,
// neo4j_backend.go, cypher_builder.go) from a fixed File/Developer/Commit/PR
// schema into a typed store for the projection's two-layer graph: the
// schema layer (model.TmoNode/TmoEdge) and the instance layer
// (model.MoNode/MoEdge/model.PathEdge), plus the registry documents
// (model.MainRecord/model.ConfigDoc).
//
// One Neo4j database per projection backs one root TMO id (spec §6,
// config.DatabaseName); Store operates against whichever database name is
// passed to each method, mirroring the original's per-tmoId ArangoDB
// database layout.
package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/avataa-hq/avataa-graphs/internal/errors"
)

// Store wraps a Neo4j driver shared across every projection database.
type Store struct {
	driver neo4j.DriverWithContext
}

// Open dials Neo4j and verifies connectivity, mirroring
// graph.NewNeo4jBackend's constructor.
func Open(ctx context.Context, uri, username, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, errors.NewTransient(err, "creating neo4j driver")
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, errors.NewTransient(err, "connecting to neo4j")
	}
	return &Store{driver: driver}, nil
}

func (s *Store) Close(ctx context.Context) error { return s.driver.Close(ctx) }

// run executes a single parameterized write query against database and
// discards its result, used by the schema/DDL helpers where only success
// matters.
func (s *Store) run(ctx context.Context, database, query string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, s.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(database))
	if err != nil {
		return errors.NewTransient(err, fmt.Sprintf("executing query against %s", database))
	}
	return nil
}

// writeTx runs fn inside a single write transaction against database,
// matching Neo4jBackend.ExecuteBatchWithParams' session/transaction shape.
func (s *Store) writeTx(ctx context.Context, database string, fn func(tx neo4j.ManagedTransaction) error) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: database, AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(tx)
	})
	if err != nil {
		return errors.NewTransient(err, "write transaction failed")
	}
	return nil
}

// ReadRecords runs a read-only parameterized Cypher query against
// database and returns its raw records as maps, for callers (e.g. the
// builder's pass implementations) that need more than the typed
// Get*/List* helpers expose.
func (s *Store) ReadRecords(ctx context.Context, database, query string, params map[string]any) ([]map[string]any, error) {
	return s.readRecords(ctx, database, query, params)
}

// WriteQuery runs a single parameterized write query against database,
// discarding its result — the same primitive EnsureSchema and the
// Upsert*/Delete* helpers build on, exposed for builder passes that
// issue bespoke Cypher.
func (s *Store) WriteQuery(ctx context.Context, database, query string, params map[string]any) error {
	return s.run(ctx, database, query, params)
}

// readRecords runs a read-only parameterized query and returns its raw
// records as maps, matching Neo4jBackend.QueryWithParams.
func (s *Store) readRecords(ctx context.Context, database, query string, params map[string]any) ([]map[string]any, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, errors.NewTransient(err, fmt.Sprintf("reading from %s", database))
	}
	rows := make([]map[string]any, 0, len(result.Records))
	for _, rec := range result.Records {
		row := make(map[string]any, len(rec.Keys))
		for _, k := range rec.Keys {
			if v, ok := rec.Get(k); ok {
				row[k] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
