package graphstore

import "context"

// EnsureSchema creates the per-database constraints, indexes, and the
// full-text search view/analyzer a freshly created projection database
// needs before the builder (C6) can write to it (spec §4.1, §4.4).
// Idempotent: every statement uses IF NOT EXISTS.
func (s *Store) EnsureSchema(ctx context.Context, database string) error {
	statements := []string{
		// Schema-layer uniqueness: one TmoNode per tmo_id.
		"CREATE CONSTRAINT tmo_id_unique IF NOT EXISTS FOR (t:Tmo) REQUIRE t.tmo_id IS UNIQUE",
		// Instance-layer uniqueness: one MoNode per surrogate key.
		"CREATE CONSTRAINT mo_key_unique IF NOT EXISTS FOR (m:Mo) REQUIRE m.key IS UNIQUE",
		// Registry singletons.
		"CREATE CONSTRAINT main_record_key_unique IF NOT EXISTS FOR (r:MainRecord) REQUIRE r.key IS UNIQUE",
		"CREATE CONSTRAINT config_doc_key_unique IF NOT EXISTS FOR (c:ConfigDoc) REQUIRE c.key IS UNIQUE",

		// Hash-equivalent lookup indexes (spec §4.1 "hash index +
		// inverted index"): range indexes are Neo4j's hash-index
		// analogue for equality lookups.
		"CREATE INDEX mo_tmo_range IF NOT EXISTS FOR (m:Mo) ON (m.tmo)",
		"CREATE INDEX mo_group_pid_range IF NOT EXISTS FOR (m:Mo) ON (m.group_p_id)",
		"CREATE INDEX mo_breadcrumbs_range IF NOT EXISTS FOR (m:Mo) ON (m.breadcrumbs)",

		// Inverted full-text index over MoNode.Indexed, the analyzer
		// search view the original's ArangoSearch view provided for
		// free-text param search (spec §4.5 step 2, §4.6 name search).
		`CREATE FULLTEXT INDEX mo_indexed_search IF NOT EXISTS FOR (m:Mo) ON EACH [m.name, m.indexed]`,
	}
	for _, stmt := range statements {
		if err := s.run(ctx, database, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}
