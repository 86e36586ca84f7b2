package graphstore

import (
	"context"
	"fmt"

	"github.com/avataa-hq/avataa-graphs/internal/errors"
	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// systemDatabase is Neo4j's always-present administrative database, used
// to create/drop the per-projection databases.
const systemDatabase = "system"

// EnsureDatabase implements the getOrCreateDatabase behavior from spec
// §4.1, generalized across model.IfNotExistPolicy: a Neo4j multi-database
// analogue of the original's per-root-tmo ArangoDB database.
func (s *Store) EnsureDatabase(ctx context.Context, name string, policy model.IfNotExistPolicy) error {
	exists, err := s.databaseExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	switch policy {
	case model.IfNotExistRaiseError:
		return errors.NewDocumentNotFound(fmt.Sprintf("database %s does not exist", name))
	case model.IfNotExistReturnNone:
		return nil
	default: // IfNotExistCreate
		return s.run(ctx, systemDatabase, "CREATE DATABASE $name IF NOT EXISTS WAIT", map[string]any{"name": name})
	}
}

func (s *Store) databaseExists(ctx context.Context, name string) (bool, error) {
	rows, err := s.readRecords(ctx, systemDatabase, "SHOW DATABASES WHERE name = $name", map[string]any{"name": name})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// DropDatabase removes a projection's database entirely, used by the
// change-stream worker when the projection's root TMO is deleted.
func (s *Store) DropDatabase(ctx context.Context, name string) error {
	return s.run(ctx, systemDatabase, "DROP DATABASE $name IF EXISTS", map[string]any{"name": name})
}
