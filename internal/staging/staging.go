// Package staging implements the change-stream consumer's (C8) landing
// zone: every Kafka message is recorded here before the per-entity-class
// orchestrator processes it, so a crash mid-cascade can be replayed
// idempotently by offset rather than reprocessing the whole topic from
// the group's last committed offset (spec §4.7 "at-least-once, dedup by
// message key"). Generalized from internal/incidents/database.go's sqlx
// usage and internal/database/staging.go's table-per-concern shape.
package staging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/avataa-hq/avataa-graphs/internal/config"
)

// Message is one staged change-stream event.
type Message struct {
	ID          int64     `db:"id"`
	Topic       string    `db:"topic"`
	Partition   int32     `db:"partition"`
	Offset      int64     `db:"offset"`
	Database    string    `db:"database"`
	EntityClass string    `db:"entity_class"`
	EntityID    int64     `db:"entity_id"`
	Payload     []byte    `db:"payload"`
	ProcessedAt *time.Time `db:"processed_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

// Store wraps a sqlx connection to the staging database.
type Store struct {
	db *sqlx.DB
}

// Open connects to Postgres per cfg.Staging.DSN.
func Open(ctx context.Context, cfg config.StagingConfig) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to staging database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Stage records a consumed message before processing. A duplicate
// (topic, partition, offset) is a no-op, making replay-from-offset safe.
func (s *Store) Stage(ctx context.Context, m Message, payload interface{}) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshaling staged payload: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO staged_messages (topic, "partition", "offset", database, entity_class, entity_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (topic, "partition", "offset") DO UPDATE SET topic = EXCLUDED.topic
		RETURNING id
	`, m.Topic, m.Partition, m.Offset, m.Database, m.EntityClass, m.EntityID, body).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("staging message: %w", err)
	}
	return id, nil
}

// MarkProcessed records that a staged message completed successfully,
// so a restart's recovery pass (spec §4.8 "mark In Process -> Error")
// knows not to replay it.
func (s *Store) MarkProcessed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE staged_messages SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("marking message %d processed: %w", id, err)
	}
	return nil
}

// PendingSince returns every unprocessed message staged before cutoff.
// No worker in this module calls it or replays the returned messages.
func (s *Store) PendingSince(ctx context.Context, database string, cutoff time.Time) ([]Message, error) {
	var out []Message
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, topic, "partition", "offset", database, entity_class, entity_id, payload, processed_at, created_at
		FROM staged_messages
		WHERE database = $1 AND processed_at IS NULL AND created_at < $2
		ORDER BY id ASC
	`, database, cutoff)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("querying pending staged messages: %w", err)
	}
	return out, nil
}

// PurgeProcessedBefore deletes processed messages older than cutoff, so
// the staging table doesn't grow unbounded once the consumer group has
// moved past them.
func (s *Store) PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM staged_messages WHERE processed_at IS NOT NULL AND processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging processed staged messages: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
