// Package dlq implements the change-stream updater's (C8) dead letter
// queue: messages that failed processing after exhausting retry.Policy
// land here instead of blocking the consumer, keyed by
// (database, entity_class, entity_id) rather than the teacher's
// (repo_id, commit_sha), generalized from internal/dlq/queue.go.
package dlq

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Entry is one failed change-stream message.
type Entry struct {
	ID           int64
	Database     string
	EntityClass  string // tmo | tprm | mo | prm
	EntityID     int64
	ErrorMessage string
	ErrorStack   string
	RetryCount   int
	LastRetryAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Payload      map[string]interface{}
}

// Queue manages failed change-stream messages in Postgres.
type Queue struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db, logger: slog.Default().With("component", "dlq")}
}

// Enqueue records a failed message; a repeat failure for the same
// entity increments retry_count instead of duplicating the row.
func (q *Queue) Enqueue(ctx context.Context, database, entityClass string, entityID int64, cause error, payload map[string]interface{}) error {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal dlq payload: %w", err)
	}

	errorMsg := cause.Error()
	errorStack := fmt.Sprintf("%+v", cause)

	_, dbErr := q.db.ExecContext(ctx, `
		INSERT INTO change_stream_dlq (database, entity_class, entity_id, error_message, error_stack, retry_count, payload)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
		ON CONFLICT (database, entity_class, entity_id) DO UPDATE
		SET retry_count = change_stream_dlq.retry_count + 1,
		    error_message = $4,
		    error_stack = $5,
		    updated_at = NOW(),
		    last_retry_at = NOW(),
		    payload = $6
	`, database, entityClass, entityID, errorMsg, errorStack, payloadJSON)
	if dbErr != nil {
		return fmt.Errorf("failed to enqueue message to DLQ: %w", dbErr)
	}

	q.logger.Warn("change-stream message enqueued to DLQ",
		"database", database, "entity_class", entityClass, "entity_id", entityID, "error", errorMsg)
	return nil
}

// GetPendingRetries returns messages not yet past maxRetries.
func (q *Queue) GetPendingRetries(ctx context.Context, database string, maxRetries int) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, database, entity_class, entity_id, error_message, error_stack, retry_count, last_retry_at, created_at, updated_at, payload
		FROM change_stream_dlq
		WHERE database = $1 AND retry_count < $2
		ORDER BY created_at ASC
	`, database, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to query DLQ: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows, q.logger)
}

func scanEntries(rows *sql.Rows, logger *slog.Logger) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var payloadJSON []byte
		var lastRetryAt sql.NullTime

		if err := rows.Scan(&e.ID, &e.Database, &e.EntityClass, &e.EntityID, &e.ErrorMessage, &e.ErrorStack,
			&e.RetryCount, &lastRetryAt, &e.CreatedAt, &e.UpdatedAt, &payloadJSON); err != nil {
			return nil, fmt.Errorf("failed to scan DLQ entry: %w", err)
		}
		if lastRetryAt.Valid {
			e.LastRetryAt = &lastRetryAt.Time
		}
		e.Payload = make(map[string]interface{})
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
				logger.Warn("failed to unmarshal dlq payload", "entry_id", e.ID, "error", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkResolved removes an entity's DLQ entry after a successful retry.
func (q *Queue) MarkResolved(ctx context.Context, database, entityClass string, entityID int64) error {
	result, err := q.db.ExecContext(ctx, `
		DELETE FROM change_stream_dlq
		WHERE database = $1 AND entity_class = $2 AND entity_id = $3
	`, database, entityClass, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete DLQ entry: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		q.logger.Info("message resolved and removed from DLQ", "database", database, "entity_class", entityClass, "entity_id", entityID)
	}
	return nil
}

// Stats summarizes a projection's DLQ backlog.
type Stats struct {
	Database         string
	TotalEntries     int
	RetryableEntries int
	ExhaustedRetries int
}

// GetStats reports DLQ backlog size, exhausted vs retryable, for
// orchestrator health reporting (spec §4.8).
func (q *Queue) GetStats(ctx context.Context, database string, maxRetries int) (*Stats, error) {
	var stats Stats
	err := q.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE retry_count >= $2) as exhausted,
			COUNT(*) FILTER (WHERE retry_count < $2) as retryable
		FROM change_stream_dlq
		WHERE database = $1
	`, database, maxRetries).Scan(&stats.TotalEntries, &stats.ExhaustedRetries, &stats.RetryableEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to get DLQ stats: %w", err)
	}
	stats.Database = database
	return &stats, nil
}

// PurgeOld removes DLQ entries older than olderThan, regardless of
// database, so the DLQ table doesn't grow unbounded across projections.
func (q *Queue) PurgeOld(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := q.db.ExecContext(ctx, `DELETE FROM change_stream_dlq WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old DLQ entries: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		q.logger.Info("purged old DLQ entries", "count", rows, "older_than", olderThan)
	}
	return int(rows), nil
}
