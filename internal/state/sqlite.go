// ABOUTME: SQLite implementation of the state Store using modernc.org/sqlite
// ABOUTME: Persists conversation records and an activity transcript with automatic schema creation

package state

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store and TranscriptRecorder using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "state")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite state store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversation_state (
			conversation_id TEXT PRIMARY KEY,
			record BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS transcript (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			type TEXT NOT NULL,
			author TEXT,
			text TEXT,
			recorded_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_transcript_conversation
			ON transcript(conversation_id, recorded_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite state store")
	return s.db.Close()
}

// Get returns the record for the conversation, creating it via factory if no
// row exists. The record is decoded fresh from the stored bytes, so it never
// aliases state visible outside the current turn.
func (s *SQLiteStore) Get(ctx context.Context, conversationID string, factory Factory) (*ConversationRecord, error) {
	query := `SELECT record FROM conversation_state WHERE conversation_id = ?`

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, conversationID).Scan(&raw)

	if err == sql.ErrNoRows {
		if factory == nil {
			return nil, ErrNotFound
		}
		return factory(conversationID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: querying record: %v", ErrStoreUnavailable, err)
	}

	var record ConversationRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decoding record for %s: %w", conversationID, err)
	}

	return &record, nil
}

// Save persists the record as a single row write. With force false the write
// is skipped when the serialized record matches what is already stored, so
// repeated saves of an unchanged record have no observable effect.
func (s *SQLiteStore) Save(ctx context.Context, record *ConversationRecord, force bool) error {
	raw, err := json.Marshal(record)
	if err != nil {
		// Serialization failure is fatal for the turn, not retryable.
		return fmt.Errorf("encoding record for %s: %w", record.ConversationID, err)
	}

	if !force {
		var existing []byte
		err := s.db.QueryRowContext(ctx,
			`SELECT record FROM conversation_state WHERE conversation_id = ?`,
			record.ConversationID,
		).Scan(&existing)
		if err == nil && bytes.Equal(existing, raw) {
			s.logger.Debug("record unchanged, skipping save", "conversation_id", record.ConversationID)
			return nil
		}
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("%w: checking record: %v", ErrStoreUnavailable, err)
		}
	}

	query := `
		INSERT OR REPLACE INTO conversation_state (conversation_id, record, updated_at)
		VALUES (?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		record.ConversationID,
		raw,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: saving record: %v", ErrStoreUnavailable, err)
	}

	s.logger.Debug("saved record",
		"conversation_id", record.ConversationID,
		"active_flow", record.ActiveFlow,
		"size", len(raw),
	)
	return nil
}

// Clear removes the persisted record for a conversation. Clearing a
// conversation that has no record is not an error.
func (s *SQLiteStore) Clear(ctx context.Context, conversationID string) error {
	query := `DELETE FROM conversation_state WHERE conversation_id = ?`

	if _, err := s.db.ExecContext(ctx, query, conversationID); err != nil {
		return fmt.Errorf("%w: clearing record: %v", ErrStoreUnavailable, err)
	}

	s.logger.Debug("cleared record", "conversation_id", conversationID)
	return nil
}

// RecordActivity appends one activity to the conversation transcript.
func (s *SQLiteStore) RecordActivity(ctx context.Context, entry *TranscriptEntry) error {
	query := `
		INSERT INTO transcript (id, conversation_id, direction, type, author, text, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.ConversationID,
		entry.Direction,
		entry.Type,
		entry.Author,
		entry.Text,
		entry.RecordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording activity: %w", err)
	}
	return nil
}

// ListTranscript returns transcript entries for a conversation in recorded
// order. A limit of 0 means no limit.
func (s *SQLiteStore) ListTranscript(ctx context.Context, conversationID string, limit int) ([]*TranscriptEntry, error) {
	query := `
		SELECT id, conversation_id, direction, type, author, text, recorded_at
		FROM transcript
		WHERE conversation_id = ?
		ORDER BY recorded_at ASC, rowid ASC
	`
	args := []any{conversationID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transcript: %w", err)
	}
	defer rows.Close()

	var entries []*TranscriptEntry
	for rows.Next() {
		var entry TranscriptEntry
		var recordedAtStr string
		if err := rows.Scan(
			&entry.ID,
			&entry.ConversationID,
			&entry.Direction,
			&entry.Type,
			&entry.Author,
			&entry.Text,
			&recordedAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning transcript entry: %w", err)
		}
		entry.RecordedAt, err = time.Parse(time.RFC3339, recordedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
