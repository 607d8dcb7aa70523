package store

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Message is one checkpointed conversation turn.
type Message struct {
	ID        string
	ThreadID  string
	Sequence  int
	Role      string
	Content   string
	CreatedAt int64
}

// CheckpointStore keeps conversation history per thread so a follow-up
// invocation can replay prior turns.
type CheckpointStore struct {
	db *DB
}

// NewCheckpointStore creates a new checkpoint store.
func NewCheckpointStore(db *DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

// Append stores msgs at the end of the thread, assigning ids and sequence numbers.
func (s *CheckpointStore) Append(ctx context.Context, threadID string, msgs []Message) ([]Message, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread id is required")
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var seq int
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM checkpoints WHERE thread_id = ?`, threadID).Scan(&seq)
	if err != nil {
		return nil, fmt.Errorf("get sequence: %w", err)
	}

	now := time.Now().Unix()
	stored := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		seq++
		m.ID = ulid.Make().String()
		m.ThreadID = threadID
		m.Sequence = seq
		m.CreatedAt = now

		_, err := tx.ExecContext(ctx, `
			INSERT INTO checkpoints (id, thread_id, sequence, role, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, m.ID, m.ThreadID, m.Sequence, m.Role, m.Content, m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert checkpoint: %w", err)
		}
		stored = append(stored, m)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return stored, nil
}

// Load returns the thread's messages ordered by sequence.
func (s *CheckpointStore) Load(ctx context.Context, threadID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, sequence, role, content, created_at
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY sequence ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Sequence, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// DeleteThread drops every message of a thread.
func (s *CheckpointStore) DeleteThread(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}
