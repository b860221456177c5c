package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/echomate/echomate/internal/provider"
	"github.com/echomate/echomate/internal/session"
)

var _ session.Persister = (*History)(nil)

// History stores conversation messages per session. It implements
// session.Persister.
type History struct {
	db *sql.DB

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

func newHistory(db *sql.DB) *History {
	return &History{db: db, now: time.Now}
}

// Load returns up to limit of the most recent messages for id, oldest first.
func (h *History) Load(ctx context.Context, id string, limit int) (session.History, error) {
	if limit <= 0 {
		return session.History{}, nil
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT role, content, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?`,
		id, limit,
	)
	if err != nil {
		return session.History{}, fmt.Errorf("sqlite: load history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		out    session.History
		newest int64
	)
	for rows.Next() {
		var (
			role, content string
			created       int64
		)
		if err := rows.Scan(&role, &content, &created); err != nil {
			return session.History{}, fmt.Errorf("sqlite: scan message: %w", err)
		}
		out.Messages = append(out.Messages, provider.LLMMessage{
			Role:    provider.MessageRole(role),
			Content: content,
		})
		newest = max(newest, created)
	}
	if err := rows.Err(); err != nil {
		return session.History{}, fmt.Errorf("sqlite: load history rows: %w", err)
	}

	slices.Reverse(out.Messages)
	if newest > 0 {
		out.UpdatedAt = time.Unix(0, newest)
	}
	return out, nil
}

// Append stores msgs at the end of id's history in one transaction.
func (h *History) Append(ctx context.Context, id string, msgs ...provider.LLMMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM messages WHERE session_id = ?", id,
	).Scan(&seq); err != nil {
		return fmt.Errorf("sqlite: read sequence: %w", err)
	}

	now := h.now().UnixNano()
	for _, m := range msgs {
		seq++
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (session_id, seq, role, content, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			id, seq, string(m.Role), m.Content, now,
		); err != nil {
			return fmt.Errorf("sqlite: append message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit append: %w", err)
	}
	return nil
}

// Purge deletes all stored history for id.
func (h *History) Purge(ctx context.Context, id string) error {
	if _, err := h.db.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("sqlite: purge session: %w", err)
	}
	return nil
}

// PurgeOlderThan deletes messages stored more than age ago and returns how
// many rows went.
func (h *History) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := h.now().Add(-age).UnixNano()
	res, err := h.db.ExecContext(ctx, "DELETE FROM messages WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge old messages: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Sessions returns how many sessions have stored messages.
func (h *History) Sessions(ctx context.Context) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT session_id) FROM messages").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count sessions: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}
