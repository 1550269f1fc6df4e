package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sandevgo/tuskrelay/internal/core"
)

const titleMaxRunes = 60

type ConversationsRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewConversationsRepo(db *sql.DB) *ConversationsRepo {
	return &ConversationsRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *ConversationsRepo) Get(ctx context.Context, id string) (*core.Conversation, error) {
	query := `SELECT id, title, messages, resume_token, created_at, updated_at FROM conversations WHERE id = ?`

	var (
		c        core.Conversation
		title    sql.NullString
		messages string
		token    sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &title, &messages, &token, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}

	if err := json.Unmarshal([]byte(messages), &c.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages of %s: %w", id, err)
	}
	c.Title = title.String
	c.ResumeToken = token.String
	return &c, nil
}

// Upsert writes the full message list. A nil token leaves the stored one untouched;
// the title is set once, from the first user message.
func (r *ConversationsRepo) Upsert(ctx context.Context, id string, messages []core.ChatMessage, resumeToken *string) error {
	if messages == nil {
		messages = []core.ChatMessage{}
	}
	blob, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	var token sql.NullString
	if resumeToken != nil {
		token = sql.NullString{String: *resumeToken, Valid: true}
	}
	var title sql.NullString
	if t := deriveTitle(messages); t != "" {
		title = sql.NullString{String: t, Valid: true}
	}

	now := r.now()
	query := `
		INSERT INTO conversations (id, title, messages, resume_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			messages     = excluded.messages,
			resume_token = COALESCE(excluded.resume_token, conversations.resume_token),
			title        = COALESCE(conversations.title, excluded.title),
			updated_at   = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, query, id, title, string(blob), token, now, now); err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}
	return nil
}

func (r *ConversationsRepo) List(ctx context.Context, limit, offset int) ([]core.ConversationSummary, error) {
	query := `
		SELECT id, title, json_array_length(messages), created_at, updated_at
		FROM conversations
		ORDER BY updated_at DESC, id
		LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	out := []core.ConversationSummary{}
	for rows.Next() {
		var (
			s     core.ConversationSummary
			title sql.NullString
		)
		if err := rows.Scan(&s.ID, &title, &s.MessageCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		s.Title = title.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ConversationsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func deriveTitle(messages []core.ChatMessage) string {
	for _, m := range messages {
		if m.Role != core.RoleUser {
			continue
		}
		t := strings.Join(strings.Fields(m.Content), " ")
		if utf8.RuneCountInString(t) > titleMaxRunes {
			t = string([]rune(t)[:titleMaxRunes]) + "…"
		}
		return t
	}
	return ""
}
