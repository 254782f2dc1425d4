package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is RFC 3339 with fixed-width nanoseconds so that the stored
// strings sort lexicographically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Message roles. The set is closed; Append rejects anything else.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// ToolCallRecord is one recorded tool invocation on an assistant message:
// what the model asked for and what came back.
type ToolCallRecord struct {
	CallID    string          `json:"call_id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
	Result    json.RawMessage `json:"result"`
}

// Message is one persisted conversation message.
type Message struct {
	ID             int64            `json:"id"`
	ConversationID int64            `json:"conversation_id"`
	UserID         int64            `json:"user_id"`
	Role           string           `json:"role"`
	Content        string           `json:"content"`
	ToolCalls      []ToolCallRecord `json:"tool_calls,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ConversationInfo is per-conversation metadata derived from its messages.
type ConversationInfo struct {
	ConversationID int64     `json:"conversation_id"`
	MessageCount   int       `json:"message_count"`
	CreatedAt      time.Time `json:"created_at"`
	LastMessageAt  time.Time `json:"last_message_at"`
}

// Store persists conversations and their messages in SQLite.
// Reads always filter by both conversation and user: asking for a
// conversation that belongs to someone else yields an empty history, not an
// error, so callers cannot distinguish "doesn't exist" from "not yours".
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateConversation allocates a new conversation id for the user. The id
// comes from the database sequence, so concurrent creations never collide.
func (s *Store) CreateConversation(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id, created_at) VALUES (?, ?)`,
		userID, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("create conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create conversation: %w", err)
	}
	return id, nil
}

// Append durably persists one message. The write is a single INSERT, so it
// either lands whole or not at all. Messages are append-only; updated_at is
// set once at creation and reserved for bookkeeping.
func (s *Store) Append(ctx context.Context, convID, userID int64, role, content string, toolCalls []ToolCallRecord) (*Message, error) {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
	default:
		return nil, fmt.Errorf("invalid role %q", role)
	}

	var toolCallsJSON *string
	if len(toolCalls) > 0 {
		data, err := json.Marshal(toolCalls)
		if err != nil {
			return nil, fmt.Errorf("marshal tool calls: %w", err)
		}
		str := string(data)
		toolCallsJSON = &str
	}

	now := time.Now().UTC()
	ts := now.Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, user_id, role, content, tool_calls, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		convID, userID, role, content, toolCallsJSON, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	return &Message{
		ID:             id,
		ConversationID: convID,
		UserID:         userID,
		Role:           role,
		Content:        content,
		ToolCalls:      toolCalls,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// defaultRecentLimit bounds Recent when the caller passes no usable limit.
const defaultRecentLimit = 20

// Recent returns the most recent limit messages for the conversation and
// user, in ascending chronological order. A non-positive limit falls back
// to defaultRecentLimit. A conversation owned by a different user comes
// back empty.
func (s *Store) Recent(ctx context.Context, convID, userID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, user_id, role, content, tool_calls, created_at, updated_at FROM (
			SELECT id, conversation_id, user_id, role, content, tool_calls, created_at, updated_at
			FROM messages WHERE conversation_id = ? AND user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
		) sub ORDER BY created_at ASC, id ASC`,
		convID, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load recent messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// All returns the complete history for the conversation and user, in
// ascending chronological order. Same ownership behavior as Recent.
func (s *Store) All(ctx context.Context, convID, userID int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, user_id, role, content, tool_calls, created_at, updated_at
		 FROM messages WHERE conversation_id = ? AND user_id = ? ORDER BY created_at ASC, id ASC`,
		convID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("load full history: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListConversations returns metadata for the user's conversations, most
// recently active first.
func (s *Store) ListConversations(ctx context.Context, userID int64, limit int) ([]ConversationInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, COUNT(id), MIN(created_at), MAX(created_at)
		 FROM messages WHERE user_id = ?
		 GROUP BY conversation_id
		 ORDER BY MAX(created_at) DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var infos []ConversationInfo
	for rows.Next() {
		var info ConversationInfo
		var createdAt, lastAt string
		if err := rows.Scan(&info.ConversationID, &info.MessageCount, &createdAt, &lastAt); err != nil {
			return nil, err
		}
		info.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		info.LastMessageAt, _ = time.Parse(timeLayout, lastAt)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var msg Message
		var toolCallsJSON sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.UserID, &msg.Role, &msg.Content,
			&toolCallsJSON, &createdAt, &updatedAt); err != nil {
			return nil, err
		}

		if toolCallsJSON.Valid {
			_ = json.Unmarshal([]byte(toolCallsJSON.String), &msg.ToolCalls)
		}
		msg.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		msg.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)

		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
