package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// timeLayout keeps sub-second precision so updated_at can strictly increase
// across rapid successive mutations.
const timeLayout = time.RFC3339Nano

// Service provides conversation and message operations on a SQLite database.
type Service struct {
	db *sql.DB
}

// NewService creates a Service on db (schema already migrated).
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// ─── conversation index ──────────────────────────────────────────────────────

// Create inserts a new conversation and returns it.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Conversation, error) {
	id := newID()
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, model, backend_id, context_rounds, divider_ids, pinned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '[]', 0, ?, ?)`,
		id, input.Title, input.Model, input.BackendID, RoundsUnlimited, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the conversation under id, or sql.ErrNoRows.
func (s *Service) Get(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, model, backend_id, context_rounds, divider_ids, pinned, created_at, updated_at
		FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

// List returns all conversations, pinned first, most recently updated first.
func (s *Service) List(ctx context.Context) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, model, backend_id, context_rounds, divider_ids, pinned, created_at, updated_at
		FROM conversations ORDER BY pinned DESC, updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateMeta applies a partial update to the conversation summary and returns
// the updated record. updated_at strictly increases on every call.
func (s *Service) UpdateMeta(ctx context.Context, id string, update MetaUpdate) (*Conversation, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		existing.Title = *update.Title
	}
	if update.Model != nil {
		existing.Model = *update.Model
	}
	if update.BackendID != nil {
		existing.BackendID = *update.BackendID
	}
	if update.ContextRounds != nil {
		existing.ContextRounds = *update.ContextRounds
	}
	if update.Pinned != nil {
		existing.Pinned = *update.Pinned
	}

	updatedAt := nextTimestamp(existing.UpdatedAt)
	_, err = s.db.ExecContext(ctx, `
		UPDATE conversations SET title = ?, model = ?, backend_id = ?, context_rounds = ?, pinned = ?, updated_at = ?
		WHERE id = ?`,
		existing.Title, existing.Model, existing.BackendID, existing.ContextRounds,
		boolToInt(existing.Pinned), updatedAt.Format(timeLayout), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update conversation meta: %w", err)
	}
	return s.Get(ctx, id)
}

// AddDivider appends messageID to the conversation's divider list. The store
// does not verify the message still exists — a dangling divider is a windowing
// no-op, not an error.
func (s *Service) AddDivider(ctx context.Context, id, messageID string) (*Conversation, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, d := range existing.DividerIDs {
		if d == messageID {
			return existing, nil // already a divider
		}
	}
	dividers := append(existing.DividerIDs, messageID)
	if err := s.writeDividers(ctx, id, dividers, existing.UpdatedAt); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// RemoveDivider deletes messageID from the divider list if present.
func (s *Service) RemoveDivider(ctx context.Context, id, messageID string) (*Conversation, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dividers := make([]string, 0, len(existing.DividerIDs))
	for _, d := range existing.DividerIDs {
		if d != messageID {
			dividers = append(dividers, d)
		}
	}
	if len(dividers) == len(existing.DividerIDs) {
		return existing, nil
	}
	if err := s.writeDividers(ctx, id, dividers, existing.UpdatedAt); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes the conversation and (via FK cascade) its message log.
func (s *Service) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Touch bumps updated_at without changing any other field.
func (s *Service) Touch(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE conversations SET updated_at = ? WHERE id = ?",
		nextTimestamp(existing.UpdatedAt).Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// ─── message log ─────────────────────────────────────────────────────────────

// AppendMessage appends one message to the conversation's log and bumps the
// conversation's updated_at. Id and timestamp are assigned here; once
// appended, id and role never change.
func (s *Service) AppendMessage(ctx context.Context, conversationID string, input AppendMessageInput) (*Message, error) {
	attachments, err := json.Marshal(emptyIfNil(input.Attachments))
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}

	msg := &Message{
		ID:             newID(),
		ConversationID: conversationID,
		Role:           input.Role,
		Content:        input.Content,
		Reasoning:      input.Reasoning,
		Model:          input.Model,
		Stopped:        input.Stopped,
		Attachments:    input.Attachments,
		CreatedAt:      time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, reasoning, model, stopped, attachments, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, conversationID, msg.Role, msg.Content, msg.Reasoning, msg.Model,
		boolToInt(msg.Stopped), string(attachments), msg.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	// The message is durable at this point; a failed metadata bump must not
	// mask a successful append.
	if err := s.Touch(ctx, conversationID); err != nil {
		log.Printf("conversation: touch after append: %v", err)
	}
	return msg, nil
}

// GetMessages returns the conversation's full log in append order.
func (s *Service) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, reasoning, model, stopped, attachments, created_at
		FROM messages WHERE conversation_id = ? ORDER BY id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// EditMessage replaces a message's content. The explicit edit path — the only
// way stored content may change in place.
func (s *Service) EditMessage(ctx context.Context, conversationID, messageID, content string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE messages SET content = ? WHERE id = ? AND conversation_id = ?",
		content, messageID, conversationID)
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return s.Touch(ctx, conversationID)
}

// DeleteMessage removes a single message from the log.
func (s *Service) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM messages WHERE id = ? AND conversation_id = ?",
		messageID, conversationID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return s.Touch(ctx, conversationID)
}

// TruncateFrom removes messageID and every later message — a contiguous
// suffix of the log. UUIDv7 ids order by creation time, so `id >= ?` is the
// suffix predicate.
func (s *Service) TruncateFrom(ctx context.Context, conversationID, messageID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM messages WHERE conversation_id = ? AND id >= ?",
		conversationID, messageID)
	if err != nil {
		return fmt.Errorf("truncate messages: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return s.Touch(ctx, conversationID)
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// newID returns a UUIDv7 — time-ordered, so primary-key order is log order.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// nextTimestamp returns now, bumped just past prev if the clock has not
// advanced — keeps updated_at strictly increasing.
func nextTimestamp(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

func (s *Service) writeDividers(ctx context.Context, id string, dividers []string, prevUpdated time.Time) error {
	data, err := json.Marshal(emptyIfNil(dividers))
	if err != nil {
		return fmt.Errorf("marshal dividers: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE conversations SET divider_ids = ?, updated_at = ? WHERE id = ?",
		string(data), nextTimestamp(prevUpdated).Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("update dividers: %w", err)
	}
	return nil
}

// scanner is the shared subset of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*Conversation, error) {
	var c Conversation
	var dividers, createdAt, updatedAt string
	var pinned int
	err := row.Scan(&c.ID, &c.Title, &c.Model, &c.BackendID, &c.ContextRounds,
		&dividers, &pinned, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(dividers), &c.DividerIDs); err != nil {
		return nil, fmt.Errorf("parse divider_ids: %w", err)
	}
	c.Pinned = pinned != 0
	if c.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &c, nil
}

func scanMessage(row scanner) (*Message, error) {
	var m Message
	var attachments, createdAt string
	var stopped int
	err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Reasoning,
		&m.Model, &stopped, &attachments, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
		return nil, fmt.Errorf("parse attachments: %w", err)
	}
	if len(m.Attachments) == 0 {
		m.Attachments = nil
	}
	m.Stopped = stopped != 0
	if m.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
