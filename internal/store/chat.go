package store

import (
	"context"
	"database/sql"
	"fmt"

	"resumehub/internal/chat"
)

// SaveConversation upserts conversation metadata and replaces its stored
// messages. Used when persisting a full conversation snapshot.
func (m *Manager) SaveConversation(ctx context.Context, record *chat.ConversationRecord) error {
	return m.executeWrite(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO chat_conversations (user_id, user_name, user_email, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				user_name = excluded.user_name,
				user_email = excluded.user_email`,
			record.UserID, record.UserName, record.UserEmail, record.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert conversation: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM chat_messages WHERE conversation_id = ?", record.UserID); err != nil {
			return fmt.Errorf("failed to clear conversation messages: %w", err)
		}
		for _, msg := range record.Messages {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO chat_messages (id, conversation_id, sender, sender_name, body, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				msg.ID, record.UserID, msg.From, msg.SenderName, msg.Text, msg.Timestamp,
			); err != nil {
				return fmt.Errorf("failed to insert chat message: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit conversation: %w", err)
		}
		return nil
	})
}

// AppendMessage records a single chat message, creating the conversation row
// if the visitor has not been archived before.
func (m *Manager) AppendMessage(ctx context.Context, userID string, msg *chat.Message) error {
	return m.executeWrite(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO chat_conversations (user_id, user_name, user_email, created_at)
			VALUES (?, '', '', ?)
			ON CONFLICT(user_id) DO NOTHING`,
			userID, msg.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to ensure conversation: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO chat_messages (id, conversation_id, sender, sender_name, body, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ID, userID, msg.From, msg.SenderName, msg.Text, msg.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to append chat message: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit chat message: %w", err)
		}
		return nil
	})
}

// LoadConversations restores the full chat archive, oldest conversation
// first with messages in send order.
func (m *Manager) LoadConversations(ctx context.Context) ([]*chat.ConversationRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT user_id, user_name, user_email, created_at
		FROM chat_conversations ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*chat.ConversationRecord
	byID := make(map[string]*chat.ConversationRecord)
	for rows.Next() {
		var rec chat.ConversationRecord
		if err := rows.Scan(&rec.UserID, &rec.UserName, &rec.UserEmail, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		records = append(records, &rec)
		byID[rec.UserID] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	msgRows, err := m.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender, sender_name, body, created_at
		FROM chat_messages ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer func() { _ = msgRows.Close() }()

	for msgRows.Next() {
		var msg chat.Message
		var convID string
		if err := msgRows.Scan(&msg.ID, &convID, &msg.From, &msg.SenderName, &msg.Text, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat message row: %w", err)
		}
		if rec, ok := byID[convID]; ok {
			rec.Messages = append(rec.Messages, msg)
		}
	}
	if err := msgRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat message rows: %w", err)
	}
	return records, nil
}
