package chat

import (
	"context"
	"time"
)

// ConversationRecord is the storable form of a conversation, used to seed the
// relay at startup and to persist identity metadata.
type ConversationRecord struct {
	UserID    string
	UserName  string
	UserEmail string
	CreatedAt time.Time
	Messages  []Message
}

// Archive persists chat history beyond the relay's process lifetime. The
// in-memory log stays authoritative for replay; archive writes happen off the
// event loop, so durability is best-effort while live ordering is exact.
type Archive interface {
	// SaveConversation upserts a conversation's identity metadata.
	SaveConversation(ctx context.Context, rec *ConversationRecord) error

	// AppendMessage persists one message under a conversation.
	AppendMessage(ctx context.Context, userID string, msg *Message) error

	// LoadConversations returns every stored conversation with messages in
	// chronological order.
	LoadConversations(ctx context.Context) ([]*ConversationRecord, error)
}
