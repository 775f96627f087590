package chat

import (
	"time"
)

// Message senders as they appear on the wire and in storage.
const (
	FromUser      = "user"
	FromRecruiter = "recruiter"
)

// Message is one chat message. Immutable once appended; Timestamp is assigned
// by the relay on receipt, never taken from the client.
type Message struct {
	ID         string    `json:"id"`
	Text       string    `json:"message"`
	From       string    `json:"from"`
	SenderName string    `json:"senderName,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Conversation is the ordered exchange between one visitor identity and the
// recruiter. Keyed by the visitor's identity ID; lives for the relay's
// lifetime. Mutated only by the relay's event loop.
type Conversation struct {
	UserID    string
	UserName  string
	UserEmail string
	Online    bool
	CreatedAt time.Time
	messages  []Message
}

func newConversation(id Identity, now time.Time) *Conversation {
	return &Conversation{
		UserID:    id.ID,
		UserName:  id.Name,
		UserEmail: id.Email,
		CreatedAt: now,
	}
}

// append records a message, trimming the oldest entries once the in-memory
// log exceeds limit. The archive keeps the full log; the bound only caps
// relay memory for long-lived conversations.
func (c *Conversation) append(msg Message, limit int) {
	c.messages = append(c.messages, msg)
	if limit > 0 && len(c.messages) > limit {
		c.messages = c.messages[len(c.messages)-limit:]
	}
}

// history returns an independent copy of the log, safe to iterate after the
// conversation has moved on.
func (c *Conversation) history() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) historyEntries() []HistoryEntry {
	entries := make([]HistoryEntry, len(c.messages))
	for i, msg := range c.messages {
		entries[i] = HistoryEntry{
			Message:   msg.Text,
			From:      msg.From,
			Timestamp: msg.Timestamp,
		}
	}
	return entries
}
