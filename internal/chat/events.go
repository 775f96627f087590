package chat

import (
	"strings"
	"time"
)

// Wire event names. These are an external interface shared with the web
// clients and must not be renamed.
const (
	// Inbound
	EventUserJoin       = "user-join-chat"
	EventRecruiterLogin = "recruiter-login"
	EventUserMessage    = "user-message-to-recruiter"
	EventRecruiterReply = "recruiter-reply-to-user"

	// Outbound
	EventChatJoined        = "chat-joined"
	EventChatHistory       = "chat-history"
	EventRecruiterLoggedIn = "recruiter-logged-in"
	EventLoginFailed       = "login-failed"
	EventNewUserMessage    = "new-user-message"
	EventUserConnected     = "user-connected"
	EventUserDisconnected  = "user-disconnected"
	EventReplySent         = "reply-sent"
	EventRecruiterMessage  = "recruiter-message"
	EventMessageSent       = "message-sent"
	EventMessageRejected   = "message-rejected"
)

// JoinPayload carries a visitor's join request. All fields are optional: a
// first-time visitor has no stored userId yet.
type JoinPayload struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

func (p *JoinPayload) Validate() error { return nil }

// LoginPayload carries a recruiter login attempt.
type LoginPayload struct {
	RecruiterEmail string `json:"recruiterEmail"`
	RecruiterName  string `json:"recruiterName"`
}

func (p *LoginPayload) Validate() error {
	if strings.TrimSpace(p.RecruiterEmail) == "" {
		return ErrInvalidCredential
	}
	return nil
}

// UserMessagePayload carries a visitor message. The client-supplied timestamp
// is accepted for wire compatibility but never trusted; the relay stamps
// messages on receipt.
type UserMessagePayload struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (p *UserMessagePayload) Validate() error {
	if strings.TrimSpace(p.Message) == "" {
		return ErrEmptyMessage
	}
	return nil
}

// RecruiterReplyPayload carries a recruiter reply targeted at one visitor.
type RecruiterReplyPayload struct {
	UserID        string `json:"userId"`
	Message       string `json:"message"`
	RecruiterName string `json:"recruiterName"`
}

func (p *RecruiterReplyPayload) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return ErrMissingUserID
	}
	if strings.TrimSpace(p.Message) == "" {
		return ErrEmptyMessage
	}
	return nil
}

// Outbound payload shapes. Field names follow the dashboard and visitor
// clients exactly.

type ChatJoinedPayload struct {
	Message string `json:"message"`
}

type LoginFailedPayload struct {
	Message string `json:"message"`
}

type HistoryEntry struct {
	Message   string    `json:"message"`
	From      string    `json:"from"`
	Timestamp time.Time `json:"timestamp"`
}

type RosterEntry struct {
	UserID    string         `json:"userId"`
	UserName  string         `json:"userName"`
	UserEmail string         `json:"userEmail"`
	IsOnline  bool           `json:"isOnline"`
	Messages  []HistoryEntry `json:"messages"`
}

type RecruiterLoggedInPayload struct {
	ActiveUsers []RosterEntry `json:"activeUsers"`
}

type NewUserMessagePayload struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	UserEmail string    `json:"userEmail"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type UserConnectedPayload struct {
	UserName string `json:"userName"`
}

type UserDisconnectedPayload struct {
	UserID string `json:"userId"`
}

type ReplySentPayload struct {
	UserID string `json:"userId"`
}

type RecruiterMessagePayload struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type MessageSentPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

type MessageRejectedPayload struct {
	Message string `json:"message"`
}
