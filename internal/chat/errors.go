package chat

import "errors"

var (
	ErrRelayAlreadyRunning = errors.New("relay is already running")
	ErrRelayNotRunning     = errors.New("relay is not running")
	ErrEventChannelFull    = errors.New("relay event channel is full")

	ErrInvalidCredential   = errors.New("recruiter email not recognized")
	ErrEmptyMessage        = errors.New("message text cannot be empty")
	ErrRateLimited         = errors.New("rate limit exceeded: 100 messages per minute")
	ErrNotRecruiter        = errors.New("connection is not logged in as recruiter")
	ErrUnknownConversation = errors.New("no conversation for target user")
	ErrMissingUserID       = errors.New("userId is required")
)
