package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorderConn captures everything the relay sends, standing in for a live
// WebSocket connection.
type recorderConn struct {
	mu     sync.Mutex
	events []recordedEvent
	closed bool
}

type recordedEvent struct {
	Name string
	Data interface{}
}

func (c *recorderConn) Send(event string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, recordedEvent{Name: event, Data: data})
	return nil
}

func (c *recorderConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recorderConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *recorderConn) count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Name == event {
			n++
		}
	}
	return n
}

func (c *recorderConn) last(event string) (recordedEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Name == event {
			return c.events[i], true
		}
	}
	return recordedEvent{}, false
}

// named events in arrival order, for ordering assertions.
func (c *recorderConn) names(event string) []recordedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []recordedEvent
	for _, ev := range c.events {
		if ev.Name == event {
			out = append(out, ev)
		}
	}
	return out
}

func waitFor(t *testing.T, conn *recorderConn, event string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return conn.count(event) >= n
	}, 2*time.Second, 5*time.Millisecond, "expected %d %q events", n, event)
}

func startRelay(t *testing.T, opts Options) *Relay {
	t.Helper()
	relay := NewRelay(opts, nil)
	require.NoError(t, relay.Start(context.Background()))
	t.Cleanup(func() { _ = relay.Stop() })
	return relay
}

func defaultOpts() Options {
	return Options{
		RecruiterEmail: "recruiter@example.com",
		RecruiterName:  "Alex",
		HistoryLimit:   500,
	}
}

func TestRelayStartStop(t *testing.T) {
	relay := NewRelay(defaultOpts(), nil)

	require.NoError(t, relay.Start(context.Background()))
	assert.ErrorIs(t, relay.Start(context.Background()), ErrRelayAlreadyRunning)

	require.NoError(t, relay.Stop())
	assert.ErrorIs(t, relay.Stop(), ErrRelayNotRunning)

	assert.ErrorIs(t, relay.Join(&recorderConn{}, JoinPayload{}), ErrRelayNotRunning)
}

func TestRelayJoin(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	visitor := &recorderConn{}

	require.NoError(t, relay.Join(visitor, JoinPayload{UserID: "user_1", UserName: "Dana"}))
	waitFor(t, visitor, EventChatJoined, 1)
	waitFor(t, visitor, EventChatHistory, 1)

	assert.True(t, relay.IsVisitorOnline("user_1"))

	roster := relay.Roster()
	require.Len(t, roster, 1)
	assert.Equal(t, "user_1", roster[0].UserID)
	assert.Equal(t, "Dana", roster[0].UserName)
	assert.True(t, roster[0].IsOnline)
}

func TestRelayJoinWithoutIDSynthesizesOne(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	visitor := &recorderConn{}

	require.NoError(t, relay.Join(visitor, JoinPayload{}))
	waitFor(t, visitor, EventChatJoined, 1)

	roster := relay.Roster()
	require.Len(t, roster, 1)
	assert.NotEmpty(t, roster[0].UserID)
	assert.Equal(t, "Anonymous User", roster[0].UserName)
}

func TestRelayRecruiterLogin(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	recruiter := &recorderConn{}

	require.NoError(t, relay.Login(recruiter, LoginPayload{RecruiterEmail: "recruiter@example.com"}))
	waitFor(t, recruiter, EventRecruiterLoggedIn, 1)
	assert.True(t, relay.RecruiterOnline())
}

func TestRelayRecruiterLoginCaseInsensitive(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	recruiter := &recorderConn{}

	require.NoError(t, relay.Login(recruiter, LoginPayload{RecruiterEmail: "Recruiter@Example.COM"}))
	waitFor(t, recruiter, EventRecruiterLoggedIn, 1)
}

func TestRelayRecruiterLoginRejected(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	intruder := &recorderConn{}

	require.NoError(t, relay.Login(intruder, LoginPayload{RecruiterEmail: "mallory@example.com"}))
	waitFor(t, intruder, EventLoginFailed, 1)
	assert.False(t, relay.RecruiterOnline())
	assert.Zero(t, intruder.count(EventRecruiterLoggedIn))
}

func TestRelayNewestRecruiterWins(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	first := &recorderConn{}
	second := &recorderConn{}

	require.NoError(t, relay.Login(first, LoginPayload{RecruiterEmail: "recruiter@example.com"}))
	waitFor(t, first, EventRecruiterLoggedIn, 1)

	require.NoError(t, relay.Login(second, LoginPayload{RecruiterEmail: "recruiter@example.com"}))
	waitFor(t, second, EventRecruiterLoggedIn, 1)

	require.Eventually(t, first.isClosed, 2*time.Second, 5*time.Millisecond,
		"replaced recruiter connection should be closed")
}

func TestRelayVisitorMessageReachesRecruiter(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	recruiter := &recorderConn{}
	visitor := &recorderConn{}

	require.NoError(t, relay.Login(recruiter, LoginPayload{RecruiterEmail: "recruiter@example.com"}))
	require.NoError(t, relay.Join(visitor, JoinPayload{UserID: "user_1", UserName: "Dana"}))
	waitFor(t, visitor, EventChatJoined, 1)

	require.NoError(t, relay.VisitorMessage(visitor, UserMessagePayload{Message: "hello there"}))
	waitFor(t, recruiter, EventNewUserMessage, 1)
	waitFor(t, visitor, EventMessageSent, 1)

	ev, ok := recruiter.last(EventNewUserMessage)
	require.True(t, ok)
	payload := ev.Data.(NewUserMessagePayload)
	assert.Equal(t, "user_1", payload.UserID)
	assert.Equal(t, "Dana", payload.UserName)
	assert.Equal(t, "hello there", payload.Message)
	assert.False(t, payload.Timestamp.IsZero())
}

func TestRelayMessageOrderingPreserved(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	recruiter := &recorderConn{}
	visitor := &recorderConn{}

	require.NoError(t, relay.Login(recruiter, LoginPayload{RecruiterEmail: "recruiter@example.com"}))
	require.NoError(t, relay.Join(visitor, JoinPayload{UserID: "user_1"}))
	waitFor(t, visitor, EventChatJoined, 1)

	const total = 20
	for i := 0; i < total; i++ {
		require.NoError(t, relay.VisitorMessage(visitor, UserMessagePayload{
			Message: fmt.Sprintf("message %02d", i),
		}))
	}
	waitFor(t, recruiter, EventNewUserMessage, total)

	delivered := recruiter.names(EventNewUserMessage)
	for i, ev := range delivered {
		assert.Equal(t, fmt.Sprintf("message %02d", i), ev.Data.(NewUserMessagePayload).Message)
	}

	replay := relay.Replay("user_1")
	require.Len(t, replay, total)
	for i, msg := range replay {
		assert.Equal(t, fmt.Sprintf("message %02d", i), msg.Text)
	}
}

func TestRelayMessagesKeptWhileRecruiterOffline(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	visitor := &recorderConn{}

	require.NoError(t, relay.Join(visitor, JoinPayload{UserID: "user_1", UserName: "Dana"}))
	waitFor(t, visitor, EventChatJoined, 1)

	require.NoError(t, relay.VisitorMessage(visitor, UserMessagePayload{Message: "anyone home?"}))
	waitFor(t, visitor, EventMessageSent, 1)

	recruiter := &recorderConn{}
	require.NoError(t, relay.Login(recruiter, LoginPayload{RecruiterEmail: "recruiter@example.com"}))
	waitFor(t, recruiter, EventRecruiterLoggedIn, 1)

	ev, ok := recruiter.last(EventRecruiterLoggedIn)
	require.True(t, ok)
	roster := ev.Data.(RecruiterLoggedInPayload).ActiveUsers
	require.Len(t, roster, 1)
	require.Len(t, roster[0].Messages, 1)
	assert.Equal(t, "anyone home?", roster[0].Messages[0].Message)
}

func TestRelayRecruiterReply(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	recruiter := &recorderConn{}
	visitor := &recorderConn{}

	require.NoError(t, relay.Login(recruiter, LoginPayload{RecruiterEmail: "recruiter@example.com"}))
	require.NoError(t, relay.Join(visitor, JoinPayload{UserID: "user_1"}))
	waitFor(t, visitor, EventChatJoined, 1)

	require.NoError(t, relay.RecruiterReply(recruiter, RecruiterReplyPayload{
		UserID:  "user_1",
		Message: "thanks for reaching out",
	}))
	waitFor(t, visitor, EventRecruiterMessage, 1)
	waitFor(t, recruiter, EventReplySent, 1)

	ev, ok := visitor.last(EventRecruiterMessage)
	require.True(t, ok)
	assert.Equal(t, "thanks for reaching out", ev.Data.(RecruiterMessagePayload).Message)

	ack, ok := recruiter.last(EventReplySent)
	require.True(t, ok)
	assert.Equal(t, "user_1", ack.Data.(ReplySentPayload).UserID)
}

func TestRelayReplyRequiresRecruiterConn(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	visitor := &recorderConn{}
	impostor := &recorderConn{}

	require.NoError(t, relay.Join(visitor, JoinPayload{UserID: "user_1"}))
	waitFor(t, visitor, EventChatJoined, 1)

	require.NoError(t, relay.RecruiterReply(impostor, RecruiterReplyPayload{
		UserID:  "user_1",
		Message: "pretend reply",
	}))
	waitFor(t, impostor, EventMessageRejected, 1)
	assert.Zero(t, visitor.count(EventRecruiterMessage))
}

func TestRelayReplyToUnknownConversation(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	recruiter := &recorderConn{}

	require.NoError(t, relay.Login(recruiter, LoginPayload{RecruiterEmail: "recruiter@example.com"}))
	waitFor(t, recruiter, EventRecruiterLoggedIn, 1)

	require.NoError(t, relay.RecruiterReply(recruiter, RecruiterReplyPayload{
		UserID:  "nobody",
		Message: "hello?",
	}))
	waitFor(t, recruiter, EventMessageRejected, 1)
}

func TestRelayReplyToOfflineVisitorKeptInHistory(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	recruiter := &recorderConn{}
	visitor := &recorderConn{}

	require.NoError(t, relay.Login(recruiter, LoginPayload{RecruiterEmail: "recruiter@example.com"}))
	require.NoError(t, relay.Join(visitor, JoinPayload{UserID: "user_1"}))
	waitFor(t, visitor, EventChatJoined, 1)
	require.NoError(t, relay.Leave(visitor))
	require.Eventually(t, func() bool { return !relay.IsVisitorOnline("user_1") },
		2*time.Second, 5*time.Millisecond)

	require.NoError(t, relay.RecruiterReply(recruiter, RecruiterReplyPayload{
		UserID:  "user_1",
		Message: "still interested?",
	}))
	waitFor(t, recruiter, EventReplySent, 1)

	// Not delivered live, but present in history for the next reconnect.
	assert.Zero(t, visitor.count(EventRecruiterMessage))
	replay := relay.Replay("user_1")
	require.Len(t, replay, 1)
	assert.Equal(t, "still interested?", replay[0].Text)
	assert.Equal(t, FromRecruiter, replay[0].From)
}

func TestRelayEmptyMessageRejected(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	visitor := &recorderConn{}

	require.NoError(t, relay.Join(visitor, JoinPayload{UserID: "user_1"}))
	waitFor(t, visitor, EventChatJoined, 1)

	require.NoError(t, relay.VisitorMessage(visitor, UserMessagePayload{Message: "   "}))
	waitFor(t, visitor, EventMessageRejected, 1)
	assert.Empty(t, relay.Replay("user_1"))
}

func TestRelayRateLimitsVisitor(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	visitor := &recorderConn{}

	require.NoError(t, relay.Join(visitor, JoinPayload{UserID: "user_1"}))
	waitFor(t, visitor, EventChatJoined, 1)

	for i := 0; i < 101; i++ {
		require.NoError(t, relay.VisitorMessage(visitor, UserMessagePayload{Message: "spam"}))
	}
	waitFor(t, visitor, EventMessageSent, 100)
	waitFor(t, visitor, EventMessageRejected, 1)

	ev, _ := visitor.last(EventMessageRejected)
	assert.Contains(t, ev.Data.(MessageRejectedPayload).Message, "rate limit")
}

func TestRelayIdentityStableAcrossReconnect(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	first := &recorderConn{}

	require.NoError(t, relay.Join(first, JoinPayload{UserID: "user_1", UserName: "Dana"}))
	waitFor(t, first, EventChatJoined, 1)
	require.NoError(t, relay.VisitorMessage(first, UserMessagePayload{Message: "first session"}))
	waitFor(t, first, EventMessageSent, 1)
	require.NoError(t, relay.Leave(first))

	second := &recorderConn{}
	require.NoError(t, relay.Join(second, JoinPayload{UserID: "user_1", UserName: "Dana"}))
	waitFor(t, second, EventChatHistory, 1)

	ev, ok := second.last(EventChatHistory)
	require.True(t, ok)
	history := ev.Data.([]HistoryEntry)
	require.Len(t, history, 1)
	assert.Equal(t, "first session", history[0].Message)

	roster := relay.Roster()
	require.Len(t, roster, 1)
}

func TestRelayReconnectReplacesStaleConnection(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	stale := &recorderConn{}
	fresh := &recorderConn{}

	require.NoError(t, relay.Join(stale, JoinPayload{UserID: "user_1"}))
	waitFor(t, stale, EventChatJoined, 1)

	require.NoError(t, relay.Join(fresh, JoinPayload{UserID: "user_1"}))
	waitFor(t, fresh, EventChatJoined, 1)
	require.Eventually(t, stale.isClosed, 2*time.Second, 5*time.Millisecond)

	// The stale connection's disconnect must not take the fresh one offline.
	require.NoError(t, relay.Leave(stale))
	time.Sleep(50 * time.Millisecond)
	assert.True(t, relay.IsVisitorOnline("user_1"))
}

func TestRelayLeaveIsIdempotent(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	recruiter := &recorderConn{}
	visitor := &recorderConn{}

	require.NoError(t, relay.Login(recruiter, LoginPayload{RecruiterEmail: "recruiter@example.com"}))
	require.NoError(t, relay.Join(visitor, JoinPayload{UserID: "user_1"}))
	waitFor(t, visitor, EventChatJoined, 1)

	require.NoError(t, relay.Leave(visitor))
	require.NoError(t, relay.Leave(visitor))
	waitFor(t, recruiter, EventUserDisconnected, 1)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, recruiter.count(EventUserDisconnected))
}

func TestRelayRecruiterLeaveKeepsConversations(t *testing.T) {
	relay := startRelay(t, defaultOpts())
	recruiter := &recorderConn{}
	visitor := &recorderConn{}

	require.NoError(t, relay.Login(recruiter, LoginPayload{RecruiterEmail: "recruiter@example.com"}))
	require.NoError(t, relay.Join(visitor, JoinPayload{UserID: "user_1"}))
	waitFor(t, visitor, EventChatJoined, 1)

	require.NoError(t, relay.Leave(recruiter))
	require.Eventually(t, func() bool { return !relay.RecruiterOnline() },
		2*time.Second, 5*time.Millisecond)

	assert.True(t, relay.IsVisitorOnline("user_1"))
	stats := relay.Stats()
	assert.Equal(t, 1, stats["conversations"])
	assert.Equal(t, 0, stats["recruiter_online"])
}

func TestRelayHistoryLimitBoundsMemory(t *testing.T) {
	opts := defaultOpts()
	opts.HistoryLimit = 5
	relay := startRelay(t, opts)
	visitor := &recorderConn{}

	require.NoError(t, relay.Join(visitor, JoinPayload{UserID: "user_1"}))
	waitFor(t, visitor, EventChatJoined, 1)

	for i := 0; i < 8; i++ {
		require.NoError(t, relay.VisitorMessage(visitor, UserMessagePayload{
			Message: fmt.Sprintf("m%d", i),
		}))
	}
	waitFor(t, visitor, EventMessageSent, 8)

	replay := relay.Replay("user_1")
	require.Len(t, replay, 5)
	assert.Equal(t, "m3", replay[0].Text)
	assert.Equal(t, "m7", replay[4].Text)
}

// memoryArchive records archive calls for seeding and persistence tests.
type memoryArchive struct {
	mu      sync.Mutex
	records map[string]*ConversationRecord
	seed    []*ConversationRecord
}

func newMemoryArchive(seed ...*ConversationRecord) *memoryArchive {
	return &memoryArchive{records: make(map[string]*ConversationRecord), seed: seed}
}

func (a *memoryArchive) SaveConversation(_ context.Context, rec *ConversationRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[rec.UserID] = rec
	return nil
}

func (a *memoryArchive) AppendMessage(_ context.Context, userID string, msg *Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[userID]
	if !ok {
		rec = &ConversationRecord{UserID: userID, CreatedAt: msg.Timestamp}
		a.records[userID] = rec
	}
	rec.Messages = append(rec.Messages, *msg)
	return nil
}

func (a *memoryArchive) LoadConversations(_ context.Context) ([]*ConversationRecord, error) {
	return a.seed, nil
}

func (a *memoryArchive) messageCount(userID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[userID]
	if !ok {
		return 0
	}
	return len(rec.Messages)
}

func TestRelaySeedsFromArchive(t *testing.T) {
	seed := &ConversationRecord{
		UserID:    "user_1",
		UserName:  "Dana",
		CreatedAt: time.Now().Add(-time.Hour),
		Messages: []Message{
			{ID: "m1", Text: "from a previous run", From: FromUser, Timestamp: time.Now().Add(-time.Hour)},
		},
	}
	relay := NewRelay(defaultOpts(), newMemoryArchive(seed))
	require.NoError(t, relay.Start(context.Background()))
	t.Cleanup(func() { _ = relay.Stop() })

	replay := relay.Replay("user_1")
	require.Len(t, replay, 1)
	assert.Equal(t, "from a previous run", replay[0].Text)

	roster := relay.Roster()
	require.Len(t, roster, 1)
	assert.False(t, roster[0].IsOnline)
}

func TestRelayPersistsMessagesToArchive(t *testing.T) {
	archive := newMemoryArchive()
	relay := NewRelay(defaultOpts(), archive)
	require.NoError(t, relay.Start(context.Background()))
	t.Cleanup(func() { _ = relay.Stop() })

	visitor := &recorderConn{}
	require.NoError(t, relay.Join(visitor, JoinPayload{UserID: "user_1"}))
	waitFor(t, visitor, EventChatJoined, 1)
	require.NoError(t, relay.VisitorMessage(visitor, UserMessagePayload{Message: "persist me"}))
	waitFor(t, visitor, EventMessageSent, 1)

	require.Eventually(t, func() bool {
		return archive.messageCount("user_1") == 1
	}, 2*time.Second, 5*time.Millisecond)
}
