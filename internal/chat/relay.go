package chat

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Conn is the delivery surface the relay needs from a live connection. The
// WebSocket transport implements it; tests substitute recorders.
type Conn interface {
	// Send delivers one named event to the peer. Must be safe for
	// concurrent use.
	Send(event string, data interface{}) error

	// Close tears the connection down.
	Close() error
}

// Options configures a Relay.
type Options struct {
	RecruiterEmail string
	RecruiterName  string

	// HistoryLimit bounds the in-memory log per conversation. Zero means
	// unbounded, which is an operational risk for a long-lived process.
	HistoryLimit int
}

type eventKind int

const (
	evJoin eventKind = iota
	evLogin
	evUserMessage
	evRecruiterReply
	evLeave
)

type relayEvent struct {
	kind    eventKind
	conn    Conn
	join    JoinPayload
	login   LoginPayload
	userMsg UserMessagePayload
	reply   RecruiterReplyPayload
}

// Relay is the chat core: it owns all conversation, presence and connection
// state, and processes every inbound event on a single goroutine so that
// presence transitions and message appends against the same conversation
// never race. The mutex exists only so snapshots (Replay, Roster, Stats) can
// be read from other goroutines; mutations happen exclusively in run().
//
// One Relay is constructed per process and injected into the transport.
type Relay struct {
	opts     Options
	registry identityRegistry
	archive  Archive
	limiter  *rateLimiter

	events    chan relayEvent
	archiveCh chan func(context.Context) error
	shutdown  chan struct{}
	wg        sync.WaitGroup

	mu            sync.RWMutex
	running       bool
	conversations map[string]*Conversation
	visitorConns  map[string]Conn // userID -> live visitor connection
	connIdentity  map[Conn]string // joined visitor connection -> userID
	recruiter     Conn
	recruiterName string
}

// NewRelay creates a relay. archive may be nil for memory-only operation.
func NewRelay(opts Options, archive Archive) *Relay {
	if opts.RecruiterName == "" {
		opts.RecruiterName = "Recruiter"
	}
	return &Relay{
		opts: opts,
		registry: identityRegistry{
			recruiterEmail: strings.TrimSpace(opts.RecruiterEmail),
			recruiterName:  opts.RecruiterName,
		},
		archive:       archive,
		limiter:       newRateLimiter(),
		events:        make(chan relayEvent, 1000),
		archiveCh:     make(chan func(context.Context) error, 256),
		shutdown:      make(chan struct{}),
		conversations: make(map[string]*Conversation),
		visitorConns:  make(map[string]Conn),
		connIdentity:  make(map[Conn]string),
	}
}

// Start seeds state from the archive and launches the event loop. A second
// Start on a running relay is a guarded error, never a duplicate loop.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrRelayAlreadyRunning
	}
	r.running = true
	r.mu.Unlock()

	if r.archive != nil {
		if err := r.seedFromArchive(ctx); err != nil {
			log.Warn().Err(err).Msg("chat: loading archived conversations failed, starting empty")
		}
	}

	r.wg.Add(2)
	go r.run(ctx)
	go r.archiveLoop(ctx)

	log.Info().Int("conversations", len(r.conversations)).Msg("chat relay started")
	return nil
}

// Stop shuts the event loop down. Pending archive writes are drained by the
// archiver before it exits.
func (r *Relay) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return ErrRelayNotRunning
	}
	r.running = false
	r.mu.Unlock()

	close(r.shutdown)
	r.wg.Wait()

	log.Info().Msg("chat relay stopped")
	return nil
}

func (r *Relay) seedFromArchive(ctx context.Context) error {
	records, err := r.archive.LoadConversations(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		conv := &Conversation{
			UserID:    rec.UserID,
			UserName:  rec.UserName,
			UserEmail: rec.UserEmail,
			CreatedAt: rec.CreatedAt,
		}
		for _, msg := range rec.Messages {
			conv.append(msg, r.opts.HistoryLimit)
		}
		r.conversations[rec.UserID] = conv
	}
	return nil
}

// Event entry points. Each queues work for the loop without blocking the
// caller; a full channel is reported rather than waited on.

func (r *Relay) post(ev relayEvent) error {
	r.mu.RLock()
	if !r.running {
		r.mu.RUnlock()
		return ErrRelayNotRunning
	}
	r.mu.RUnlock()

	select {
	case r.events <- ev:
		return nil
	default:
		return ErrEventChannelFull
	}
}

// Join registers a visitor connection under a stable identity.
func (r *Relay) Join(conn Conn, p JoinPayload) error {
	return r.post(relayEvent{kind: evJoin, conn: conn, join: p})
}

// Login attempts to attach conn as the recruiter.
func (r *Relay) Login(conn Conn, p LoginPayload) error {
	return r.post(relayEvent{kind: evLogin, conn: conn, login: p})
}

// VisitorMessage relays a message from a visitor to the recruiter.
func (r *Relay) VisitorMessage(conn Conn, p UserMessagePayload) error {
	return r.post(relayEvent{kind: evUserMessage, conn: conn, userMsg: p})
}

// RecruiterReply relays a recruiter message to one visitor.
func (r *Relay) RecruiterReply(conn Conn, p RecruiterReplyPayload) error {
	return r.post(relayEvent{kind: evRecruiterReply, conn: conn, reply: p})
}

// Leave handles a disconnect. Safe to call more than once per connection;
// only the first call for a still-registered connection mutates state.
func (r *Relay) Leave(conn Conn) error {
	return r.post(relayEvent{kind: evLeave, conn: conn})
}

// run is the single event-processing goroutine. All state mutations happen
// here, which serializes presence transitions against message relay for the
// same conversation.
func (r *Relay) run(ctx context.Context) {
	defer r.wg.Done()

	cleanup := time.NewTicker(5 * time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case ev := <-r.events:
			r.dispatch(ev)
		case <-cleanup.C:
			r.limiter.Cleanup()
		case <-r.shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Relay) dispatch(ev relayEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.kind {
	case evJoin:
		r.handleJoin(ev.conn, ev.join)
	case evLogin:
		r.handleLogin(ev.conn, ev.login)
	case evUserMessage:
		r.handleVisitorMessage(ev.conn, ev.userMsg)
	case evRecruiterReply:
		r.handleRecruiterReply(ev.conn, ev.reply)
	case evLeave:
		r.handleLeave(ev.conn)
	}
}

func (r *Relay) handleJoin(conn Conn, p JoinPayload) {
	identity := r.registry.registerVisitor(p.UserID, p.UserName, p.UserEmail)

	conv, exists := r.conversations[identity.ID]
	if !exists {
		conv = newConversation(identity, time.Now())
		r.conversations[identity.ID] = conv
		r.persistConversation(conv)
	} else {
		// Refresh display fields; the visitor may have set a name since
		// the conversation was first created.
		if p.UserName != "" {
			conv.UserName = identity.Name
		}
		if p.UserEmail != "" {
			conv.UserEmail = identity.Email
		}
	}
	conv.Online = true

	// A reconnect replaces any stale connection for the same identity.
	if old, ok := r.visitorConns[identity.ID]; ok && old != conn {
		delete(r.connIdentity, old)
		go old.Close()
	}
	r.visitorConns[identity.ID] = conn
	r.connIdentity[conn] = identity.ID

	r.send(conn, EventChatJoined, ChatJoinedPayload{Message: "Connected to recruiter chat"})
	r.send(conn, EventChatHistory, conv.historyEntries())

	if r.recruiter != nil {
		r.send(r.recruiter, EventUserConnected, UserConnectedPayload{UserName: conv.UserName})
	}

	log.Info().Str("userId", identity.ID).Bool("new", !exists).Msg("visitor joined chat")
}

func (r *Relay) handleLogin(conn Conn, p LoginPayload) {
	identity, err := r.registry.authenticateRecruiter(p.RecruiterEmail, p.RecruiterName)
	if err != nil {
		r.send(conn, EventLoginFailed, LoginFailedPayload{Message: "Invalid recruiter credentials"})
		log.Warn().Str("email", p.RecruiterEmail).Msg("recruiter login rejected")
		return
	}

	// Newest login wins: the previous recruiter connection, if any, loses
	// the routing target and is closed.
	if r.recruiter != nil && r.recruiter != conn {
		go r.recruiter.Close()
	}
	r.recruiter = conn
	r.recruiterName = identity.Name

	r.send(conn, EventRecruiterLoggedIn, RecruiterLoggedInPayload{ActiveUsers: r.rosterLocked()})
	log.Info().Str("name", identity.Name).Msg("recruiter logged in")
}

func (r *Relay) handleVisitorMessage(conn Conn, p UserMessagePayload) {
	// Prefer the identity bound at join time; fall back to the payload so a
	// visitor whose join handshake has not completed is still accepted.
	userID := r.connIdentity[conn]
	if userID == "" {
		userID = strings.TrimSpace(p.UserID)
	}
	if userID == "" {
		r.send(conn, EventMessageRejected, MessageRejectedPayload{Message: ErrMissingUserID.Error()})
		return
	}

	text := strings.TrimSpace(p.Message)
	if text == "" {
		r.send(conn, EventMessageRejected, MessageRejectedPayload{Message: ErrEmptyMessage.Error()})
		return
	}

	if !r.limiter.Allow(userID) {
		r.send(conn, EventMessageRejected, MessageRejectedPayload{Message: ErrRateLimited.Error()})
		return
	}

	conv, exists := r.conversations[userID]
	if !exists {
		identity := r.registry.registerVisitor(userID, p.UserName, "")
		conv = newConversation(identity, time.Now())
		r.conversations[userID] = conv
		r.persistConversation(conv)
	}
	if p.UserName != "" {
		conv.UserName = p.UserName
	}

	msg := Message{
		ID:         uuid.NewString(),
		Text:       text,
		From:       FromUser,
		SenderName: conv.UserName,
		Timestamp:  time.Now(),
	}
	conv.append(msg, r.opts.HistoryLimit)
	r.persistMessage(userID, msg)

	if r.recruiter != nil {
		r.send(r.recruiter, EventNewUserMessage, NewUserMessagePayload{
			UserID:    userID,
			UserName:  conv.UserName,
			UserEmail: conv.UserEmail,
			Message:   msg.Text,
			Timestamp: msg.Timestamp,
		})
	}

	r.send(conn, EventMessageSent, MessageSentPayload{Timestamp: msg.Timestamp})
}

func (r *Relay) handleRecruiterReply(conn Conn, p RecruiterReplyPayload) {
	if conn != r.recruiter {
		r.send(conn, EventMessageRejected, MessageRejectedPayload{Message: ErrNotRecruiter.Error()})
		return
	}

	text := strings.TrimSpace(p.Message)
	if text == "" {
		r.send(conn, EventMessageRejected, MessageRejectedPayload{Message: ErrEmptyMessage.Error()})
		return
	}

	conv, exists := r.conversations[p.UserID]
	if !exists {
		r.send(conn, EventMessageRejected, MessageRejectedPayload{Message: ErrUnknownConversation.Error()})
		return
	}

	if !r.limiter.Allow(recruiterIdentityID) {
		r.send(conn, EventMessageRejected, MessageRejectedPayload{Message: ErrRateLimited.Error()})
		return
	}

	name := p.RecruiterName
	if name == "" {
		name = r.recruiterName
	}
	msg := Message{
		ID:         uuid.NewString(),
		Text:       text,
		From:       FromRecruiter,
		SenderName: name,
		Timestamp:  time.Now(),
	}
	conv.append(msg, r.opts.HistoryLimit)
	r.persistMessage(p.UserID, msg)

	// Offline visitors still get the message on reconnect via history
	// replay; only live delivery is skipped.
	if visitorConn, online := r.visitorConns[p.UserID]; online {
		r.send(visitorConn, EventRecruiterMessage, RecruiterMessagePayload{
			Message:   msg.Text,
			Timestamp: msg.Timestamp,
		})
	}

	r.send(conn, EventReplySent, ReplySentPayload{UserID: p.UserID})
}

func (r *Relay) handleLeave(conn Conn) {
	if conn == r.recruiter {
		// Visitor presence is independent of recruiter presence; nothing
		// else changes until a new recruiter logs in.
		r.recruiter = nil
		log.Info().Msg("recruiter disconnected")
		return
	}

	userID, joined := r.connIdentity[conn]
	if !joined {
		return // never joined, or already left
	}
	delete(r.connIdentity, conn)

	// A replaced connection must not take the newer one offline.
	if current, ok := r.visitorConns[userID]; !ok || current != conn {
		return
	}
	delete(r.visitorConns, userID)

	if conv, ok := r.conversations[userID]; ok {
		conv.Online = false
	}

	if r.recruiter != nil {
		r.send(r.recruiter, EventUserDisconnected, UserDisconnectedPayload{UserID: userID})
	}

	log.Info().Str("userId", userID).Msg("visitor left chat")
}

// send delivers one event and logs delivery failures; a dead peer is cleaned
// up by its own disconnect path, not here.
func (r *Relay) send(conn Conn, event string, data interface{}) {
	if err := conn.Send(event, data); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("chat delivery failed")
	}
}

func (r *Relay) persistConversation(conv *Conversation) {
	if r.archive == nil {
		return
	}
	rec := &ConversationRecord{
		UserID:    conv.UserID,
		UserName:  conv.UserName,
		UserEmail: conv.UserEmail,
		CreatedAt: conv.CreatedAt,
	}
	r.queueArchive(func(ctx context.Context) error {
		return r.archive.SaveConversation(ctx, rec)
	})
}

func (r *Relay) persistMessage(userID string, msg Message) {
	if r.archive == nil {
		return
	}
	r.queueArchive(func(ctx context.Context) error {
		return r.archive.AppendMessage(ctx, userID, &msg)
	})
}

// queueArchive hands a write to the archiver without blocking the event
// loop. On overflow the write is dropped; the in-memory log still has the
// data, so only restart durability is affected.
func (r *Relay) queueArchive(op func(context.Context) error) {
	select {
	case r.archiveCh <- op:
	default:
		log.Warn().Msg("chat archive queue full, dropping write")
	}
}

// archiveLoop applies archive writes in order on a single goroutine,
// mirroring the store's single-writer discipline. It drains the queue before
// exiting on shutdown.
func (r *Relay) archiveLoop(ctx context.Context) {
	defer r.wg.Done()

	apply := func(op func(context.Context) error) {
		if err := op(context.Background()); err != nil {
			log.Error().Err(err).Msg("chat archive write failed")
		}
	}

	for {
		select {
		case op := <-r.archiveCh:
			apply(op)
		case <-r.shutdown:
			for {
				select {
				case op := <-r.archiveCh:
					apply(op)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// Replay returns the full ordered log for one conversation. The slice is a
// copy: safe to call repeatedly, never mutates relay state.
func (r *Relay) Replay(userID string) []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, exists := r.conversations[userID]
	if !exists {
		return nil
	}
	return conv.history()
}

// Roster snapshots every known conversation for the recruiter dashboard,
// ordered by first contact.
func (r *Relay) Roster() []RosterEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rosterLocked()
}

func (r *Relay) rosterLocked() []RosterEntry {
	entries := make([]RosterEntry, 0, len(r.conversations))
	for _, conv := range r.conversations {
		entries = append(entries, RosterEntry{
			UserID:    conv.UserID,
			UserName:  conv.UserName,
			UserEmail: conv.UserEmail,
			IsOnline:  conv.Online,
			Messages:  conv.historyEntries(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return r.conversations[entries[i].UserID].CreatedAt.Before(
			r.conversations[entries[j].UserID].CreatedAt)
	})
	return entries
}

// IsVisitorOnline reports whether a visitor identity has a live connection.
func (r *Relay) IsVisitorOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, online := r.visitorConns[userID]
	return online
}

// RecruiterOnline reports whether a recruiter connection is attached.
func (r *Relay) RecruiterOnline() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recruiter != nil
}

// Stats reports relay counters for the health endpoint.
func (r *Relay) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recruiterOnline := 0
	if r.recruiter != nil {
		recruiterOnline = 1
	}
	return map[string]int{
		"conversations":    len(r.conversations),
		"online_visitors":  len(r.visitorConns),
		"recruiter_online": recruiterOnline,
	}
}
