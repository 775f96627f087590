package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"resumehub/internal/chat"
	"resumehub/internal/config"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		// The chat widget is embedded on arbitrary public resume pages.
		return true
	},
}

// Handler binds the WebSocket connection lifecycle to the chat relay: it
// upgrades requests, decodes event envelopes, validates payloads at the
// boundary and guarantees exactly one Leave per connection.
type Handler struct {
	relay *chat.Relay
	cfg   *config.WebSocketConfig
}

func NewHandler(relay *chat.Relay, cfg *config.WebSocketConfig) *Handler {
	return &Handler{relay: relay, cfg: cfg}
}

// HandleChat upgrades the request and serves the connection until it drops.
// No identity is attached until the client sends a join or login event.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	wsConn := NewConnection(conn, h.cfg.BufferSize, h.cfg.WriteTimeout)
	go h.serve(wsConn)
}

// serve runs the read pump with heartbeat monitoring. The deferred Leave is
// the transport-level guarantee that presence cleanup runs exactly once per
// connection, however the socket terminates.
func (h *Handler) serve(c *Connection) {
	defer func() {
		if err := h.relay.Leave(c); err != nil && err != chat.ErrRelayNotRunning {
			log.Warn().Err(err).Msg("leave failed on disconnect")
		}
		_ = c.Close()
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.cfg.WriteTimeout)
				if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-c.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.handleFrame(c, data)
	}
}

// handleFrame decodes and validates one inbound envelope. Malformed payloads
// are rejected here and never reach the relay.
func (h *Handler) handleFrame(c *Connection, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.reject(c, "malformed event envelope")
		return
	}

	switch env.Event {
	case chat.EventUserJoin:
		var p chat.JoinPayload
		if err := decode(env.Data, &p); err != nil {
			h.reject(c, "malformed join payload")
			return
		}
		h.forward(c, env.Event, h.relay.Join(c, p))

	case chat.EventRecruiterLogin:
		var p chat.LoginPayload
		if err := decode(env.Data, &p); err != nil || p.Validate() != nil {
			h.reject(c, "malformed login payload")
			return
		}
		h.forward(c, env.Event, h.relay.Login(c, p))

	case chat.EventUserMessage:
		var p chat.UserMessagePayload
		if err := decode(env.Data, &p); err != nil {
			h.reject(c, "malformed message payload")
			return
		}
		if err := p.Validate(); err != nil {
			h.reject(c, err.Error())
			return
		}
		h.forward(c, env.Event, h.relay.VisitorMessage(c, p))

	case chat.EventRecruiterReply:
		var p chat.RecruiterReplyPayload
		if err := decode(env.Data, &p); err != nil {
			h.reject(c, "malformed reply payload")
			return
		}
		if err := p.Validate(); err != nil {
			h.reject(c, err.Error())
			return
		}
		h.forward(c, env.Event, h.relay.RecruiterReply(c, p))

	default:
		h.reject(c, "unknown event: "+env.Event)
	}
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// forward reports relay backpressure to the client instead of dropping the
// event silently.
func (h *Handler) forward(c *Connection, event string, err error) {
	if err != nil {
		log.Warn().Err(err).Str("event", event).Msg("relay rejected event")
		h.reject(c, "server busy, try again")
	}
}

func (h *Handler) reject(c *Connection, reason string) {
	if err := c.Send(chat.EventMessageRejected, chat.MessageRejectedPayload{Message: reason}); err != nil {
		log.Warn().Err(err).Msg("failed to send rejection")
	}
}
