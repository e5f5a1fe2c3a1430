// Package chatclient maintains one authenticated bidirectional connection to
// the chat service and keeps a local conversation-keyed message store
// eventually consistent with it. Server events are authoritative: local
// operations never mutate the store optimistically, mutation always arrives
// through the event path.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"smartsite/edge-gateway/internal/domain/chat"
	"smartsite/edge-gateway/internal/infrastructure/chatapi"
	"smartsite/edge-gateway/internal/infrastructure/metrics"
)

// ErrNotConnected is returned by operations that require a live socket.
var ErrNotConnected = errors.New("chat socket not connected")

// ErrReconnectExhausted marks the terminal failed state; only a fresh
// Connect after Disconnect recovers from it.
var ErrReconnectExhausted = errors.New("chat socket reconnect attempts exhausted")

// Config wires the client.
type Config struct {
	URL    string
	UserID string
	Tokens TokenSource
	REST   *chatapi.Client
	Logger zerolog.Logger

	// Optional hook invoked after each inbound event is applied.
	OnEvent func(chat.Event)

	AckTimeout           time.Duration
	SearchTimeout        time.Duration
	MaxReconnectAttempts int
	BaseReconnectDelay   time.Duration
	MaxReconnectDelay    time.Duration

	// Dialer defaults to a gorilla/websocket dialer; tests inject fakes.
	Dialer Dialer
}

func (c *Config) withDefaults() {
	if c.AckTimeout <= 0 {
		c.AckTimeout = 10 * time.Second
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 10 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.BaseReconnectDelay <= 0 {
		c.BaseReconnectDelay = time.Second
	}
	if c.MaxReconnectDelay <= 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.Dialer == nil {
		c.Dialer = websocketDialer
	}
}

// Client is the chat synchronization client. One instance per user; it
// survives reconnects and keeps the same local store across them.
type Client struct {
	cfg   Config
	store *chat.Store

	mu             sync.Mutex
	conn           Conn
	state          State
	attempts       int
	reconnectTimer *time.Timer
	closed         bool
	generation     uint64
	pending        map[string]chan ackPayload
	conversations  []chat.Conversation
	presence       map[string]chat.Presence

	writeMu sync.Mutex
}

// NewClient constructs a disconnected client.
func NewClient(cfg Config) *Client {
	cfg.withDefaults()
	return &Client{
		cfg:      cfg,
		store:    chat.NewStore(),
		state:    StateDisconnected,
		pending:  make(map[string]chan ackPayload),
		presence: make(map[string]chat.Presence),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the socket is live.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect dials the chat service and joins the user's personal room. A
// failed dial schedules a reconnect with exponential backoff.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.closed = false
	c.setStateLocked(StateConnecting)
	gen := c.generation
	c.mu.Unlock()

	token, err := c.cfg.Tokens.Token()
	if err != nil {
		c.connectFailed(gen)
		return fmt.Errorf("chat credential: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, err := c.cfg.Dialer(ctx, c.cfg.URL, header)
	if err != nil {
		c.connectFailed(gen)
		return fmt.Errorf("dial chat service: %w", err)
	}

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.attempts = 0
	c.generation++
	pumpGen := c.generation
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	go c.readPump(conn, pumpGen)

	// Join the personal room so server fan-out reaches this socket.
	c.emit("join_user_room", map[string]string{"userId": c.cfg.UserID})

	c.cfg.Logger.Info().Str("user_id", c.cfg.UserID).Msg("chat socket connected")
	return nil
}

// Disconnect tears the connection down intentionally and cancels any pending
// scheduled reconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	c.generation++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.attempts = 0
	c.setStateLocked(StateDisconnected)
	c.failPendingLocked(ErrNotConnected)
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (c *Client) connectFailed(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation {
		return
	}
	c.scheduleReconnectLocked()
}

func (c *Client) readPump(conn Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(gen, err)
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.cfg.Logger.Warn().Err(err).Msg("malformed chat frame")
			continue
		}

		if f.ID != "" {
			if c.deliverAck(f) {
				continue
			}
		}

		ev, err := chat.DecodeEvent(f.Event, f.Data)
		if err != nil {
			c.cfg.Logger.Debug().Err(err).Str("event", f.Event).Msg("ignoring chat frame")
			continue
		}
		c.apply(ev)
	}
}

func (c *Client) handleReadError(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation {
		return
	}
	c.conn = nil
	c.failPendingLocked(ErrNotConnected)
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.cfg.Logger.Info().Msg("chat socket closed by server")
	} else {
		c.cfg.Logger.Warn().Err(err).Msg("chat socket read failed")
	}
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked transitions to reconnecting and arms the backoff
// timer, or to the terminal failed state once attempts are exhausted.
func (c *Client) scheduleReconnectLocked() {
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.setStateLocked(StateFailed)
		c.cfg.Logger.Error().
			Int("attempts", c.attempts).
			Msg("chat socket reconnect attempts exhausted")
		return
	}

	delay := reconnectDelay(c.attempts, c.cfg.BaseReconnectDelay, c.cfg.MaxReconnectDelay)
	c.attempts++
	c.setStateLocked(StateReconnecting)
	metrics.ChatReconnectsTotal.Inc()
	c.cfg.Logger.Info().
		Dur("delay", delay).
		Int("attempt", c.attempts).
		Msg("scheduling chat reconnect")

	gen := c.generation
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		stale := c.closed || gen != c.generation
		if !stale {
			c.setStateLocked(StateDisconnected)
		}
		c.mu.Unlock()
		if stale {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := c.Connect(ctx); err != nil {
			c.cfg.Logger.Warn().Err(err).Msg("chat reconnect failed")
		}
	})
}

func (c *Client) setStateLocked(s State) {
	c.state = s
	metrics.ChatConnectionState.Set(float64(s))
}

func (c *Client) failPendingLocked(err error) {
	for id, ch := range c.pending {
		select {
		case ch <- ackPayload{Success: false, Error: err.Error()}:
		default:
		}
		delete(c.pending, id)
	}
}

func (c *Client) deliverAck(f frame) bool {
	c.mu.Lock()
	ch, ok := c.pending[f.ID]
	if ok {
		delete(c.pending, f.ID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	var ack ackPayload
	if err := json.Unmarshal(f.Data, &ack); err != nil {
		ack = ackPayload{Success: false, Error: "malformed acknowledgement"}
	}
	ch <- ack
	return true
}

// apply routes one inbound event onto the local store. Every branch is
// idempotent, so replays and races with local operations converge.
func (c *Client) apply(ev chat.Event) {
	metrics.ChatEventsTotal.WithLabelValues(ev.Kind()).Inc()

	switch ev := ev.(type) {
	case chat.NewMessageEvent:
		c.store.Append(ev.Message)
		c.refreshConversations()
	case chat.MessagesReadEvent:
		c.store.MarkRead(ev.SenderID, ev.ReceiverID, ev.ReadAt)
	case chat.MessageDeletedEvent:
		c.store.Tombstone(ev.MessageID, ev.DeletedAt)
	case chat.MessageEditedEvent:
		if !c.store.ApplyEdit(ev.Message) {
			c.cfg.Logger.Debug().Str("message_id", ev.Message.ID).Msg("edit for unknown message")
		}
	case chat.ConversationUpdatedEvent:
		// Re-fetch instead of patching locally; staleness is cheaper than a
		// divergent conversation list.
		c.refreshConversations()
	case chat.TypingStartedEvent:
		c.setPresence(ev.UserID, "typing")
	case chat.TypingStoppedEvent:
		c.setPresence(ev.UserID, "online")
	}

	if c.cfg.OnEvent != nil {
		c.cfg.OnEvent(ev)
	}
}

func (c *Client) setPresence(userID, status string) {
	c.mu.Lock()
	c.presence[userID] = chat.Presence{Status: status, LastSeen: time.Now()}
	c.mu.Unlock()
}

func (c *Client) refreshConversations() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.AckTimeout)
		defer cancel()
		if _, err := c.GetConversations(ctx, 1, 50); err != nil {
			c.cfg.Logger.Debug().Err(err).Msg("conversation refresh failed")
		}
	}()
}

// request performs one request/acknowledgement round trip.
func (c *Client) request(ctx context.Context, event string, payload any) (ackPayload, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return ackPayload{}, err
	}

	id := uuid.NewString()
	ch := make(chan ackPayload, 1)

	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return ackPayload{}, ErrNotConnected
	}
	conn := c.conn
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(conn, frame{Event: event, ID: id, Data: data}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ackPayload{}, err
	}

	timeout := c.cfg.AckTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack := <-ch:
		if !ack.Success {
			if ack.Error == "" {
				ack.Error = "request failed"
			}
			return ack, errors.New(ack.Error)
		}
		return ack, nil
	case <-ctx.Done():
		c.dropPending(id)
		return ackPayload{}, ctx.Err()
	case <-timer.C:
		c.dropPending(id)
		return ackPayload{}, fmt.Errorf("%s: acknowledgement timeout", event)
	}
}

func (c *Client) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// emit sends a fire-and-forget frame. Failures are logged, not surfaced;
// the authoritative state arrives via events regardless.
func (c *Client) emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	if err := c.write(conn, frame{Event: event, Data: data}); err != nil {
		c.cfg.Logger.Debug().Err(err).Str("event", event).Msg("emit failed")
	}
}

func (c *Client) write(conn Conn, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}
