package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smartsite/edge-gateway/internal/domain/chat"
	"smartsite/edge-gateway/internal/infrastructure/chatapi"
)

// fakeConn is a scripted transport: the test feeds inbound frames and
// observes everything the client writes.
type fakeConn struct {
	inbound chan []byte
	writes  chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		writes:  make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbound:
		return 1, data, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	c.writes <- data
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// nextFrame returns the next frame the client wrote, skipping nothing.
func (c *fakeConn) nextFrame(t *testing.T) frame {
	t.Helper()
	select {
	case data := <-c.writes:
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("unmarshal written frame: %v", err)
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame written")
		return frame{}
	}
}

// ackFrame feeds an acknowledgement for the given correlation id.
func (c *fakeConn) ackFrame(t *testing.T, event, id string, success bool, errMsg string, data any) {
	t.Helper()
	payload, err := json.Marshal(ackPayload{Success: success, Error: errMsg, Data: mustJSON(t, data)})
	if err != nil {
		t.Fatalf("marshal ack: %v", err)
	}
	raw, err := json.Marshal(frame{Event: event, ID: id, Data: payload})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	c.inbound <- raw
}

// eventFrame feeds a server-pushed event with no correlation id.
func (c *fakeConn) eventFrame(t *testing.T, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(frame{Event: event, Data: mustJSON(t, data)})
	if err != nil {
		t.Fatalf("marshal event frame: %v", err)
	}
	c.inbound <- raw
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func newTestClient(t *testing.T, conn *fakeConn, rest *chatapi.Client) *Client {
	t.Helper()
	client := NewClient(Config{
		URL:           "ws://chat.test/socket",
		UserID:        "self",
		Tokens:        StaticTokenSource("test-token"),
		REST:          rest,
		Logger:        zerolog.Nop(),
		AckTimeout:    200 * time.Millisecond,
		SearchTimeout: 200 * time.Millisecond,
		Dialer: func(context.Context, string, http.Header) (Conn, error) {
			return conn, nil
		},
	})
	t.Cleanup(client.Disconnect)
	return client
}

func connect(t *testing.T, client *Client, conn *fakeConn) {
	t.Helper()
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	// Connect announces the user's personal room first.
	if f := conn.nextFrame(t); f.Event != "join_user_room" {
		t.Fatalf("first frame = %q, want join_user_room", f.Event)
	}
}

func TestClient_SendBeforeConnectIsNotAnError(t *testing.T) {
	client := newTestClient(t, newFakeConn(), nil)

	sent, err := client.SendMessage(context.Background(), "peer", "hello", chat.MessageText, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent {
		t.Fatal("sent = true while disconnected")
	}
}

func TestClient_SendMessageAckRoundTrip(t *testing.T) {
	conn := newFakeConn()
	client := newTestClient(t, conn, nil)
	connect(t, client, conn)

	type result struct {
		sent bool
		err  error
	}
	done := make(chan result, 1)
	go func() {
		sent, err := client.SendMessage(context.Background(), "peer", "hello", chat.MessageText, nil)
		done <- result{sent, err}
	}()

	f := conn.nextFrame(t)
	if f.Event != "send_message" || f.ID == "" {
		t.Fatalf("frame = %+v, want send_message with correlation id", f)
	}
	var payload map[string]any
	if err := json.Unmarshal(f.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["receiverId"] != "peer" || payload["message"] != "hello" {
		t.Fatalf("payload = %v", payload)
	}

	conn.ackFrame(t, f.Event, f.ID, true, "", nil)

	r := <-done
	if r.err != nil || !r.sent {
		t.Fatalf("result = %+v", r)
	}

	// No optimistic local insert: the store stays empty until the echo.
	if got := client.Messages("peer"); len(got) != 0 {
		t.Fatalf("messages = %d, want 0 before server echo", len(got))
	}

	conn.eventFrame(t, chat.EventNewMessage, chat.Message{
		ID:       "m1",
		Sender:   chat.UserSummary{ID: "self"},
		Receiver: chat.UserSummary{ID: "peer"},
		Message:  "hello",
	})
	waitFor(t, func() bool { return len(client.Messages("peer")) == 1 })
}

func TestClient_SendMessageRejectedAck(t *testing.T) {
	conn := newFakeConn()
	client := newTestClient(t, conn, nil)
	connect(t, client, conn)

	done := make(chan error, 1)
	go func() {
		_, err := client.SendMessage(context.Background(), "peer", "hello", chat.MessageText, nil)
		done <- err
	}()

	f := conn.nextFrame(t)
	conn.ackFrame(t, f.Event, f.ID, false, "receiver has blocked you", nil)

	err := <-done
	if err == nil || err.Error() != "receiver has blocked you" {
		t.Fatalf("err = %v", err)
	}
}

func TestClient_RequestTimesOutWithoutAck(t *testing.T) {
	conn := newFakeConn()
	client := newTestClient(t, conn, nil)
	connect(t, client, conn)

	start := time.Now()
	err := client.JoinConversation(context.Background(), "peer")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout took %v", elapsed)
	}
	conn.nextFrame(t) // drain the join frame
}

func TestClient_InboundEventsUpdateStore(t *testing.T) {
	conn := newFakeConn()
	client := newTestClient(t, conn, nil)
	connect(t, client, conn)

	conn.eventFrame(t, chat.EventNewMessage, chat.Message{
		ID:       "m1",
		Sender:   chat.UserSummary{ID: "peer"},
		Receiver: chat.UserSummary{ID: "self"},
		Message:  "original",
	})
	waitFor(t, func() bool { return len(client.Messages("peer")) == 1 })

	conn.eventFrame(t, chat.EventMessageEdited, chat.Message{
		ID:       "m1",
		Sender:   chat.UserSummary{ID: "peer"},
		Receiver: chat.UserSummary{ID: "self"},
		Message:  "edited",
	})
	waitFor(t, func() bool {
		msgs := client.Messages("peer")
		return len(msgs) == 1 && msgs[0].Message == "edited"
	})

	conn.eventFrame(t, chat.EventMessageDeleted, map[string]any{
		"messageId": "m1",
		"deletedAt": time.Now().UTC().Format(time.RFC3339),
	})
	waitFor(t, func() bool {
		msgs := client.Messages("peer")
		return len(msgs) == 1 && msgs[0].IsDeleted
	})
}

func TestClient_TypingEventsTrackPresence(t *testing.T) {
	conn := newFakeConn()
	client := newTestClient(t, conn, nil)
	connect(t, client, conn)

	conn.eventFrame(t, chat.EventTypingStarted, map[string]string{"userId": "peer"})
	waitFor(t, func() bool {
		p, ok := client.PresenceOf("peer")
		return ok && p.Status == "typing"
	})

	conn.eventFrame(t, chat.EventTypingStopped, map[string]string{"userId": "peer"})
	waitFor(t, func() bool {
		p, ok := client.PresenceOf("peer")
		return ok && p.Status == "online"
	})
}

func TestClient_ReconnectExhaustionIsTerminal(t *testing.T) {
	var dials atomic.Int32
	client := NewClient(Config{
		URL:                  "ws://chat.test/socket",
		UserID:               "self",
		Tokens:               StaticTokenSource("test-token"),
		Logger:               zerolog.Nop(),
		MaxReconnectAttempts: 3,
		BaseReconnectDelay:   time.Millisecond,
		MaxReconnectDelay:    2 * time.Millisecond,
		Dialer: func(context.Context, string, http.Header) (Conn, error) {
			dials.Add(1)
			return nil, errors.New("connection refused")
		},
	})
	t.Cleanup(client.Disconnect)

	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}

	waitFor(t, func() bool { return client.State() == StateFailed })
	// Initial dial plus three scheduled retries.
	if got := dials.Load(); got != 4 {
		t.Fatalf("dials = %d, want 4", got)
	}
}

func TestClient_ReconnectAfterReadFailure(t *testing.T) {
	conns := make(chan *fakeConn, 2)
	first := newFakeConn()
	second := newFakeConn()
	conns <- first
	conns <- second

	client := NewClient(Config{
		URL:                "ws://chat.test/socket",
		UserID:             "self",
		Tokens:             StaticTokenSource("test-token"),
		Logger:             zerolog.Nop(),
		AckTimeout:         200 * time.Millisecond,
		BaseReconnectDelay: time.Millisecond,
		Dialer: func(context.Context, string, http.Header) (Conn, error) {
			return <-conns, nil
		},
	})
	t.Cleanup(client.Disconnect)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	first.nextFrame(t) // join_user_room

	// Seed state, then kill the transport.
	first.eventFrame(t, chat.EventNewMessage, chat.Message{
		ID:       "m1",
		Sender:   chat.UserSummary{ID: "peer"},
		Receiver: chat.UserSummary{ID: "self"},
		Message:  "before the drop",
	})
	waitFor(t, func() bool { return len(client.Messages("peer")) == 1 })
	first.Close()

	waitFor(t, func() bool { return client.State() == StateConnected })
	if f := second.nextFrame(t); f.Event != "join_user_room" {
		t.Fatalf("frame after reconnect = %q, want join_user_room", f.Event)
	}

	// The local store survives the reconnect.
	if got := len(client.Messages("peer")); got != 1 {
		t.Fatalf("messages after reconnect = %d, want 1", got)
	}
}

func TestClient_DisconnectCancelsReconnect(t *testing.T) {
	dials := 0
	client := NewClient(Config{
		URL:                "ws://chat.test/socket",
		UserID:             "self",
		Tokens:             StaticTokenSource("test-token"),
		Logger:             zerolog.Nop(),
		BaseReconnectDelay: 50 * time.Millisecond,
		Dialer: func(context.Context, string, http.Header) (Conn, error) {
			dials++
			return nil, errors.New("connection refused")
		},
	})

	client.Connect(context.Background())
	client.Disconnect()

	time.Sleep(150 * time.Millisecond)
	if dials != 1 {
		t.Fatalf("dials = %d, want 1 (reconnect timer cancelled)", dials)
	}
	if client.State() != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", client.State())
	}
}

func TestClient_GetConversationReplacesBucket(t *testing.T) {
	conn := newFakeConn()
	client := newTestClient(t, conn, nil)
	connect(t, client, conn)

	type result struct {
		msgs []chat.Message
		err  error
	}
	done := make(chan result, 1)
	go func() {
		msgs, err := client.GetConversation(context.Background(), "peer", 1, 50)
		done <- result{msgs, err}
	}()

	f := conn.nextFrame(t)
	if f.Event != "get_conversation_history" {
		t.Fatalf("frame = %q", f.Event)
	}
	conn.ackFrame(t, f.Event, f.ID, true, "", []chat.Message{
		{ID: "m1", Sender: chat.UserSummary{ID: "peer"}, Receiver: chat.UserSummary{ID: "self"}, Message: "hi"},
	})

	r := <-done
	if r.err != nil || len(r.msgs) != 1 {
		t.Fatalf("result = %+v", r)
	}
	if got := client.Messages("peer"); len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("local bucket = %+v", got)
	}
}

func TestClient_SearchContactsNeverErrors(t *testing.T) {
	// Disconnected: failure resolves inside the result.
	client := newTestClient(t, newFakeConn(), nil)
	res := client.SearchContacts(context.Background(), "ali", 10)
	if res.Success {
		t.Fatal("search succeeded while disconnected")
	}
	if res.Error == "" {
		t.Fatal("expected inline error message")
	}

	// Connected: results come back through the ack.
	conn := newFakeConn()
	client = newTestClient(t, conn, nil)
	connect(t, client, conn)

	done := make(chan SearchResult, 1)
	go func() { done <- client.SearchContacts(context.Background(), "ali", 10) }()

	f := conn.nextFrame(t)
	conn.ackFrame(t, f.Event, f.ID, true, "", []chat.UserSummary{{ID: "u1", Name: "Alice"}})

	res = <-done
	if !res.Success || len(res.Contacts) != 1 || res.Contacts[0].Name != "Alice" {
		t.Fatalf("result = %+v", res)
	}
}

func TestClient_DeleteMessageRESTFirst(t *testing.T) {
	var restCalls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		restCalls = append(restCalls, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	conn := newFakeConn()
	client := newTestClient(t, conn, chatapi.NewClient(server.URL, nil))
	connect(t, client, conn)

	if err := client.DeleteMessage(context.Background(), "m1"); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if len(restCalls) != 1 || restCalls[0] != "DELETE /api/v1/messages/m1" {
		t.Fatalf("rest calls = %v", restCalls)
	}
	if f := conn.nextFrame(t); f.Event != "delete_message" {
		t.Fatalf("frame = %q, want delete_message after REST success", f.Event)
	}
}

func TestClient_DeleteMessageRESTFailureSkipsSocket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"not your message"}`)
	}))
	defer server.Close()

	conn := newFakeConn()
	client := newTestClient(t, conn, chatapi.NewClient(server.URL, nil))
	connect(t, client, conn)

	if err := client.DeleteMessage(context.Background(), "m1"); err == nil {
		t.Fatal("expected REST failure")
	}
	select {
	case data := <-conn.writes:
		t.Fatalf("socket frame written after REST failure: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_EditMessageRESTFirst(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			json.NewDecoder(r.Body).Decode(&gotBody)
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	conn := newFakeConn()
	client := newTestClient(t, conn, chatapi.NewClient(server.URL, nil))
	connect(t, client, conn)

	if err := client.EditMessage(context.Background(), "m1", "better wording"); err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if gotBody["message"] != "better wording" {
		t.Fatalf("REST body = %v", gotBody)
	}
	if f := conn.nextFrame(t); f.Event != "edit_message" {
		t.Fatalf("frame = %q, want edit_message", f.Event)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
