package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"smartsite/edge-gateway/internal/domain/chat"
)

// Attachment carries optional file metadata on a send.
type Attachment struct {
	URL  string `json:"url,omitempty"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// SendMessage emits a message to the given receiver. It returns false when
// the socket is not connected, and does not insert the message locally: the
// authoritative copy arrives via the new_message echo the server fans back
// out, which also reaches this client's own socket.
func (c *Client) SendMessage(ctx context.Context, receiverID, content string, msgType chat.MessageType, attachment *Attachment) (bool, error) {
	if !c.IsConnected() {
		return false, nil
	}

	payload := map[string]any{
		"receiverId":  receiverID,
		"message":     content,
		"messageType": msgType,
	}
	if attachment != nil {
		payload["attachmentUrl"] = attachment.URL
		payload["attachmentName"] = attachment.Name
		payload["attachmentSize"] = attachment.Size
	}

	if _, err := c.request(ctx, "send_message", payload); err != nil {
		return false, err
	}
	return true, nil
}

// JoinConversation must succeed before a chat view is considered ready.
func (c *Client) JoinConversation(ctx context.Context, receiverID string) error {
	_, err := c.request(ctx, "join_conversation", map[string]string{"receiverId": receiverID})
	return err
}

// GetConversation fetches one history page and replaces (not merges) the
// local bucket for that conversation.
func (c *Client) GetConversation(ctx context.Context, receiverID string, page, limit int) ([]chat.Message, error) {
	ack, err := c.request(ctx, "get_conversation_history", map[string]any{
		"receiverId": receiverID,
		"page":       page,
		"limit":      limit,
	})
	if err != nil {
		return nil, err
	}

	var msgs []chat.Message
	if err := json.Unmarshal(ack.Data, &msgs); err != nil {
		return nil, fmt.Errorf("decode conversation history: %w", err)
	}

	c.store.ReplaceBucket(chat.ConversationKey(c.cfg.UserID, receiverID), msgs)
	return msgs, nil
}

// GetConversations fetches and replaces the full conversation list.
func (c *Client) GetConversations(ctx context.Context, page, limit int) ([]chat.Conversation, error) {
	ack, err := c.request(ctx, "get_conversations", map[string]any{
		"page":  page,
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}

	var convs []chat.Conversation
	if err := json.Unmarshal(ack.Data, &convs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}

	c.mu.Lock()
	c.conversations = convs
	c.mu.Unlock()
	return convs, nil
}

// MarkMessagesAsRead asks the server to mark the sender's messages read.
// The local store is updated only when the messages_read event comes back,
// not here.
func (c *Client) MarkMessagesAsRead(ctx context.Context, senderID string) error {
	_, err := c.request(ctx, "mark_messages_read", map[string]string{"senderId": senderID})
	return err
}

// SearchResult is how contact search resolves; it never returns an error to
// the caller, timeouts included.
type SearchResult struct {
	Success  bool
	Contacts []chat.UserSummary
	Error    string
}

// SearchContacts runs a contact search with its own client-side timeout,
// independent of transport-level timeouts.
func (c *Client) SearchContacts(ctx context.Context, query string, limit int) SearchResult {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SearchTimeout)
	defer cancel()

	ack, err := c.request(ctx, "search_contacts", map[string]any{
		"query": query,
		"limit": limit,
	})
	if err != nil {
		return SearchResult{Success: false, Error: err.Error()}
	}

	var contacts []chat.UserSummary
	if err := json.Unmarshal(ack.Data, &contacts); err != nil {
		return SearchResult{Success: false, Error: err.Error()}
	}
	return SearchResult{Success: true, Contacts: contacts}
}

// DeleteMessage deletes via REST first for durability, then notifies other
// participants over the socket. A REST failure aborts before the socket
// emission; the local tombstone arrives via the message_deleted event.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	if err := c.cfg.REST.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	c.emit("delete_message", map[string]string{"messageId": messageID})
	return nil
}

// EditMessage edits via REST first, then notifies over the socket. The local
// replacement arrives via the message_edited event.
func (c *Client) EditMessage(ctx context.Context, messageID, content string) error {
	if err := c.cfg.REST.EditMessage(ctx, messageID, content); err != nil {
		return err
	}
	c.emit("edit_message", map[string]string{
		"messageId": messageID,
		"message":   content,
	})
	return nil
}

// BlockUser blocks via REST, then notifies over the socket.
func (c *Client) BlockUser(ctx context.Context, userID string) error {
	if err := c.cfg.REST.BlockUser(ctx, userID); err != nil {
		return err
	}
	c.emit("block_user", map[string]string{"userId": userID})
	return nil
}

// UnblockUser unblocks via REST, then notifies over the socket.
func (c *Client) UnblockUser(ctx context.Context, userID string) error {
	if err := c.cfg.REST.UnblockUser(ctx, userID); err != nil {
		return err
	}
	c.emit("unblock_user", map[string]string{"userId": userID})
	return nil
}

// TypingStart signals the receiver that the local user is typing.
func (c *Client) TypingStart(receiverID string) {
	c.emit("typing_start", map[string]string{"receiverId": receiverID})
}

// TypingStop signals the receiver that the local user stopped typing.
func (c *Client) TypingStop(receiverID string) {
	c.emit("typing_stop", map[string]string{"receiverId": receiverID})
}

// Messages returns the local copy of the conversation with the given peer.
func (c *Client) Messages(peerID string) []chat.Message {
	return c.store.Messages(chat.ConversationKey(c.cfg.UserID, peerID))
}

// Conversations returns the last fetched conversation list.
func (c *Client) Conversations() []chat.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Conversation(nil), c.conversations...)
}

// PresenceOf returns the last known presence for a user.
func (c *Client) PresenceOf(userID string) (chat.Presence, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.presence[userID]
	return p, ok
}

// UnreadCount proxies the REST unread counter.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.cfg.REST.UnreadCount(ctx)
}
