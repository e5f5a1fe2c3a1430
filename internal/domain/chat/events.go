package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound event names pushed by the chat service.
const (
	EventNewMessage          = "new_message"
	EventMessagesRead        = "messages_read"
	EventMessageDeleted      = "message_deleted"
	EventMessageEdited       = "message_edited"
	EventConversationUpdated = "conversation_updated"
	EventTypingStarted       = "typing_started"
	EventTypingStopped       = "typing_stopped"
)

// Event is the closed set of server-pushed events. Each kind is its own
// struct so the client dispatches with an exhaustive type switch instead of
// string-keyed handlers.
type Event interface {
	Kind() string
}

// NewMessageEvent carries the authoritative copy of a message, including the
// echo of the local user's own sends.
type NewMessageEvent struct {
	Message Message
}

func (NewMessageEvent) Kind() string { return EventNewMessage }

// MessagesReadEvent marks the messages from SenderID to ReceiverID read.
type MessagesReadEvent struct {
	SenderID   string    `json:"sender"`
	ReceiverID string    `json:"receiver"`
	ReadAt     time.Time `json:"readAt"`
}

func (MessagesReadEvent) Kind() string { return EventMessagesRead }

// MessageDeletedEvent tombstones a message by id. It carries no conversation
// key, forcing a scan across all buckets.
type MessageDeletedEvent struct {
	MessageID string    `json:"messageId"`
	DeletedAt time.Time `json:"deletedAt"`
}

func (MessageDeletedEvent) Kind() string { return EventMessageDeleted }

// MessageEditedEvent replaces a message in place.
type MessageEditedEvent struct {
	Message Message
}

func (MessageEditedEvent) Kind() string { return EventMessageEdited }

// ConversationUpdatedEvent invalidates the conversation list; the client
// re-fetches rather than patching locally.
type ConversationUpdatedEvent struct {
	ConversationID string `json:"conversationId"`
}

func (ConversationUpdatedEvent) Kind() string { return EventConversationUpdated }

// TypingStartedEvent and TypingStoppedEvent are informational only and never
// touch message history.
type TypingStartedEvent struct {
	UserID string `json:"userId"`
}

func (TypingStartedEvent) Kind() string { return EventTypingStarted }

type TypingStoppedEvent struct {
	UserID string `json:"userId"`
}

func (TypingStoppedEvent) Kind() string { return EventTypingStopped }

// DecodeEvent maps a wire event name and payload onto the closed union.
func DecodeEvent(name string, data json.RawMessage) (Event, error) {
	switch name {
	case EventNewMessage:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return NewMessageEvent{Message: msg}, nil
	case EventMessagesRead:
		var ev MessagesReadEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ev, nil
	case EventMessageDeleted:
		var ev MessageDeletedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ev, nil
	case EventMessageEdited:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return MessageEditedEvent{Message: msg}, nil
	case EventConversationUpdated:
		var ev ConversationUpdatedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ev, nil
	case EventTypingStarted:
		var ev TypingStartedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ev, nil
	case EventTypingStopped:
		var ev TypingStoppedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event %q", name)
	}
}
