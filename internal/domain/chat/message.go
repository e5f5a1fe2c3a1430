// Package chat holds the local chat data model the synchronization client
// keeps eventually consistent with the chat service.
package chat

import "time"

// MessageType discriminates message content.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// UserSummary is the lightweight participant reference carried on messages.
type UserSummary struct {
	ID     string `json:"_id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Email  string `json:"email,omitempty"`
}

// ReplyRef is a non-owning back-reference to an earlier message. It never
// cascades: deleting the referenced message leaves the snippet in place.
type ReplyRef struct {
	ID      string `json:"_id"`
	Snippet string `json:"snippet,omitempty"`
	Sender  string `json:"sender,omitempty"`
}

// Message is one chat message. Deleted messages are tombstoned in place via
// IsDeleted rather than removed, preserving position and history.
type Message struct {
	ID             string      `json:"_id"`
	Sender         UserSummary `json:"sender"`
	Receiver       UserSummary `json:"receiver"`
	Message        string      `json:"message"`
	MessageType    MessageType `json:"messageType"`
	AttachmentURL  string      `json:"attachmentUrl,omitempty"`
	AttachmentName string      `json:"attachmentName,omitempty"`
	AttachmentSize int64       `json:"attachmentSize,omitempty"`
	IsRead         bool        `json:"isRead"`
	IsDeleted      bool        `json:"isDeleted"`
	CreatedAt      time.Time   `json:"createdAt"`
	ReadAt         *time.Time  `json:"readAt,omitempty"`
	DeletedAt      *time.Time  `json:"deletedAt,omitempty"`
	EditedAt       *time.Time  `json:"editedAt,omitempty"`
	ReplyTo        *ReplyRef   `json:"replyTo,omitempty"`
}

// Conversation is a two-party thread summary.
type Conversation struct {
	ID           string        `json:"_id"`
	Participants []UserSummary `json:"participants"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
	LastActivity time.Time     `json:"lastActivity"`
	UnreadCount  int           `json:"unreadCount"`
	IsBlocked    bool          `json:"isBlocked"`
	IsMuted      bool          `json:"isMuted"`
}

// Presence is ephemeral per-user status, never persisted.
type Presence struct {
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}
