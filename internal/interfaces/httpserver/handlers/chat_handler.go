package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smartsite/edge-gateway/internal/chatclient"
	"smartsite/edge-gateway/internal/domain/chat"
	"smartsite/edge-gateway/internal/interfaces/httpserver/responses"
)

// ChatHandler exposes the synchronized chat state over HTTP.
type ChatHandler struct {
	client *chatclient.Client
}

// NewChatHandler creates the handler.
func NewChatHandler(client *chatclient.Client) *ChatHandler {
	return &ChatHandler{client: client}
}

// Status reports the connection state so the UI can render a
// loading/connecting indicator.
func (h *ChatHandler) Status(c *gin.Context) {
	state := h.client.State()
	c.JSON(http.StatusOK, gin.H{
		"state":     state.String(),
		"connected": state == chatclient.StateConnected,
	})
}

// Conversations lists the conversation summaries.
func (h *ChatHandler) Conversations(c *gin.Context) {
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 20)

	convs, err := h.client.GetConversations(c.Request.Context(), page, limit)
	if err != nil {
		responses.HandleErrorWithStatus(c, http.StatusBadGateway, err, "failed to load conversations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// Messages returns one history page for the conversation with a peer.
func (h *ChatHandler) Messages(c *gin.Context) {
	peer := c.Param("peer")
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 50)

	msgs, err := h.client.GetConversation(c.Request.Context(), peer, page, limit)
	if err != nil {
		responses.HandleErrorWithStatus(c, http.StatusBadGateway, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type sendMessageRequest struct {
	ReceiverID  string                 `json:"receiverId" binding:"required"`
	Message     string                 `json:"message" binding:"required"`
	MessageType chat.MessageType       `json:"messageType"`
	Attachment  *chatclient.Attachment `json:"attachment,omitempty"`
}

// Send emits a message. The response does not include the message body: the
// authoritative copy arrives via the server echo, so callers re-read the
// conversation rather than assuming an instant local insert.
func (h *ChatHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleErrorWithStatus(c, http.StatusBadRequest, err, "invalid send request")
		return
	}
	if req.MessageType == "" {
		req.MessageType = chat.MessageText
	}

	sent, err := h.client.SendMessage(c.Request.Context(), req.ReceiverID, req.Message, req.MessageType, req.Attachment)
	if err != nil {
		responses.HandleErrorWithStatus(c, http.StatusBadGateway, err, "failed to send message")
		return
	}
	if !sent {
		responses.HandleErrorWithStatus(c, http.StatusServiceUnavailable, nil, "chat connection not ready")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

type editMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// Edit edits a message via the REST durability path; live fan-out follows
// over the socket.
func (h *ChatHandler) Edit(c *gin.Context) {
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleErrorWithStatus(c, http.StatusBadRequest, err, "invalid edit request")
		return
	}

	if err := h.client.EditMessage(c.Request.Context(), c.Param("id"), req.Message); err != nil {
		responses.HandleErrorWithStatus(c, http.StatusBadGateway, err, "failed to edit message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"edited": true})
}

// Delete deletes a message via the REST durability path.
func (h *ChatHandler) Delete(c *gin.Context) {
	if err := h.client.DeleteMessage(c.Request.Context(), c.Param("id")); err != nil {
		responses.HandleErrorWithStatus(c, http.StatusBadGateway, err, "failed to delete message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// SearchContacts runs a contact search. Failures resolve inside the result
// payload so the UI renders them inline instead of crashing.
func (h *ChatHandler) SearchContacts(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		responses.HandleErrorWithStatus(c, http.StatusBadRequest, nil, "missing query")
		return
	}
	limit := intQuery(c, "limit", 10)

	result := h.client.SearchContacts(c.Request.Context(), query, limit)
	c.JSON(http.StatusOK, gin.H{
		"success":  result.Success,
		"contacts": result.Contacts,
		"error":    result.Error,
	})
}

// Block blocks a user.
func (h *ChatHandler) Block(c *gin.Context) {
	if err := h.client.BlockUser(c.Request.Context(), c.Param("id")); err != nil {
		responses.HandleErrorWithStatus(c, http.StatusBadGateway, err, "failed to block user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked": true})
}

// Unblock unblocks a user.
func (h *ChatHandler) Unblock(c *gin.Context) {
	if err := h.client.UnblockUser(c.Request.Context(), c.Param("id")); err != nil {
		responses.HandleErrorWithStatus(c, http.StatusBadGateway, err, "failed to unblock user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"unblocked": true})
}

// UnreadCount returns the total unread count.
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	count, err := h.client.UnreadCount(c.Request.Context())
	if err != nil {
		responses.HandleErrorWithStatus(c, http.StatusBadGateway, err, "failed to load unread count")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MarkRead asks the server to mark a sender's messages read. The local
// store catches up when the messages_read event arrives.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	if err := h.client.MarkMessagesAsRead(c.Request.Context(), c.Param("peer")); err != nil {
		responses.HandleErrorWithStatus(c, http.StatusBadGateway, err, "failed to mark messages read")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"requested": true})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}
