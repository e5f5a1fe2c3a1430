// Package chatapi is the REST collaborator for chat moderation and
// durability actions. Message edits and deletes go through here first; the
// socket notification is only emitted after the REST call succeeds.
package chatapi

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// Client talks to the chat service's REST API.
type Client struct {
	httpClient *resty.Client
}

// NewClient constructs the chat REST client. The token source is consulted
// per request so a rotated credential is picked up without reconnecting.
func NewClient(baseURL string, token func() (string, error)) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")
	if token != nil {
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			tok, err := token()
			if err != nil {
				return err
			}
			req.SetHeader("Authorization", "Bearer "+tok)
			return nil
		})
	}
	return &Client{httpClient: client}
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/api/v1/messages/%s", messageID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("delete message: %s", resp.Status())
	}
	return nil
}

func (c *Client) EditMessage(ctx context.Context, messageID, content string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{"message": content}).
		Patch(fmt.Sprintf("/api/v1/messages/%s", messageID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("edit message: %s", resp.Status())
	}
	return nil
}

func (c *Client) BlockUser(ctx context.Context, userID string) error {
	return c.moderate(ctx, "block", userID)
}

func (c *Client) UnblockUser(ctx context.Context, userID string) error {
	return c.moderate(ctx, "unblock", userID)
}

func (c *Client) moderate(ctx context.Context, action, userID string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{"userId": userID}).
		Post(fmt.Sprintf("/api/v1/users/%s", action))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("%s user: %s", action, resp.Status())
	}
	return nil
}

// UnreadCount returns the total unread message count for the current user.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/api/v1/messages/unread-count")
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("unread count: %s", resp.Status())
	}
	return result.Count, nil
}
