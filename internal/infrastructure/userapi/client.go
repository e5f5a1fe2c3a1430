// Package userapi is the REST collaborator for backend profile checks.
package userapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Client queries the backend user API. It implements session.ProfileChecker.
type Client struct {
	httpClient *resty.Client
	logger     zerolog.Logger
}

// NewClient constructs the user API client.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		logger: logger,
	}
}

// Exists reports whether the authenticated user already has a backend
// profile. 200 means yes, 404 means no. Any other status is ambiguous and
// treated as "assume exists" so an intermittent backend cannot bounce an
// onboarded user back into onboarding.
func (c *Client) Exists(ctx context.Context, userID string) (bool, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/api/v2/desktop/user/getPrivyUser/%s", userID))
	if err != nil {
		return false, fmt.Errorf("profile check: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		c.logger.Warn().
			Int("status", resp.StatusCode()).
			Str("user_id", userID).
			Msg("ambiguous profile check response, assuming profile exists")
		return true, nil
	}
}
