// Package push provides a client for delivering push notifications
// through an HTTP push gateway.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aliskhannn/notify-scheduler/pkg/delivery"
)

// Client represents a push gateway client.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a push Client for the gateway at baseURL,
// authenticating with the given bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// sendRequest is the payload the gateway expects.
type sendRequest struct {
	DeviceToken string `json:"device_token"` // recipient device token
	Message     string `json:"message"`      // notification text
}

// Deliver sends a push notification to the given device token.
//
// Gateway responses are classified: timeouts, throttling and server
// errors are transient; any other rejection means the request itself
// is bad and is returned as permanent.
func (c *Client) Deliver(ctx context.Context, to, content string) error {
	body, err := json.Marshal(sendRequest{DeviceToken: to, Message: content})
	if err != nil {
		return delivery.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return delivery.Permanent(fmt.Errorf("build request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("push gateway error: %s", resp.Status)
	default:
		return delivery.Permanent(fmt.Errorf("push gateway rejected request: %s", resp.Status))
	}
}
