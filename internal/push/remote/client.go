// Package remote talks to the subscription endpoint of a storyshelf server.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
	"github.com/MrSnakeDoc/storyshelf/internal/utils"
)

// maxResponseBody caps how much of a response is read.
const maxResponseBody = 64 << 10

// Response is the body of every subscription endpoint reply.
type Response struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Client implements push.Remote over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Subscribe registers sub with the server.
func (c *Client) Subscribe(ctx context.Context, sub domain.Subscription) error {
	return c.post(ctx, "/subscribe", sub)
}

// Unsubscribe removes endpoint from the server.
func (c *Client) Unsubscribe(ctx context.Context, endpoint string) error {
	return c.post(ctx, "/unsubscribe", struct {
		Endpoint string `json:"endpoint"`
	}{Endpoint: endpoint})
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrRemoteRejected, path, err)
	}
	defer utils.Close(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%w: %s: read response: %w", domain.ErrRemoteRejected, path, err)
	}

	var out Response
	decodeErr := json.Unmarshal(data, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := out.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: %s: status %d: %s", domain.ErrRemoteRejected, path, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: %s: decode response: %w", domain.ErrRemoteRejected, path, decodeErr)
	}
	if !out.OK {
		return fmt.Errorf("%w: %s: %s", domain.ErrRemoteRejected, path, out.Message)
	}
	return nil
}
