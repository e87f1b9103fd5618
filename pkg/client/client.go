// Package client is the platform REST implementation of the directory
// service. It talks to the chat platform's guild API; the in-memory
// directory covers tests and local development.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/terra-clan/riddle-engine/internal/directory"
	"github.com/terra-clan/riddle-engine/internal/models"
)

// Client implements directory.Service over the platform REST API.
type Client struct {
	baseURL    string
	token      string
	guildID    string
	httpClient *http.Client

	// maxRetries bounds retry attempts on 429 and 5xx responses.
	maxRetries uint64
}

var _ directory.Service = (*Client)(nil)

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithMaxRetries sets the retry budget for transient failures.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// NewClient creates a platform client scoped to one guild.
func NewClient(baseURL, token, guildID string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		guildID: guildID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Self implements directory.Service.
func (c *Client) Self(ctx context.Context) (models.Member, error) {
	var out models.Member
	err := c.do(ctx, "GET", "/api/v1/self", nil, &out)
	return out, err
}

// Roles implements directory.Service.
func (c *Client) Roles(ctx context.Context) ([]models.Role, error) {
	var out []models.Role
	err := c.do(ctx, "GET", c.guildPath("/roles"), nil, &out)
	return out, err
}

// CreateRole implements directory.Service.
func (c *Client) CreateRole(ctx context.Context, name string, color int) (models.Role, error) {
	in := map[string]any{"name": name, "color": color}
	var out models.Role
	err := c.do(ctx, "POST", c.guildPath("/roles"), in, &out)
	return out, err
}

// RenameRole implements directory.Service.
func (c *Client) RenameRole(ctx context.Context, id, name string) error {
	in := map[string]any{"name": name}
	return c.do(ctx, "PATCH", c.guildPath("/roles/"+url.PathEscape(id)), in, nil)
}

// DeleteRole implements directory.Service.
func (c *Client) DeleteRole(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", c.guildPath("/roles/"+url.PathEscape(id)), nil, nil)
}

// Channels implements directory.Service.
func (c *Client) Channels(ctx context.Context) ([]models.Channel, error) {
	var out []models.Channel
	err := c.do(ctx, "GET", c.guildPath("/channels"), nil, &out)
	return out, err
}

// CreateChannel implements directory.Service.
func (c *Client) CreateChannel(ctx context.Context, req models.CreateChannelRequest) (models.Channel, error) {
	var out models.Channel
	err := c.do(ctx, "POST", c.guildPath("/channels"), req, &out)
	return out, err
}

// RenameChannel implements directory.Service.
func (c *Client) RenameChannel(ctx context.Context, id, name string) error {
	in := map[string]any{"name": name}
	return c.do(ctx, "PATCH", c.guildPath("/channels/"+url.PathEscape(id)), in, nil)
}

// SetChannelTopic implements directory.Service.
func (c *Client) SetChannelTopic(ctx context.Context, id, topic string) error {
	in := map[string]any{"topic": topic}
	return c.do(ctx, "PATCH", c.guildPath("/channels/"+url.PathEscape(id)), in, nil)
}

// DeleteChannel implements directory.Service.
func (c *Client) DeleteChannel(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", c.guildPath("/channels/"+url.PathEscape(id)), nil, nil)
}

// Members implements directory.Service.
func (c *Client) Members(ctx context.Context) ([]models.Member, error) {
	var out []models.Member
	err := c.do(ctx, "GET", c.guildPath("/members"), nil, &out)
	return out, err
}

// Member implements directory.Service.
func (c *Client) Member(ctx context.Context, id string) (models.Member, error) {
	var out models.Member
	err := c.do(ctx, "GET", c.guildPath("/members/"+url.PathEscape(id)), nil, &out)
	return out, err
}

// GrantRole implements directory.Service.
func (c *Client) GrantRole(ctx context.Context, memberID, roleID string) error {
	path := c.guildPath("/members/" + url.PathEscape(memberID) + "/roles/" + url.PathEscape(roleID))
	return c.do(ctx, "PUT", path, nil, nil)
}

// RevokeRole implements directory.Service.
func (c *Client) RevokeRole(ctx context.Context, memberID, roleID string) error {
	path := c.guildPath("/members/" + url.PathEscape(memberID) + "/roles/" + url.PathEscape(roleID))
	return c.do(ctx, "DELETE", path, nil, nil)
}

// History implements directory.Service. Messages come back newest first.
func (c *Client) History(ctx context.Context, channelID string, limit int) ([]models.Message, error) {
	path := "/api/v1/channels/" + url.PathEscape(channelID) + "/messages"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var out []models.Message
	err := c.do(ctx, "GET", path, nil, &out)
	return out, err
}

// Send implements directory.Service.
func (c *Client) Send(ctx context.Context, channelID, content string) (models.Message, error) {
	in := map[string]any{"content": content}
	var out models.Message
	err := c.do(ctx, "POST", "/api/v1/channels/"+url.PathEscape(channelID)+"/messages", in, &out)
	return out, err
}

// SendEmbed implements directory.Service.
func (c *Client) SendEmbed(ctx context.Context, channelID string, embed models.Embed) (models.Message, error) {
	in := map[string]any{"embed": embed}
	var out models.Message
	err := c.do(ctx, "POST", "/api/v1/channels/"+url.PathEscape(channelID)+"/messages", in, &out)
	return out, err
}

// EditMessage implements directory.Service.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	in := map[string]any{"content": content}
	path := "/api/v1/channels/" + url.PathEscape(channelID) + "/messages/" + url.PathEscape(messageID)
	return c.do(ctx, "PATCH", path, in, nil)
}

// DeleteMessage implements directory.Service.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	path := "/api/v1/channels/" + url.PathEscape(channelID) + "/messages/" + url.PathEscape(messageID)
	return c.do(ctx, "DELETE", path, nil, nil)
}

// DirectMessage implements directory.Service.
func (c *Client) DirectMessage(ctx context.Context, memberID, content string) (models.Message, error) {
	in := map[string]any{"content": content}
	var out models.Message
	err := c.do(ctx, "POST", c.guildPath("/members/"+url.PathEscape(memberID)+"/messages"), in, &out)
	return out, err
}

// React implements directory.Service.
func (c *Client) React(ctx context.Context, channelID, messageID, emoji string) error {
	path := "/api/v1/channels/" + url.PathEscape(channelID) +
		"/messages/" + url.PathEscape(messageID) +
		"/reactions/" + url.PathEscape(emoji)
	return c.do(ctx, "PUT", path, nil, nil)
}

func (c *Client) guildPath(suffix string) string {
	return "/api/v1/guilds/" + url.PathEscape(c.guildID) + suffix
}

// do performs one API call: marshal in, retry transient failures, decode
// the response envelope into out. A 404 maps to directory.ErrNotFound.
// Only idempotent methods are retried: a POST re-sent after the server
// already applied it would duplicate the created object, and a duplicate
// name poisons every later decode of that category.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	operation := func() error {
		return c.doOnce(ctx, method, path, body, out)
	}
	var bo backoff.BackOff = &backoff.StopBackOff{}
	if method != http.MethodPost {
		bo = backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries)
	}
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are retryable.
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(fmt.Errorf("%w: %s %s", directory.ErrNotFound, method, path))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	case resp.StatusCode >= 400:
		return backoff.Permanent(fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody)))
	}

	if out == nil {
		return nil
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if !result.Success {
		if result.Error != nil {
			return backoff.Permanent(fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message))
		}
		return backoff.Permanent(fmt.Errorf("API error: unknown failure"))
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to unmarshal response data: %w", err))
	}
	return nil
}
