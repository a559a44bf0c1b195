package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/orange/internal/models"
	"github.com/fentz26/orange/internal/session"
)

const (
	// DefaultClientTimeout bounds reads and quick session actions.
	DefaultClientTimeout = 10 * time.Second
	// PipelineTimeout bounds calls that plan or execute before replying.
	PipelineTimeout = 3 * time.Minute
)

// APIError is a non-2xx reply from the control API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Session *session.Snapshot
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// Client talks to a running daemon's control API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Health returns the daemon's health. The parsed body is returned with the
// error when the daemon reports itself unhealthy.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var h HealthResponse
	err := c.do(ctx, DefaultClientTimeout, http.MethodGet, "/health", nil, &h)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
		return &h, err
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) Session(ctx context.Context) (session.Snapshot, error) {
	var snap session.Snapshot
	err := c.do(ctx, DefaultClientTimeout, http.MethodGet, "/session", nil, &snap)
	return snap, err
}

func (c *Client) Begin(ctx context.Context) (session.Snapshot, error) {
	return c.action(ctx, DefaultClientTimeout, "begin", nil)
}

func (c *Client) Stop(ctx context.Context) (session.Snapshot, error) {
	return c.action(ctx, PipelineTimeout, "stop", nil)
}

func (c *Client) Confirm(ctx context.Context) (session.Snapshot, error) {
	return c.action(ctx, PipelineTimeout, "confirm", nil)
}

func (c *Client) Cancel(ctx context.Context) (session.Snapshot, error) {
	return c.action(ctx, DefaultClientTimeout, "cancel", nil)
}

func (c *Client) Reset(ctx context.Context) (session.Snapshot, error) {
	return c.action(ctx, DefaultClientTimeout, "reset", nil)
}

// Command plans text as a typed command.
func (c *Client) Command(ctx context.Context, text string) (session.Snapshot, error) {
	return c.action(ctx, PipelineTimeout, "command", commandRequest{Text: text})
}

// Transcript pushes recognized speech into the active recording.
func (c *Client) Transcript(ctx context.Context, text string, final bool) error {
	return c.do(ctx, DefaultClientTimeout, http.MethodPost, "/session/transcript", transcriptRequest{Text: text, Final: final}, nil)
}

func (c *Client) Decisions(ctx context.Context, sessionID string, limit int) ([]models.SafetyDecisionRecord, error) {
	q := url.Values{}
	if sessionID != "" {
		q.Set("session_id", sessionID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []models.SafetyDecisionRecord
	err := c.do(ctx, DefaultClientTimeout, http.MethodGet, withQuery("/decisions", q), nil, &out)
	return out, err
}

func (c *Client) Sessions(ctx context.Context, limit int) ([]models.SessionRecord, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []models.SessionRecord
	err := c.do(ctx, DefaultClientTimeout, http.MethodGet, withQuery("/sessions", q), nil, &out)
	return out, err
}

func (c *Client) SessionDetail(ctx context.Context, id string) (*SessionDetail, error) {
	var out SessionDetail
	if err := c.do(ctx, DefaultClientTimeout, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) action(ctx context.Context, timeout time.Duration, name string, body interface{}) (session.Snapshot, error) {
	var snap session.Snapshot
	err := c.do(ctx, timeout, http.MethodPost, "/session/"+name, body, &snap)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Session != nil {
		snap = *apiErr.Session
	}
	return snap, err
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var er ErrorResponse
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			apiErr.Code, apiErr.Message, apiErr.Session = er.Code, er.Error, er.Session
		}
		if out != nil && len(data) > 0 {
			json.Unmarshal(data, out)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
