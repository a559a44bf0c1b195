package planner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fentz26/orange/internal/logging"
	"github.com/fentz26/orange/internal/models"
)

// DefaultTimeout bounds non-streaming requests.
const DefaultTimeout = 30 * time.Second

// Client is the HTTP implementation of Service.
type Client struct {
	baseURL string
	http    *http.Client
	// stream has no overall timeout; streams end with their context.
	stream *http.Client
}

var _ Service = (*Client)(nil)

// NewClient creates a client for the planner at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		stream:  &http.Client{},
	}
}

func (c *Client) Plan(ctx context.Context, req models.PlanRequest) (models.ActionPlan, error) {
	var plan models.ActionPlan
	err := c.do(ctx, http.MethodPost, "/v1/plan", req, &plan, "Planning request failed")
	return plan, err
}

func (c *Client) Verify(ctx context.Context, req models.VerifyRequest) (models.VerifyResponse, error) {
	var resp models.VerifyResponse
	err := c.do(ctx, http.MethodPost, "/v1/verify", req, &resp, "Verification request failed")
	return resp, err
}

func (c *Client) Telemetry(ctx context.Context, ev models.TelemetryEvent) error {
	return c.do(ctx, http.MethodPost, "/v1/telemetry", ev, nil, "Telemetry upload failed")
}

func (c *Client) Simulate(ctx context.Context, req models.PlanSimulationRequest) (models.PlanSimulationResponse, error) {
	var resp models.PlanSimulationResponse
	err := c.do(ctx, http.MethodPost, "/v1/plan/simulate", req, &resp, "Plan simulation failed")
	return resp, err
}

func (c *Client) Models(ctx context.Context) (models.ModelsResponse, error) {
	var resp models.ModelsResponse
	err := c.do(ctx, http.MethodGet, "/v1/models", nil, &resp, "Failed to fetch models")
	return resp, err
}

func (c *Client) ProviderStatus(ctx context.Context) (models.ProviderStatus, error) {
	var resp models.ProviderStatus
	err := c.do(ctx, http.MethodGet, "/v1/provider/status", nil, &resp, "Failed to fetch provider status")
	return resp, err
}

func (c *Client) ValidateProvider(ctx context.Context, req models.ProviderValidateRequest) (models.ProviderValidateResponse, error) {
	var resp models.ProviderValidateResponse
	err := c.do(ctx, http.MethodPost, "/v1/provider/validate", req, &resp, "Provider validation failed")
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, failure string) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("planner request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading planner response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseDetail(resp.StatusCode, data, failure)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding planner response: %w", err)
	}
	return nil
}

// StreamEvents implements Service using server-sent events.
func (c *Client) StreamEvents(ctx context.Context, sessionID string) (<-chan models.StreamEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/events/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening event stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, parseDetail(resp.StatusCode, data, "Event stream unavailable")
	}

	events := make(chan models.StreamEvent, 16)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			var ev models.StreamEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				logging.Debug("skipping malformed planner event", "error", err)
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			logging.Debug("planner event stream ended", "session_id", sessionID, "error", err)
		}
	}()
	return events, nil
}
