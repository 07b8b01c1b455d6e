package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

const defaultTimeout = 10 * time.Second

// Client calls a scheduling backend over HTTP:
//
//	GET  {base}/availability  -> plain text
//	POST {base}/schedule      {"time": RFC3339, "text": original} -> plain text
//
// 409 and 422 responses are the backend declining the slot; their body is
// passed through to the patient.
type Client struct {
	httpClient *http.Client
	baseURL    string
	loc        *time.Location
	now        func() time.Time
	logger     *logging.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLocation sets the office time zone used to interpret time expressions.
func WithLocation(loc *time.Location) ClientOption {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithClock overrides the clock; used by tests.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs a scheduling backend client.
func NewClient(baseURL string, logger *logging.Logger, opts ...ClientOption) *Client {
	if strings.TrimSpace(baseURL) == "" {
		panic("scheduler: base url is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		loc:        time.UTC,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type scheduleRequest struct {
	Time string `json:"time"`
	Text string `json:"text"`
}

// GetAvailability returns the backend's description of open slots.
func (c *Client) GetAvailability(ctx context.Context) (string, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/availability", nil)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", c.statusError(status, "/availability", body)
	}
	return strings.TrimSpace(body), nil
}

// ScheduleAppointment parses timeText and books it. Expressions that cannot
// be parsed, or that lie in the past, are answered with a rejection message
// and a nil error without calling the backend.
func (c *Client) ScheduleAppointment(ctx context.Context, timeText string) (string, error) {
	now := c.now()
	when, err := ParseTimeExpression(timeText, now, c.loc)
	if err != nil {
		c.logger.Info("scheduler: rejected time expression", "text", timeText)
		return unrecognizedTimeReply(timeText), nil
	}
	if !when.After(now) {
		return pastTimeReply(when), nil
	}

	status, body, err := c.do(ctx, http.MethodPost, "/schedule", scheduleRequest{
		Time: when.Format(time.RFC3339),
		Text: timeText,
	})
	if err != nil {
		return "", err
	}
	switch {
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		if msg := strings.TrimSpace(body); msg != "" {
			return msg, nil
		}
		return fmt.Sprintf("Sorry, %s is not available. Ask me about availability to see open times.", when.Format(displayLayout)), nil
	case status < 200 || status > 299:
		return "", c.statusError(status, "/schedule", body)
	}
	if msg := strings.TrimSpace(body); msg != "" {
		return msg, nil
	}
	return confirmationReply(when), nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (int, string, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, "", fmt.Errorf("scheduler: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, "", fmt.Errorf("scheduler: build request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, "", ctxErr
		}
		return 0, "", errors.Join(ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", errors.Join(ErrBackendUnavailable, fmt.Errorf("read response: %w", err))
	}
	return resp.StatusCode, string(respBody), nil
}

func (c *Client) statusError(status int, path, body string) error {
	if len(body) > 300 {
		body = body[:300]
	}
	c.logger.Warn("scheduler API non-2xx response", "status", status, "path", path, "body", body)
	return fmt.Errorf("%w: %s returned %d", ErrBackendUnavailable, path, status)
}
