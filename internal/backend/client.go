// Package backend is the HTTP client for the gesture backend: template
// catalog, window matching, action execution and the recording-state flag.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/landmark"
)

var (
	// ErrUnauthorized is returned when the backend rejects the bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedResponse is returned when a response body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

const maxErrorBody = 4096

// Client talks to the gesture backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new backend client. A zero timeout defaults to 10s.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Health checks that the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// ListGestures returns the stored gesture templates.
func (c *Client) ListGestures(ctx context.Context) ([]GestureInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/gestures", nil)
	if err != nil {
		return nil, fmt.Errorf("list gestures request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var list GestureList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return list.Gestures, nil
}

// Match submits a window of frames and returns the backend's verdict.
func (c *Client) Match(ctx context.Context, frames []landmark.Frame) (MatchResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/gestures/match", MatchRequest{Frames: frames})
	if err != nil {
		return MatchResult{}, fmt.Errorf("match request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return MatchResult{}, statusError(resp)
	}

	var result MatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return MatchResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if result.Matched && result.Gesture == nil {
		return MatchResult{}, fmt.Errorf("%w: matched without gesture", ErrMalformedResponse)
	}
	return result, nil
}

// Execute runs the action bound to a gesture. Action failures reported by
// the backend come back as a result with Success false and a nil error;
// the error is reserved for transport and decoding problems.
func (c *Client) Execute(ctx context.Context, gestureID string) (ExecuteResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/gestures/"+url.PathEscape(gestureID)+"/execute", nil)
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("execute request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("read execute response: %w", err)
	}

	var result ExecuteResult
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode >= 400 {
			return ExecuteResult{Error: fmt.Sprintf("backend returned status %d", resp.StatusCode)}, nil
		}
		return ExecuteResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.StatusCode >= 400 {
		result.Success = false
		if result.Error == "" {
			result.Error = fmt.Sprintf("backend returned status %d", resp.StatusCode)
		}
	}
	return result, nil
}

// SetRecordingState tells the backend whether a gesture is being authored.
func (c *Client) SetRecordingState(ctx context.Context, recording bool) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/recording-state", RecordingStateRequest{IsRecording: recording})
	if err != nil {
		return fmt.Errorf("recording state request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 300:
		return statusError(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, msg)
}
