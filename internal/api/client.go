// Package api is the REST collaborator client for the translation service.
// It covers session bookkeeping (start, end, summary) and the read-only
// service endpoints (health, active sessions, language catalog).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dbrezina/medinter/internal/protocol"
)

// Started is the response to a successful session creation.
type Started struct {
	SessionID  string `json:"session_id"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Mode       string `json:"mode"`
}

// Health is the service health report.
type Health struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	DailySessions  int    `json:"daily_sessions"`
	MockMode       bool   `json:"mock_mode"`
}

// Language is one entry of the service language catalog.
type Language struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Native string `json:"native"`
}

// ActiveSession is one live session as reported by the service.
type ActiveSession struct {
	SessionID       string           `json:"session_id"`
	SourceLang      string           `json:"source_lang"`
	TargetLang      string           `json:"target_lang"`
	ExchangeCount   int              `json:"exchange_count"`
	DurationSeconds float64          `json:"duration_seconds"`
	CurrentSpeaker  protocol.Speaker `json:"current_speaker"`
	Mode            string           `json:"mode"`
}

// Client talks to the service REST API. The zero value is not usable; use New.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a client for the given base URL, e.g. http://localhost:3000.
// The underlying HTTP client pools connections; all requests target one host.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   5 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

// StartSession creates a session. Failure surfaces as an error only; the
// caller decides what to tell the user, no client state is involved.
func (c *Client) StartSession(ctx context.Context, source, target, mode string) (Started, error) {
	var out Started
	body := map[string]string{
		"source_lang": source,
		"target_lang": target,
		"mode":        mode,
	}
	err := c.do(ctx, http.MethodPost, "/api/session/start", body, &out)
	return out, err
}

// EndSession terminates a session and returns its summary.
func (c *Client) EndSession(ctx context.Context, sessionID string) (protocol.Summary, error) {
	var out protocol.Summary
	body := map[string]string{"session_id": sessionID}
	err := c.do(ctx, http.MethodPost, "/api/session/end", body, &out)
	return out, err
}

// Summary fetches the redacted summary of an already ended session.
func (c *Client) Summary(ctx context.Context, sessionID string) (protocol.Summary, error) {
	var out protocol.Summary
	err := c.do(ctx, http.MethodGet, "/api/session/"+sessionID+"/summary", nil, &out)
	return out, err
}

// Health reports service health and session counters.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &out)
	return out, err
}

// ActiveSessions lists live sessions.
func (c *Client) ActiveSessions(ctx context.Context) ([]ActiveSession, error) {
	var out struct {
		Sessions []ActiveSession `json:"sessions"`
	}
	err := c.do(ctx, http.MethodGet, "/api/sessions/active", nil, &out)
	return out.Sessions, err
}

// Languages fetches the supported language catalog.
func (c *Client) Languages(ctx context.Context) ([]Language, error) {
	var out struct {
		Languages []Language `json:"languages"`
	}
	err := c.do(ctx, http.MethodGet, "/api/languages", nil, &out)
	return out.Languages, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
