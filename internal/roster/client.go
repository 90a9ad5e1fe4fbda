// Package roster talks to the external agent roster provider. The provider
// owns the authoritative list of agent definitions; this system only reads
// it and passes session credentials through.
package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Entry is one agent definition as the provider returns it. Raw keeps the
// full object because image URLs arrive under provider-specific keys that
// the publish flow probes in a fixed order.
type Entry struct {
	ID           string
	Name         string
	SystemPrompt string
	Raw          map[string]interface{}
}

// UnmarshalJSON captures both the known fields and the raw object.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Raw = raw
	e.ID, _ = raw["id"].(string)
	e.Name, _ = raw["name"].(string)
	e.SystemPrompt, _ = raw["system_prompt"].(string)
	return nil
}

// StatusError reports a non-success response from the provider, carrying
// the upstream status code for the caller to surface.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("roster provider returned %d: %s", e.Status, e.Body)
}

// SessionToken is the short-lived credential the provider issues for
// joining a live agent session. It is opaque to this system.
type SessionToken struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id,omitempty"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

// Client calls the roster provider's HTTP API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient creates a roster client with a bounded request timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// ListAgents fetches the provider's full agent roster.
func (c *Client) ListAgents(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/agents", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.Error("Roster request failed", zap.Error(err))
		return nil, fmt.Errorf("roster request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.Logger.Error("Roster provider returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(body)))
		return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse roster response: %w", err)
	}

	c.Logger.Info("Fetched roster", zap.Int("entries", len(entries)))
	return entries, nil
}

// CreateSessionToken asks the provider to mint a session credential for the
// given agent. The token is returned as-is; establishing the actual session
// is the provider's protocol, not ours.
func (c *Client) CreateSessionToken(ctx context.Context, agentID string) (*SessionToken, error) {
	payload, err := json.Marshal(map[string]string{
		"apiKey":  c.APIKey,
		"agentId": agentID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/auto/token", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.Error("Session token request failed", zap.Error(err))
		return nil, fmt.Errorf("session token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.Logger.Error("Session token request returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(body)))
		return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var token SessionToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	return &token, nil
}

// WaitForSession polls the provider until the session is joinable, the
// timeout elapses, or ctx is cancelled. The wait is strictly bounded; there
// is no unbounded retry.
func (c *Client) WaitForSession(ctx context.Context, sessionID string, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ready, err := c.sessionReady(ctx, sessionID)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("session %s not ready: %w", sessionID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) sessionReady(ctx context.Context, sessionID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/session/"+sessionID, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Transient transport errors keep the poll going; the deadline on
		// ctx bounds the overall wait.
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.Logger.Debug("Session readiness probe failed", zap.Error(err))
		return false, nil
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusAccepted:
		return false, nil
	default:
		return false, &StatusError{Status: resp.StatusCode, Body: resp.Status}
	}
}
