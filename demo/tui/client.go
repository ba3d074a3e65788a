package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"catalystbot/types"
)

// APIClient is a thin HTTP client for the session API.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type startResponse struct {
	SessionID string `json:"session_id"`
	Error     string `json:"error,omitempty"`
}

type historyResponse struct {
	Events []types.ActivityEvent `json:"events"`
}

// StartSession posts a session request and returns the new id.
func (c *APIClient) StartSession(cfg types.SessionConfig) (string, error) {
	body, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Post(c.baseURL+"/api/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	defer resp.Body.Close()

	var out startResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		if out.SessionID != "" {
			return out.SessionID, fmt.Errorf("session %s failed to start: %s", out.SessionID, out.Error)
		}
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, out.Error)
	}
	return out.SessionID, nil
}

// GetSession fetches a session snapshot.
func (c *APIClient) GetSession(id string) (*types.AnalysisSession, error) {
	var s types.AnalysisSession
	if err := c.getJSON("/api/sessions/"+id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// History fetches the retained events of a session.
func (c *APIClient) History(id string) ([]types.ActivityEvent, error) {
	var h historyResponse
	if err := c.getJSON("/api/sessions/"+id+"/history", &h); err != nil {
		return nil, err
	}
	return h.Events, nil
}

// Cancel asks the server to stop a session.
func (c *APIClient) Cancel(id string) error {
	resp, err := c.client.Post(c.baseURL+"/api/sessions/"+id+"/cancel", "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to cancel: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *APIClient) getJSON(path string, v any) error {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
