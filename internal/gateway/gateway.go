// Package gateway implements the outbound client for the game session
// service that hosts the actual tables.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"card-arena/internal/config"
)

// Client talks to the game session service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a gateway client from configuration.
func New(cfg config.GatewayConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type createSessionRequest struct {
	Players    []int64 `json:"players"`
	SmallBlind int64   `json:"small_blind"`
	BigBlind   int64   `json:"big_blind"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// CreateSession asks the session service to open a table for the given
// players and returns the session id.
func (c *Client) CreateSession(ctx context.Context, players []int64, smallBlind, bigBlind int64) (string, error) {
	body, err := json.Marshal(createSessionRequest{
		Players:    players,
		SmallBlind: smallBlind,
		BigBlind:   bigBlind,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", string(snippet)).
			Msg("session service rejected table creation")
		return "", fmt.Errorf("session service returned status %d", resp.StatusCode)
	}

	var out createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("session service returned an empty session id")
	}
	return out.SessionID, nil
}
