package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-arena/internal/config"
)

func newTestClient(url string) *Client {
	return New(config.GatewayConfig{BaseURL: url, Timeout: 2 * time.Second})
}

func TestCreateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/sessions", r.URL.Path)

		var req createSessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int64{1, 2, 3}, req.Players)
		assert.Equal(t, int64(10), req.SmallBlind)
		assert.Equal(t, int64(20), req.BigBlind)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createSessionResponse{SessionID: "sess-42"})
	}))
	defer server.Close()

	session, err := newTestClient(server.URL).CreateSession(context.Background(), []int64{1, 2, 3}, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, "sess-42", session)
}

func TestCreateSessionServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "table service down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).CreateSession(context.Background(), []int64{1, 2}, 10, 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestCreateSessionEmptySessionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(createSessionResponse{})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).CreateSession(context.Background(), []int64{1, 2}, 10, 20)
	require.Error(t, err)
}

func TestCreateSessionUnreachable(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").CreateSession(context.Background(), []int64{1, 2}, 10, 20)
	require.Error(t, err)
}
