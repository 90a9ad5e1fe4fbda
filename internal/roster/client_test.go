package roster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestListAgents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agents", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": "a1", "name": "Ada", "system_prompt": "You are Ada.", "thumbnailUrl": "http://img"},
			{"id": "a2", "name": "Bo"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", time.Second, zap.NewNop())
	entries, err := client.ListAgents(context.Background())
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "a1", entries[0].ID)
	assert.Equal(t, "Ada", entries[0].Name)
	assert.Equal(t, "You are Ada.", entries[0].SystemPrompt)
	assert.Equal(t, "http://img", entries[0].Raw["thumbnailUrl"])
}

func TestListAgents_ErrorCarriesUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", time.Second, zap.NewNop())
	_, err := client.ListAgents(context.Background())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)
}

func TestCreateSessionToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auto/token", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a1", req["agentId"])
		json.NewEncoder(w).Encode(SessionToken{Token: "tok-123", SessionID: "s-1", ExpiresIn: 300})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", time.Second, zap.NewNop())
	token, err := client.CreateSessionToken(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token.Token)
	assert.Equal(t, "s-1", token.SessionID)
}

func TestWaitForSession_BecomesReady(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", time.Second, zap.NewNop())
	err := client.WaitForSession(context.Background(), "s-1", time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 3)
}

func TestWaitForSession_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", time.Second, zap.NewNop())
	err := client.WaitForSession(context.Background(), "s-1", 50*time.Millisecond, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForSession_Cancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := NewClient(srv.URL, "test-key", time.Second, zap.NewNop())
	err := client.WaitForSession(ctx, "s-1", 5*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}
