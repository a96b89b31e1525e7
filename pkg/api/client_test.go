package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parishops/flock/pkg/apperrors"
	"github.com/parishops/flock/pkg/retry"
)

// noRetry keeps failure-path tests instant.
var noRetry = &retry.Config{MaxRetries: 0}

type staticTokens string

func (s staticTokens) Token() string { return string(s) }

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens TokenSource) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, tokens, zap.NewNop())
	require.NoError(t, err)
	c.backoff = noRetry
	return c
}

func TestGet_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}, nil)
	c.backoff = &retry.Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	require.NoError(t, c.get(context.Background(), "/groups", nil, nil))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_AttachesBearerAndRequestID(t *testing.T) {
	var gotAuth, gotRequestID, gotContentType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{}`))
	}, staticTokens("tok-123"))

	require.NoError(t, c.get(context.Background(), "/ping", nil, nil))
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "application/json", gotContentType)
}

func TestDo_EmptyTokenStaysUnauthenticated(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}, staticTokens(""))

	require.NoError(t, c.get(context.Background(), "/ping", nil, nil))
	assert.Empty(t, gotAuth)
}

func TestDo_UnauthorizedHookFiresOnce(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "Token expired"})
	}, staticTokens("stale"))

	var fired atomic.Int32
	c.SetUnauthorizedHandler(func() { fired.Add(1) })

	err := c.get(context.Background(), "/groups", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Equal(t, int32(1), fired.Load())
}

func TestDo_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, apperrors.ErrUnauthorized},
		{http.StatusForbidden, apperrors.ErrForbidden},
		{http.StatusNotFound, apperrors.ErrNotFound},
		{http.StatusConflict, apperrors.ErrConflict},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			json.NewEncoder(w).Encode(map[string]string{"message": "nope"})
		}, nil)

		err := c.get(context.Background(), "/x", nil, nil)
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
	}
}

func TestDo_ServerMessageSurfaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"message": "Person already checked in"})
	}, nil)

	err := c.get(context.Background(), "/x", nil, nil)
	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Person already checked in", apiErr.Message)
}

func TestDo_MalformedErrorBodyFallsBack(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("not json"))
	}, nil)

	err := c.get(context.Background(), "/x", nil, nil)
	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Error: 502", apiErr.Message)
}

func TestDo_TransportFailure(t *testing.T) {
	c, err := New("http://127.0.0.1:1", nil, zap.NewNop())
	require.NoError(t, err)
	c.backoff = noRetry

	err = c.get(context.Background(), "/x", nil, nil)
	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, "No response received from server", apiErr.Message)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["password"] != "correct" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "Invalid username or password"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"token": "tok-abc",
			"user":  map[string]any{"_id": "u-1", "username": "pat", "role": "admin"},
		})
	}, nil)

	identity, token, err := c.Auth.Login(context.Background(), "pat", "correct")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
	assert.Equal(t, "u-1", identity.ID)

	_, _, err = c.Auth.Login(context.Background(), "pat", "wrong")
	var authErr *apperrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid username or password", authErr.Message)
}

func TestLogin_TopLevelIDFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"token": "tok-abc",
			"_id":   "u-top",
			"user":  map[string]any{"username": "pat"},
		})
	}, nil)

	identity, _, err := c.Auth.Login(context.Background(), "pat", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u-top", identity.ID)
}

func TestLogin_MissingTokenRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"user": map[string]any{"_id": "u-1"}})
	}, nil)

	_, _, err := c.Auth.Login(context.Background(), "pat", "pw")
	var authErr *apperrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid response from server", authErr.Message)
}

func TestMetricPath_CollapsesIDs(t *testing.T) {
	assert.Equal(t, "/groups/:id/members", metricPath("/groups/64fabc0123456789abcdef01/members"))
	assert.Equal(t, "/events/:id", metricPath("/events/3f0a2b1c-9d8e-4f6a-b5c4-d3e2f1a0b9c8"))
	assert.Equal(t, "/groups", metricPath("/groups"))
}
