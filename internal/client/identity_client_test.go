package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyalayaone/profile-api/pkg/config"
	appErrors "github.com/vidyalayaone/profile-api/pkg/errors"
)

func newTestClient(baseURL string) *IdentityClient {
	return NewIdentityClient(config.AuthClientConfig{
		BaseURL:       baseURL,
		ServiceSecret: "test-secret",
		Timeout:       2 * time.Second,
	}, nil)
}

func TestIdentityClientCreate(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/internal/users", r.URL.Path)

		var req CreateIdentityRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "john.a100", req.Username)
		assert.NotEmpty(t, req.Password)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"user":{"id":"identity-1","username":"john.a100","email":"john@example.com"}}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	identity, err := c.CreateIdentity(context.Background(), CreateIdentityRequest{
		Username: "john.a100",
		Email:    "john@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "identity-1", identity.ID)
	assert.Equal(t, "john.a100", identity.Username)

	assert.Equal(t, "true", gotHeaders.Get("X-Internal-Request"))
	assert.Equal(t, "test-secret", gotHeaders.Get("X-Internal-Service-Secret"))
}

func TestIdentityClientCreateStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   *appErrors.Error
	}{
		{"bad request", http.StatusBadRequest, appErrors.ErrValidation},
		{"forbidden without marker", http.StatusForbidden, appErrors.ErrForbidden},
		{"duplicate username", http.StatusConflict, appErrors.ErrConflict},
		{"bad gateway", http.StatusBadGateway, appErrors.ErrRemoteUnavailable},
		{"teapot", http.StatusTeapot, appErrors.ErrInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer server.Close()

			c := newTestClient(server.URL)
			_, err := c.CreateIdentity(context.Background(), CreateIdentityRequest{Username: "u"})
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, tc.want))
		})
	}
}

func TestIdentityClientCreateUnreachable(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	_, err := c.CreateIdentity(context.Background(), CreateIdentityRequest{Username: "u"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrRemoteUnavailable))
}

func TestIdentityClientDelete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/internal/users/identity-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	require.NoError(t, c.DeleteIdentity(context.Background(), "identity-1"))
}

func TestIdentityClientDeleteMissingIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	// Deleting an already-deleted identity must stay idempotent.
	require.NoError(t, c.DeleteIdentity(context.Background(), "already-gone"))
}

func TestIdentityClientDeleteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	err := c.DeleteIdentity(context.Background(), "identity-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrRemoteUnavailable))
}
