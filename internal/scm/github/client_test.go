package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/appforge/engine/pkg/errors"
)

func TestUsernameResolvedOnceFromToken(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/user", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"login": "octo"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "")
	for i := 0; i < 3; i++ {
		name, err := c.Username(context.Background())
		require.NoError(t, err)
		require.Equal(t, "octo", name)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUsernameSuppliedSkipsLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request to %s", r.URL.Path)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "configured")
	name, err := c.Username(context.Background())
	require.NoError(t, err)
	require.Equal(t, "configured", name)
}

func TestRepositoryExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/octo/taken":
			_ = json.NewEncoder(w).Encode(map[string]string{"full_name": "octo/taken"})
		case "/repos/octo/free":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "octo")

	exists, err := c.RepositoryExists(context.Background(), "taken")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = c.RepositoryExists(context.Background(), "free")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = c.RepositoryExists(context.Background(), "broken")
	require.Error(t, err)
	require.True(t, appErr.IsCode(err, appErr.CodeExternal))
}

func TestCreateRepository(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/user/repos", r.URL.Path)

		var body createRepoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "todo-app", body.Name)
		require.False(t, body.Private)
		require.False(t, body.AutoInit)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"html_url": "https://github.com/octo/todo-app"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "octo")
	url, err := c.CreateRepository(context.Background(), "todo-app", "a todo list")
	require.NoError(t, err)
	require.Equal(t, "https://github.com/octo/todo-app", url)
}

func TestCreateRepositoryUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "octo")
	_, err := c.CreateRepository(context.Background(), "todo-app", "desc")
	require.Error(t, err)
	require.True(t, appErr.IsCode(err, appErr.CodeExternal))
}
