package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLabel(t *testing.T) {
	out, err := run(t, "label", "--number", "742", "--street", "Evergreen Terrace", "--city", "Springfield")
	require.NoError(t, err)
	assert.Regexp(t, `^Evergreen Terrace \(700 block\) • Springfield\tpk_[0-9a-f]{8}\n$`, out)

	_, err = run(t, "label")
	assert.Error(t, err)
}

func TestMigrate_RequiresDSN(t *testing.T) {
	t.Setenv("CROSSED_PATHS_POSTGRES_DSN", "")
	_, err := run(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--dsn")
}

func TestPeople_SendsPagingParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/alice/crossed-paths/groups/2024-03-01/pk_0000abcd/people", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "tok", r.URL.Query().Get("cursor"))
		assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"people":[],"has_more":false,"degraded":false}`))
	}))
	defer srv.Close()

	out, err := run(t, "--api", srv.URL, "people", "alice", "2024-03-01", "pk_0000abcd", "-l", "5", "-c", "tok", "--token", "jwt")
	require.NoError(t, err)
	assert.Contains(t, out, `"has_more": false`)
}

func TestGroups_HTTPErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Bad Request","field":"userId"}`))
	}))
	defer srv.Close()

	_, err := run(t, "--api", srv.URL, "groups", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 400")
}

func TestVisit_PostsLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/users/alice/visits", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"outcome":"recorded"}`))
	}))
	defer srv.Close()

	out, err := run(t, "--api", srv.URL, "visit", "alice", "--label", "Cafe Luna")
	require.NoError(t, err)
	assert.Contains(t, out, `"outcome": "recorded"`)
}
