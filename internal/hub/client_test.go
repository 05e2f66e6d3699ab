package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHost = "https://hub.example.com"

func newMockedClient(t *testing.T, creds Credentials) *Client {
	t.Helper()
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return NewClient(testHost+"/", "galaxy", creds, httpClient)
}

func TestClient_ServerVersion(t *testing.T) {
	c := newMockedClient(t, Credentials{Token: "abc"})

	httpmock.RegisterResponder(http.MethodGet, testHost+"/api/galaxy/",
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") != "Token abc" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, `{"detail":"no token"}`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"server_version":"4.6.3","available_versions":{"v3":"v3/"}}`), nil
		})

	version, err := c.ServerVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4.6.3", version)
}

func TestClient_ServerVersion_Missing(t *testing.T) {
	c := newMockedClient(t, Credentials{Token: "abc"})
	httpmock.RegisterResponder(http.MethodGet, testHost+"/api/galaxy/",
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	_, err := c.ServerVersion(context.Background())
	require.Error(t, err)
}

func TestClient_Authenticate_TokenRejected(t *testing.T) {
	c := newMockedClient(t, Credentials{Token: "bad"})
	httpmock.RegisterResponder(http.MethodGet, testHost+"/api/galaxy/",
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"detail":"Invalid token."}`))

	err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	var httpErr *HTTPStatusError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "Invalid token.", httpErr.Detail())
}

func TestClient_FindRegistry(t *testing.T) {
	c := newMockedClient(t, Credentials{Token: "abc"})

	httpmock.RegisterResponderWithQuery(http.MethodGet,
		testHost+"/api/galaxy/_ui/v1/execution-environments/registries/", "name=redhat",
		httpmock.NewStringResponder(http.StatusOK, `{
			"meta": {"count": 2},
			"data": [
				{"pk": "0b5b4f2e", "id": 7, "name": "redhat-mirror", "url": "https://quay.io"},
				{"pk": "9c1d22aa", "id": 12, "name": "redhat", "url": "https://registry.redhat.io"}
			]
		}`))

	reg, err := c.FindRegistry(context.Background(), "redhat")
	require.NoError(t, err)
	assert.Equal(t, "redhat", reg.Name)
	assert.Equal(t, "https://registry.redhat.io", reg.URL)

	pk, ok := reg.Identifier("pk")
	require.True(t, ok)
	assert.Equal(t, "9c1d22aa", pk)

	id, ok := reg.Identifier("id")
	require.True(t, ok)
	assert.Equal(t, "12", id)

	_, ok = reg.Identifier("missing")
	assert.False(t, ok)
}

func TestClient_FindRegistry_NotFound(t *testing.T) {
	c := newMockedClient(t, Credentials{Token: "abc"})

	httpmock.RegisterResponderWithQuery(http.MethodGet,
		testHost+"/api/galaxy/_ui/v1/execution-environments/registries/", "name=nope",
		httpmock.NewStringResponder(http.StatusOK, `{"meta":{"count":0},"data":[]}`))

	_, err := c.FindRegistry(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClient_TriggerIndex(t *testing.T) {
	c := newMockedClient(t, Credentials{Token: "abc"})

	httpmock.RegisterResponder(http.MethodPost,
		testHost+"/api/galaxy/_ui/v1/execution-environments/registries/9c1d22aa/index/",
		httpmock.NewStringResponder(http.StatusAccepted, `{"task":"4f0e7d3c"}`))

	task, err := c.TriggerIndex(context.Background(), "9c1d22aa")
	require.NoError(t, err)
	assert.Equal(t, "4f0e7d3c", task)
}

func TestClient_TriggerIndex_RejectedWithDetail(t *testing.T) {
	c := newMockedClient(t, Credentials{Token: "abc"})

	httpmock.RegisterResponder(http.MethodPost,
		testHost+"/api/galaxy/_ui/v1/execution-environments/registries/1/index/",
		httpmock.NewStringResponder(http.StatusBadRequest,
			`{"errors":[{"status":"400","code":"invalid","detail":"Indexing execution environments is only supported on registry.redhat.io"}]}`))

	_, err := c.TriggerIndex(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only supported on registry.redhat.io")
}

func TestClient_GetTask(t *testing.T) {
	c := newMockedClient(t, Credentials{Token: "abc"})

	httpmock.RegisterResponder(http.MethodGet, testHost+"/api/galaxy/v3/tasks/4f0e7d3c/",
		httpmock.NewStringResponder(http.StatusOK, `{
			"pulp_href": "/api/galaxy/v3/tasks/4f0e7d3c/",
			"name": "galaxy_ng.app.tasks.index_execution_environments_from_redhat_registry",
			"state": "failed",
			"started_at": "2024-05-01T10:00:00Z",
			"finished_at": null,
			"error": {"description": "registry unreachable", "traceback": "..."}
		}`))
	httpmock.RegisterResponder(http.MethodGet, testHost+"/pulp/api/v3/tasks/abc/",
		httpmock.NewStringResponder(http.StatusOK, `{"state":"running"}`))

	task, err := c.GetTask(context.Background(), "4f0e7d3c")
	require.NoError(t, err)
	assert.Equal(t, TaskFailed, task.State)
	assert.Equal(t, "registry unreachable", task.Reason())
	assert.NotNil(t, task.StartedAt)
	assert.Nil(t, task.FinishedAt)

	task, err = c.GetTask(context.Background(), "/pulp/api/v3/tasks/abc/")
	require.NoError(t, err)
	assert.Equal(t, TaskRunning, task.State)
}

func TestTaskState(t *testing.T) {
	tests := []struct {
		state    TaskState
		finished bool
		failed   bool
	}{
		{TaskWaiting, false, false},
		{TaskRunning, false, false},
		{TaskCompleted, true, false},
		{TaskSkipped, true, false},
		{TaskFailed, true, true},
		{TaskCanceled, true, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.finished, tt.state.Finished(), "Finished(%s)", tt.state)
		assert.Equal(t, tt.failed, tt.state.Failed(), "Failed(%s)", tt.state)
	}
}

func TestClient_SessionLogin_UsesCSRFToken(t *testing.T) {
	var (
		loggedIn  atomic.Bool
		loggedOut atomic.Bool
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/galaxy/_ui/v1/auth/login/" && r.Method == http.MethodGet:
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "csrf-1", Path: "/"})
			w.WriteHeader(http.StatusNoContent)

		case r.URL.Path == "/api/galaxy/_ui/v1/auth/login/" && r.Method == http.MethodPost:
			if r.Header.Get("X-CSRFToken") != "csrf-1" {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"detail":"CSRF Failed"}`))
				return
			}
			var creds map[string]string
			json.NewDecoder(r.Body).Decode(&creds)
			if creds["username"] != "admin" || creds["password"] != "pw" {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"detail":"Invalid credentials"}`))
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "s-1", Path: "/"})
			loggedIn.Store(true)
			w.WriteHeader(http.StatusNoContent)

		case r.URL.Path == "/api/galaxy/_ui/v1/execution-environments/registries/abc/index/":
			if c, err := r.Cookie("sessionid"); err != nil || c.Value != "s-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if r.Header.Get("X-CSRFToken") != "csrf-1" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"task":"t-1"}`))

		case r.URL.Path == "/api/galaxy/_ui/v1/auth/logout/" && r.Method == http.MethodPost:
			loggedOut.Store(true)
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "galaxy", Credentials{Username: "admin", Password: "pw"}, nil)

	require.NoError(t, c.Authenticate(context.Background()))
	assert.True(t, loggedIn.Load())

	task, err := c.TriggerIndex(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "t-1", task)

	require.NoError(t, c.Logout(context.Background()))
	assert.True(t, loggedOut.Load())
}

func TestClient_SessionLogin_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "csrf-1", Path: "/"})
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errors":[{"status":"403","title":"Invalid credentials"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "galaxy", Credentials{Username: "admin", Password: "wrong"}, nil)
	err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "Invalid credentials")

	// No session was opened, so logout is a no-op.
	assert.NoError(t, c.Logout(context.Background()))
}
