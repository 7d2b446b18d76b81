package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetline/internal/app"
	"assetline/internal/config"
	"assetline/internal/domain"
	"assetline/internal/idempotency"
)

const testSecret = "test-secret"

type testServer struct {
	*httptest.Server
	env *app.Env
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	env, err := app.Open(ctx, t.TempDir(), config.Default(), nil)
	require.NoError(t, err)

	users := []domain.User{
		{ID: "emp-1", Name: "Employee", Grade: "3", Roles: []string{"employee"}},
		{ID: "mgr-1", Name: "Manager", Grade: "7", Roles: []string{"manager"}},
		{ID: "pic-1", Name: "PIC", Roles: []string{"pic"}},
		{ID: "admin-1", Name: "Admin", Roles: []string{"admin"}},
	}
	for _, u := range users {
		_, err := env.Engine.AddUser(ctx, u, "seed")
		require.NoError(t, err)
	}
	for _, id := range []string{"laptop-1", "laptop-2"} {
		_, err := env.Engine.AddItem(ctx, domain.Item{ID: id, Name: "Laptop", IsAvailable: true}, "seed")
		require.NoError(t, err)
	}

	handler, err := New(Config{
		Engine:   env.Engine,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, DevLogin: true},
		Guard:    idempotency.NewMemoryGuard(time.Minute),
	})
	require.NoError(t, err)
	srv := &testServer{Server: httptest.NewServer(handler), env: env}
	t.Cleanup(func() {
		srv.Close()
		env.Close()
	})
	return srv
}

func tokenFor(t *testing.T, actorID string) map[string]string {
	t.Helper()
	token, err := signDevToken(testSecret, actorID, time.Now())
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &envelope), string(data))
	return envelope.Error.Code
}

func createBody(items ...string) map[string]any {
	lines := make([]map[string]any, 0, len(items))
	for _, id := range items {
		lines = append(lines, map[string]any{"item_id": id, "quantity": 1})
	}
	return map[string]any{
		"manager_id": "mgr-1",
		"lines":      lines,
		"start_date": "2024-01-02",
		"end_date":   "2024-01-05",
	}
}

func (s *testServer) create(t *testing.T, items ...string) RequestResponse {
	t.Helper()
	res, data := doJSON(t, http.MethodPost, s.URL+"/v0/requests", createBody(items...), tokenFor(t, "emp-1"))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var created RequestResponse
	require.NoError(t, json.Unmarshal(data, &created))
	return created
}

func TestBorrowLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	created := srv.create(t, "laptop-1")
	assert.Equal(t, string(domain.StatusWaitingManagerApproval), created.Status)
	assert.Equal(t, "emp-1", created.RequesterID)
	require.Len(t, created.Lines, 1)

	res, data := doJSON(t, http.MethodGet, srv.URL+"/v0/approvals/pending/manager", nil, tokenFor(t, "mgr-1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var queue RequestList
	require.NoError(t, json.Unmarshal(data, &queue))
	require.Len(t, queue.Items, 1)

	res, data = doJSON(t, http.MethodPost, srv.URL+"/v0/requests/"+created.ID+"/manager-decision",
		map[string]any{"decision": "Approved"}, tokenFor(t, "mgr-1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = doJSON(t, http.MethodPost, srv.URL+"/v0/requests/"+created.ID+"/pic-decision",
		map[string]any{"decision": "Approved", "comment": "handed over"}, tokenFor(t, "pic-1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var approved RequestResponse
	require.NoError(t, json.Unmarshal(data, &approved))
	assert.Equal(t, string(domain.StatusApproved), approved.Status)
	assert.Len(t, approved.Approvals, 2)
	assert.False(t, approved.Lines[0].IsAvailable)

	res, data = doJSON(t, http.MethodPost, srv.URL+"/v0/requests/"+created.ID+"/return", nil, tokenFor(t, "emp-1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var returned RequestResponse
	require.NoError(t, json.Unmarshal(data, &returned))
	assert.Equal(t, string(domain.StatusReturned), returned.Status)
	assert.NotNil(t, returned.ReturnedAt)

	res, data = doJSON(t, http.MethodGet, srv.URL+"/v0/items/laptop-1", nil, tokenFor(t, "emp-1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var item ItemResponse
	require.NoError(t, json.Unmarshal(data, &item))
	assert.True(t, item.IsAvailable)

	res, data = doJSON(t, http.MethodGet, srv.URL+"/v0/requests/mine", nil, tokenFor(t, "emp-1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var mine RequestList
	require.NoError(t, json.Unmarshal(data, &mine))
	assert.Len(t, mine.Items, 1)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	srv := newTestServer(t)
	created := srv.create(t, "laptop-1")

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		actor  string
		status int
		code   string
	}{
		{"unknown request", http.MethodGet, "/v0/requests/nope", nil, "admin-1", http.StatusNotFound, "not_found"},
		{"wrong manager role", http.MethodPost, "/v0/requests/" + created.ID + "/manager-decision", map[string]any{"decision": "Approved"}, "emp-1", http.StatusForbidden, "forbidden"},
		{"pic before manager", http.MethodPost, "/v0/requests/" + created.ID + "/pic-decision", map[string]any{"decision": "Approved"}, "pic-1", http.StatusConflict, "invalid_state"},
		{"return while waiting", http.MethodPost, "/v0/requests/" + created.ID + "/return", nil, "emp-1", http.StatusConflict, "invalid_state"},
		{"unknown decision", http.MethodPost, "/v0/requests/" + created.ID + "/manager-decision", map[string]any{"decision": "Maybe"}, "mgr-1", http.StatusBadRequest, "bad_request"},
		{"missing item", http.MethodPost, "/v0/requests", createBody("ghost"), "emp-1", http.StatusNotFound, "not_found"},
		{"events need admin", http.MethodGet, "/v0/events", nil, "emp-1", http.StatusForbidden, "forbidden"},
		{"pic queue needs pic", http.MethodGet, "/v0/approvals/pending/pic", nil, "emp-1", http.StatusForbidden, "forbidden"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, data := doJSON(t, tc.method, srv.URL+tc.path, tc.body, tokenFor(t, tc.actor))
			assert.Equal(t, tc.status, res.StatusCode, string(data))
			assert.Equal(t, tc.code, errorCode(t, data))
		})
	}

	// A rejected call leaves the request untouched.
	got, err := srv.env.Engine.GetRequest(context.Background(), created.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingManagerApproval, got.Status)
	assert.Empty(t, got.Approvals)
}

func TestIdempotencyKeyRejectsReplay(t *testing.T) {
	srv := newTestServer(t)
	headers := tokenFor(t, "emp-1")
	headers["Idempotency-Key"] = "create-1"

	res, data := doJSON(t, http.MethodPost, srv.URL+"/v0/requests", createBody("laptop-1"), headers)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = doJSON(t, http.MethodPost, srv.URL+"/v0/requests", createBody("laptop-1"), headers)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "duplicate_request", errorCode(t, data))

	// A failed create releases its key.
	headers["Idempotency-Key"] = "create-2"
	res, _ = doJSON(t, http.MethodPost, srv.URL+"/v0/requests", createBody("ghost"), headers)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	res, data = doJSON(t, http.MethodPost, srv.URL+"/v0/requests", createBody("laptop-2"), headers)
	assert.Equal(t, http.StatusCreated, res.StatusCode, string(data))
}

func TestAuthentication(t *testing.T) {
	srv := newTestServer(t)

	res, data := doJSON(t, http.MethodGet, srv.URL+"/v0/requests/mine", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", errorCode(t, data))

	res, data = doJSON(t, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_credentials", errorCode(t, data))

	res, _ = doJSON(t, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, data = doJSON(t, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{"actor_id": "mgr-1"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var login DevLoginResponse
	require.NoError(t, json.Unmarshal(data, &login))
	res, data = doJSON(t, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var me MeResponse
	require.NoError(t, json.Unmarshal(data, &me))
	assert.Equal(t, "mgr-1", me.ActorID)
	assert.Equal(t, "jwt", me.Source)
	assert.Equal(t, []string{"manager"}, me.Roles)

	res, _ = doJSON(t, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{"actor_id": "ghost"}, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	_, raw, err := srv.env.Engine.CreateAPIKey(context.Background(), "pic-1", "bot", "admin-1")
	require.NoError(t, err)
	res, data = doJSON(t, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": raw})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &me))
	assert.Equal(t, "pic-1", me.ActorID)
	assert.Equal(t, "api_key", me.Source)
}

func TestEventsFeedPaginates(t *testing.T) {
	srv := newTestServer(t)
	srv.create(t, "laptop-1")
	srv.create(t, "laptop-2")

	res, data := doJSON(t, http.MethodGet, srv.URL+"/v0/events?entity_kind=request&limit=1", nil, tokenFor(t, "admin-1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var page paginatedEvents
	require.NoError(t, json.Unmarshal(data, &page))
	require.Len(t, page.Items, 1)
	require.NotEmpty(t, page.NextCursor)
	assert.Equal(t, "request.created", page.Items[0].Type)

	res, data = doJSON(t, http.MethodGet, srv.URL+"/v0/events?entity_kind=request&after="+page.NextCursor, nil, tokenFor(t, "admin-1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var rest paginatedEvents
	require.NoError(t, json.Unmarshal(data, &rest))
	require.Len(t, rest.Items, 1)
	assert.Empty(t, rest.NextCursor)
	assert.Greater(t, rest.Items[0].ID, page.Items[0].ID)
}
