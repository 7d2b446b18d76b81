package assetlinesdk_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetline/internal/app"
	"assetline/internal/config"
	"assetline/internal/domain"
	"assetline/internal/idempotency"
	"assetline/internal/server"
	assetlinesdk "assetline/sdk/go"
)

func newServer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	env, err := app.Open(ctx, t.TempDir(), config.Default(), nil)
	require.NoError(t, err)
	for _, u := range []domain.User{
		{ID: "emp-1", Name: "Employee", Grade: "3", Roles: []string{"employee"}},
		{ID: "mgr-1", Name: "Manager", Grade: "7", Roles: []string{"manager"}},
		{ID: "pic-1", Name: "PIC", Roles: []string{"pic"}},
	} {
		_, err := env.Engine.AddUser(ctx, u, "seed")
		require.NoError(t, err)
	}
	_, err = env.Engine.AddItem(ctx, domain.Item{ID: "cam-1", Name: "Camera", IsAvailable: true}, "seed")
	require.NoError(t, err)

	handler, err := server.New(server.Config{
		Engine:   env.Engine,
		BasePath: "/v0",
		Auth:     server.AuthConfig{JWTSecret: "sdk-secret", DevLogin: true},
		Guard:    idempotency.NewMemoryGuard(time.Minute),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		env.Close()
	})
	return srv.URL
}

func login(t *testing.T, baseURL, actor string) *assetlinesdk.Client {
	t.Helper()
	c := assetlinesdk.New(baseURL)
	require.NoError(t, c.DevLogin(context.Background(), actor))
	return c
}

func TestClientDrivesLifecycle(t *testing.T) {
	baseURL := newServer(t)
	ctx := context.Background()
	emp := login(t, baseURL, "emp-1")
	mgr := login(t, baseURL, "mgr-1")
	pic := login(t, baseURL, "pic-1")

	req, err := emp.CreateRequest(ctx, assetlinesdk.CreateRequestInput{
		ManagerID: "mgr-1",
		Lines:     []assetlinesdk.Line{{ItemID: "cam-1", Quantity: 1}},
		StartDate: "2024-03-01",
		EndDate:   "2024-03-02",
	}, "k-1")
	require.NoError(t, err)
	assert.Equal(t, "Waiting_Manager_Approval", req.Status)

	_, err = emp.CreateRequest(ctx, assetlinesdk.CreateRequestInput{
		ManagerID: "mgr-1",
		Lines:     []assetlinesdk.Line{{ItemID: "cam-1", Quantity: 1}},
		StartDate: "2024-03-01",
		EndDate:   "2024-03-02",
	}, "k-1")
	assert.Equal(t, "duplicate_request", assetlinesdk.ErrorCode(err))

	pending, err := mgr.PendingManager(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = pic.DecidePIC(ctx, req.ID, "Approved", "")
	assert.Equal(t, "invalid_state", assetlinesdk.ErrorCode(err))

	_, err = mgr.DecideManager(ctx, req.ID, "Approved", "ok")
	require.NoError(t, err)
	req, err = pic.DecidePIC(ctx, req.ID, "Approved", "")
	require.NoError(t, err)
	assert.Equal(t, "Approved", req.Status)

	item, err := emp.Item(ctx, "cam-1")
	require.NoError(t, err)
	assert.False(t, item.IsAvailable)

	req, err = emp.Return(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "Returned", req.Status)
	require.Len(t, req.Approvals, 2)

	me, err := emp.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", me.ActorID)

	mine, err := emp.MyRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
