package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mayugoro/xray/web/entity"
	"github.com/mayugoro/xray/web/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccounts struct {
	views []service.AccountView
	err   error
}

func (f *fakeAccounts) List() ([]service.AccountView, error) { return f.views, f.err }

type fakeConns struct {
	samples []service.ConnectionSample
	sockets int
}

func (f *fakeConns) GetLiveConnections(context.Context) []service.ConnectionSample {
	return f.samples
}

func (f *fakeConns) GetConnectionCount(context.Context) int { return f.sockets }

type fakeTunnel struct{ status service.TunnelStatus }

func (f *fakeTunnel) Status() service.TunnelStatus { return f.status }

func newRouter(accounts AccountLister, conns ConnectionReporter, tunnel TunnelReporter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewStatusController(&r.RouterGroup, accounts, conns, tunnel, time.Second)
	return r
}

func get(t *testing.T, r *gin.Engine, path string) (*httptest.ResponseRecorder, entity.Msg) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var msg entity.Msg
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	}
	return w, msg
}

func TestStatus_Healthz(t *testing.T) {
	w, msg := get(t, newRouter(nil, nil, nil), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, msg.Success)
	obj := msg.Obj.(map[string]any)
	assert.Equal(t, "ok", obj["status"])
}

func TestStatus_AccountsHideLinks(t *testing.T) {
	day := time.Date(2024, 3, 31, 0, 0, 0, 0, time.Local)
	accounts := &fakeAccounts{views: []service.AccountView{{
		AccountID:  "alice",
		ClientID:   "b831381d-6324-4d53-ad4f-8cda48b30811",
		CreatedAt:  day.AddDate(0, 0, -30),
		ExpiryDate: day,
		DaysLeft:   30,
		Link:       "vmess://secret",
	}}}
	w, _ := get(t, newRouter(accounts, nil, nil), "/api/accounts")

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "vmess://")
	assert.Contains(t, w.Body.String(), `"expiry_date":"2024-03-31"`)
	assert.Contains(t, w.Body.String(), `"account_id":"alice"`)
}

func TestStatus_AccountsError(t *testing.T) {
	w, msg := get(t, newRouter(&fakeAccounts{err: errors.New("disk gone")}, nil, nil), "/api/accounts")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, msg.Success)
	assert.Contains(t, msg.Msg, "disk gone")
}

func TestStatus_Connections(t *testing.T) {
	conns := &fakeConns{
		samples: []service.ConnectionSample{
			{Kind: service.KindPresence, Presence: &service.PresenceSample{IP: "198.51.100.7", Status: "Active"}},
		},
		sockets: 3,
	}
	w, msg := get(t, newRouter(nil, conns, nil), "/api/connections")
	require.Equal(t, http.StatusOK, w.Code)
	obj := msg.Obj.(map[string]any)
	assert.Equal(t, "presence", obj["kind"])
	assert.EqualValues(t, 1, obj["count"])
	assert.EqualValues(t, 3, obj["sockets"])
}

func TestStatus_Tunnel(t *testing.T) {
	tunnel := &fakeTunnel{status: service.TunnelStatus{State: "running", Name: "vmess-tunnel"}}
	w, msg := get(t, newRouter(nil, nil, tunnel), "/api/tunnel")
	require.Equal(t, http.StatusOK, w.Code)
	obj := msg.Obj.(map[string]any)
	assert.Equal(t, "vmess-tunnel", obj["name"])
}

func TestStatus_MissingDependency(t *testing.T) {
	r := newRouter(nil, nil, nil)
	for _, path := range []string{"/api/accounts", "/api/connections", "/api/tunnel"} {
		w, _ := get(t, r, path)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}
