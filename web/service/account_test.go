package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayugoro/xray/config"
	"github.com/mayugoro/xray/database"
	"github.com/mayugoro/xray/link"
	"github.com/mayugoro/xray/util/common"
	"github.com/mayugoro/xray/xray"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)

func testConfig() *config.Config {
	return &config.Config{
		ServerAddr: "203.0.113.10",
		VMessPort:  443,
		LocalPort:  10000,
		WSPath:     "/vmess",
		TunnelName: "vmess-tunnel",
	}
}

type accountFixture struct {
	svc      *AccountService
	store    *database.JSONStore
	runner   *fakeRunner
	cfgPath  string
	storeDir string
}

// newAccountFixture 使用真实的 JSON 存储与配置同步器，只替换 systemctl
func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	dir := t.TempDir()
	store := database.NewJSONStore(filepath.Join(dir, "users.json"))
	runner := &fakeRunner{}
	reloader := &xray.SystemdReloader{Service: "xray", Timeout: time.Second, Runner: runner}
	cfgPath := filepath.Join(dir, "config.json")
	syncer := xray.NewConfigSynchronizer(cfgPath, xray.ScaffoldOptions{Port: 443, WSPath: "/vmess"}, reloader, store)

	svc := NewAccountService(testConfig(), store, syncer)
	svc.now = func() time.Time { return fixedNow }
	return &accountFixture{svc: svc, store: store, runner: runner, cfgPath: cfgPath, storeDir: dir}
}

func TestAccountCreate(t *testing.T) {
	f := newAccountFixture(t)

	view, res := f.svc.Create(context.Background(), "alice@example.com", 30)
	require.True(t, res.OK, res.Detail)
	require.NotNil(t, view)
	assert.Equal(t, "alice@example.com", view.AccountID)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.Local), view.ExpiryDate)
	assert.False(t, view.Expired)
	assert.Equal(t, "direct", view.Mode)

	d, err := link.Decode(view.Link)
	require.NoError(t, err)
	assert.Equal(t, view.ClientID, d.ID)
	assert.Equal(t, "203.0.113.10", d.Add)

	stored, err := f.store.Get("alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, view.ClientID, stored.ClientID)

	report, err := f.svc.Reconcile()
	require.NoError(t, err)
	assert.True(t, report.Consistent())
}

func TestAccountCreate_ExistingIsIdempotent(t *testing.T) {
	f := newAccountFixture(t)

	first, res := f.svc.Create(context.Background(), "bob", 7)
	require.True(t, res.OK)

	second, res := f.svc.Create(context.Background(), "bob", 30)
	assert.True(t, res.OK)
	assert.Equal(t, common.ErrCodeAlreadyExists, res.Code)
	require.NotNil(t, second)
	assert.Equal(t, first.ClientID, second.ClientID)
	assert.Equal(t, 7, second.Days)
}

func TestAccountCreate_GeneratesID(t *testing.T) {
	f := newAccountFixture(t)

	view, res := f.svc.Create(context.Background(), "", 1)
	require.True(t, res.OK)
	want := fmt.Sprintf("vmess_%d", fixedNow.Unix())
	assert.Equal(t, want, view.AccountID)

	view2, res := f.svc.Create(context.Background(), "", 1)
	require.True(t, res.OK)
	assert.True(t, strings.HasPrefix(view2.AccountID, want+"_"))
}

func TestAccountCreate_InvalidInput(t *testing.T) {
	f := newAccountFixture(t)

	tests := []struct {
		name string
		id   string
		days int
	}{
		{"space in id", "al ice", 30},
		{"zero days", "alice", 0},
		{"negative days", "alice", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, res := f.svc.Create(context.Background(), tt.id, tt.days)
			assert.Nil(t, view)
			assert.False(t, res.OK)
			assert.Equal(t, common.ErrCodeInvalidInput, res.Code)
		})
	}
	_, err := os.Stat(f.cfgPath)
	assert.True(t, os.IsNotExist(err))
}

func TestAccountCreate_AppliedNotReloaded(t *testing.T) {
	f := newAccountFixture(t)
	f.runner.err = errBoom
	f.runner.stdout = ""

	view, res := f.svc.Create(context.Background(), "carol", 30)
	assert.False(t, res.OK)
	assert.Equal(t, common.ErrCodeAppliedNotReloaded, res.Code)
	require.NotNil(t, view)

	stored, err := f.store.Get("carol")
	require.NoError(t, err)
	assert.NotNil(t, stored, "record is kept because the config file holds the client")
}

func TestAccountCreate_SyncFailureStoresNothing(t *testing.T) {
	dir := t.TempDir()
	store := database.NewJSONStore(filepath.Join(dir, "users.json"))
	mock := &MockSynchronizer{AddClientFunc: func(ctx context.Context, accountID, clientID string) error {
		return common.NewServiceError("XraySync.AddClient", common.ErrConfigMalformed).WithCode(common.ErrCodeConfigMalformed)
	}}
	svc := NewAccountService(testConfig(), store, mock)

	view, res := svc.Create(context.Background(), "dave", 30)
	assert.Nil(t, view)
	assert.False(t, res.OK)
	assert.Equal(t, common.ErrCodeConfigMalformed, res.Code)

	all, err := store.ListAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAccountCreate_AdoptsExistingClient(t *testing.T) {
	dir := t.TempDir()
	store := database.NewJSONStore(filepath.Join(dir, "users.json"))
	mock := &MockSynchronizer{
		AddClientFunc: func(ctx context.Context, accountID, clientID string) error {
			return common.ErrAlreadyExists
		},
		Clients: []xray.Client{{ID: "legacy-id", Email: "erin"}},
	}
	svc := NewAccountService(testConfig(), store, mock)

	view, res := svc.Create(context.Background(), "erin", 30)
	require.True(t, res.OK)
	assert.Equal(t, "legacy-id", view.ClientID)
}

func TestAccountDelete(t *testing.T) {
	f := newAccountFixture(t)
	_, res := f.svc.Create(context.Background(), "alice", 30)
	require.True(t, res.OK)

	res = f.svc.Delete(context.Background(), "alice")
	assert.True(t, res.OK, res.Detail)
	assert.Empty(t, res.Code)

	a, err := f.store.Get("alice")
	require.NoError(t, err)
	assert.Nil(t, a)

	res = f.svc.Delete(context.Background(), "alice")
	assert.False(t, res.OK)
	assert.Equal(t, common.ErrCodeNotFound, res.Code)
}

func TestAccountDelete_MissingInProxyStillRemovesRecord(t *testing.T) {
	dir := t.TempDir()
	store := database.NewJSONStore(filepath.Join(dir, "users.json"))
	_, err := database.AddAccount(store, "ghost", "ghost-id", 30, fixedNow)
	require.NoError(t, err)

	mock := &MockSynchronizer{RemoveClientFunc: func(ctx context.Context, accountID string) error {
		return common.ErrNotFound
	}}
	svc := NewAccountService(testConfig(), store, mock)

	res := svc.Delete(context.Background(), "ghost")
	assert.True(t, res.OK)
	assert.Equal(t, common.ErrCodeIntegrity, res.Code)

	a, err := store.Get("ghost")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestAccountDelete_ExternalFailureKeepsRecord(t *testing.T) {
	dir := t.TempDir()
	store := database.NewJSONStore(filepath.Join(dir, "users.json"))
	_, err := database.AddAccount(store, "frank", "frank-id", 30, fixedNow)
	require.NoError(t, err)

	mock := &MockSynchronizer{RemoveClientFunc: func(ctx context.Context, accountID string) error {
		return common.ErrConfigMalformed
	}}
	svc := NewAccountService(testConfig(), store, mock)

	res := svc.Delete(context.Background(), "frank")
	assert.False(t, res.OK)

	a, err := store.Get("frank")
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestAccountListAndExpired(t *testing.T) {
	dir := t.TempDir()
	store := database.NewJSONStore(filepath.Join(dir, "users.json"))
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local)
	_, err := database.AddAccount(store, "zed", "z", 30, created)
	require.NoError(t, err)
	_, err = database.AddAccount(store, "amy", "a", 365, created)
	require.NoError(t, err)

	svc := NewAccountService(testConfig(), store, &MockSynchronizer{})
	svc.now = func() time.Time { return fixedNow }

	views, err := svc.List()
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "amy", views[0].AccountID)
	assert.Equal(t, "zed", views[1].AccountID)
	assert.True(t, views[1].Expired)
	assert.Equal(t, 0, views[1].DaysLeft)

	expired, err := svc.ExpiredAccounts(fixedNow)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "zed", expired[0].AccountID)

	_, err = svc.Get("nobody")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAccountRoute(t *testing.T) {
	cfg := testConfig()
	cfg.BugHost = "bug.example.net"
	svc := NewAccountService(cfg, nil, &MockSynchronizer{})
	assert.Equal(t, link.ModeDisguise, svc.Route().Mode)

	cfg.UseArgo = true
	cfg.ArgoDomain = "vpn.example.com"
	assert.Equal(t, link.ModeTunnel, svc.Route().Mode)
	assert.Equal(t, "vpn.example.com", svc.Route().Address)

	ctrl := &MockTunnelController{QuickURL: "https://foo-bar.trycloudflare.com"}
	tunnel := NewTunnelService(cfg, ctrl)
	svc.SetDomainProvider(tunnel)
	require.True(t, tunnel.Quick(context.Background()).OK)
	assert.Equal(t, "foo-bar.trycloudflare.com", svc.Route().Address)
}
