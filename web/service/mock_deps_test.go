package service

import (
	"context"
	"errors"

	gopsnet "github.com/shirou/gopsutil/v4/net"

	"github.com/mayugoro/xray/argo"
	"github.com/mayugoro/xray/xray"
)

type MockSynchronizer struct {
	AddClientFunc    func(ctx context.Context, accountID, clientID string) error
	RemoveClientFunc func(ctx context.Context, accountID string) error
	Clients          []xray.Client
	Report           *xray.ReconcileReport
}

func (m *MockSynchronizer) AddClient(ctx context.Context, accountID, clientID string) error {
	if m.AddClientFunc != nil {
		return m.AddClientFunc(ctx, accountID, clientID)
	}
	return nil
}

func (m *MockSynchronizer) RemoveClient(ctx context.Context, accountID string) error {
	if m.RemoveClientFunc != nil {
		return m.RemoveClientFunc(ctx, accountID)
	}
	return nil
}

func (m *MockSynchronizer) ListClients() ([]xray.Client, error) {
	return m.Clients, nil
}

func (m *MockSynchronizer) Reconcile() (*xray.ReconcileReport, error) {
	if m.Report == nil {
		return &xray.ReconcileReport{}, nil
	}
	return m.Report, nil
}

type MockTunnelController struct {
	state     argo.State
	calls     []string
	running   []argo.Running
	installed bool

	InstallErr error
	CreateErr  error
	BindErr    error
	StartErr   error
	QuickURL   string
	QuickErr   error
}

func (m *MockTunnelController) State() argo.State { return m.state }

func (m *MockTunnelController) EnsureInstalled(ctx context.Context) (bool, error) {
	m.calls = append(m.calls, "install")
	if m.InstallErr != nil {
		return false, m.InstallErr
	}
	was := m.installed
	m.installed = true
	return was, nil
}

func (m *MockTunnelController) Create(ctx context.Context, name string) error {
	m.calls = append(m.calls, "create "+name)
	return m.CreateErr
}

func (m *MockTunnelController) BindDomain(ctx context.Context, name, domain string) error {
	m.calls = append(m.calls, "bind "+name+" "+domain)
	return m.BindErr
}

func (m *MockTunnelController) Start(ctx context.Context, name, domain string) error {
	m.calls = append(m.calls, "start "+name)
	if m.StartErr == nil {
		m.running = append(m.running, argo.Running{Name: name, Pid: 100})
	}
	return m.StartErr
}

func (m *MockTunnelController) Stop(name string) error { return nil }

func (m *MockTunnelController) StopAll() []string {
	var names []string
	for _, r := range m.running {
		names = append(names, r.Name)
	}
	m.running = nil
	return names
}

func (m *MockTunnelController) Delete(ctx context.Context, name string) error {
	m.calls = append(m.calls, "delete "+name)
	return nil
}

func (m *MockTunnelController) List(ctx context.Context) (string, error) {
	return "ID NAME\nabc123 vmess-tunnel\n", nil
}

func (m *MockTunnelController) QuickTunnel() (string, error) {
	m.calls = append(m.calls, "quick")
	if m.QuickErr != nil {
		return "", m.QuickErr
	}
	m.running = append(m.running, argo.Running{Name: argo.QuickTunnelName, Pid: 200})
	return m.QuickURL, nil
}

func (m *MockTunnelController) Running() []argo.Running { return m.running }

type fakeStatsSource struct {
	text string
	err  error
}

func (f fakeStatsSource) Query(ctx context.Context) (string, error) {
	return f.text, f.err
}

type fakeRunner struct {
	stdout string
	err    error
	args   []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.args = append([]string{name}, args...)
	return []byte(f.stdout), nil, f.err
}

type fakePresence []string

func (f fakePresence) ActiveIPs() []string { return f }

func fakeConnections(conns []gopsnet.ConnectionStat, err error) func(context.Context) ([]gopsnet.ConnectionStat, error) {
	return func(context.Context) ([]gopsnet.ConnectionStat, error) {
		return conns, err
	}
}

var errBoom = errors.New("boom")
