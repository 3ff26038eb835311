package service

import (
	"context"
	"testing"
	"time"

	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStats(source fakeStatsSource, runner *fakeRunner) *StatsService {
	s := NewStatsService(source, "xray", 54354, time.Second, 100)
	s.Runner = runner
	s.host = func(context.Context) HostStatus {
		return HostStatus{CPU: 12.5, CPUCores: 2, MemUsed: 512 << 20, MemTotal: 1 << 30, Load1: 0.42, Uptime: 90061}
	}
	return s
}

func TestGetLiveConnections_Traffic(t *testing.T) {
	source := fakeStatsSource{text: `
stat: name: "user>>>alice>>>traffic>>>uplink" value: 500
stat: name: "user>>>alice>>>traffic>>>downlink" value: 1500
stat: name: "user>>>idle>>>traffic>>>uplink" value: 0
stat: name: "inbound>>>vmess-in>>>traffic>>>uplink" value: 99999
`}
	s := newTestStats(source, &fakeRunner{})

	samples := s.GetLiveConnections(context.Background())
	require.Len(t, samples, 1)
	assert.Equal(t, KindTraffic, samples[0].Kind)
	assert.Nil(t, samples[0].Presence)

	tr := samples[0].Traffic
	assert.Equal(t, "alice", tr.User)
	assert.Equal(t, "500 B", tr.Upload)
	assert.Equal(t, "1.46 KB", tr.Download)
	assert.Equal(t, "1.95 KB", tr.Total)
}

func TestGetLiveConnections_FallsBackToLogs(t *testing.T) {
	runner := &fakeRunner{stdout: `
Oct 19 10:00:01 host xray[1]: from 10.0.0.5:51234 accepted tcp:www.google.com:443
Oct 19 10:00:02 host xray[1]: from 10.0.0.6:51235 accepted tcp:example.com:443
Oct 19 10:00:03 host xray[1]: from 10.0.0.5:51236 accepted tcp:example.com:443
Oct 19 10:00:04 host xray[1]: 192.168.1.1 something unrelated
Oct 19 10:00:05 host xray[1]: Connection closed by 10.0.0.7
`}
	s := newTestStats(fakeStatsSource{err: errBoom}, runner)
	s.Presence = fakePresence{"10.0.0.6", "10.0.0.9"}

	samples := s.GetLiveConnections(context.Background())
	var ips []string
	for _, sm := range samples {
		require.Equal(t, KindPresence, sm.Kind)
		require.Nil(t, sm.Traffic)
		ips = append(ips, sm.Presence.IP)
	}
	assert.Equal(t, []string{"10.0.0.5", "10.0.0.6", "10.0.0.7", "10.0.0.9"}, ips)
	assert.Equal(t, []string{"journalctl", "-u", "xray", "-n", "100", "--no-pager"}, runner.args)
}

func TestGetLiveConnections_AllFailuresDegradeToEmpty(t *testing.T) {
	s := newTestStats(fakeStatsSource{err: errBoom}, &fakeRunner{err: errBoom})
	assert.Empty(t, s.GetLiveConnections(context.Background()))
}

func TestParseLogPresence(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"no marker", "10.0.0.1 rejected", nil},
		{"case insensitive", "ACCEPTED from 1.2.3.4:80", []string{"1.2.3.4"}},
		{"first ip per line", "from 1.1.1.1:1 accepted tcp:2.2.2.2:443", []string{"1.1.1.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogPresence(tt.text))
		})
	}
}

func TestGetConnectionCount(t *testing.T) {
	s := newTestStats(fakeStatsSource{}, &fakeRunner{})
	s.connections = fakeConnections([]gopsnet.ConnectionStat{
		{Status: "ESTABLISHED", Laddr: gopsnet.Addr{IP: "0.0.0.0", Port: 54354}},
		{Status: "ESTABLISHED", Laddr: gopsnet.Addr{IP: "0.0.0.0", Port: 54354}},
		{Status: "LISTEN", Laddr: gopsnet.Addr{IP: "0.0.0.0", Port: 54354}},
		{Status: "ESTABLISHED", Laddr: gopsnet.Addr{IP: "0.0.0.0", Port: 22}},
	}, nil)
	assert.Equal(t, 2, s.GetConnectionCount(context.Background()))

	s.connections = fakeConnections(nil, errBoom)
	assert.Equal(t, 0, s.GetConnectionCount(context.Background()))
}

func TestHostStatus(t *testing.T) {
	runner := &fakeRunner{stdout: "Xray 25.3.6 (Xray, Penetrates Everything.) abc (go1.24 linux/amd64)\n"}
	s := newTestStats(fakeStatsSource{}, runner)

	h := s.HostStatus(context.Background())
	assert.Empty(t, h.XrayVersion, "no binary configured")
	assert.Nil(t, runner.args)

	s.XrayBin = "/usr/local/bin/xray"
	h = s.HostStatus(context.Background())
	assert.Equal(t, "25.3.6", h.XrayVersion)
	assert.Equal(t, []string{"/usr/local/bin/xray", "version"}, runner.args)
	assert.Equal(t, 2, h.CPUCores)

	runner.err = errBoom
	h = s.HostStatus(context.Background())
	assert.Empty(t, h.XrayVersion)
	assert.EqualValues(t, 90061, h.Uptime)
}

func TestSampleHost(t *testing.T) {
	h := sampleHost(context.Background())
	assert.Positive(t, h.CPUCores)
}
