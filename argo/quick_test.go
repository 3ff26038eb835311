package argo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayugoro/xray/util/common"
)

func TestQuickTunnel_HostnameFromStream(t *testing.T) {
	f := newControllerFixture(t)
	f.spawner.next = func() *fakeProcess {
		p := newFakeProcess(7, true)
		go func() {
			p.write("2024-01-01T00:00:00Z INF Requesting new quick Tunnel on trycloudflare.com...")
			p.write("2024-01-01T00:00:01Z INF |  https://rapid-owl-42.trycloudflare.com  |")
		}()
		return p
	}

	url, err := f.ctrl.QuickTunnel()
	require.NoError(t, err)
	assert.Equal(t, "https://rapid-owl-42.trycloudflare.com", url)
	assert.Equal(t, []string{"tunnel", "--url", "http://localhost:8080"}, f.spawner.calls[0].args)

	// 成功后进程保持运行
	assert.Equal(t, StateRunning, f.ctrl.State())
	require.NoError(t, f.ctrl.Stop(QuickTunnelName))
}

func TestQuickTunnel_Timeout(t *testing.T) {
	f := newControllerFixture(t)
	f.spawner.next = func() *fakeProcess {
		p := newFakeProcess(8, true)
		go p.write("INF still connecting")
		return p
	}

	start := time.Now()
	_, err := f.ctrl.QuickTunnel()
	assert.ErrorIs(t, err, common.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Empty(t, f.ctrl.Running())
}

func TestQuickTunnel_ProcessExitsEarly(t *testing.T) {
	f := newControllerFixture(t)
	f.spawner.next = func() *fakeProcess {
		p := newFakeProcess(9, true)
		go func() {
			p.write("ERR failed to request quick Tunnel: 429 Too Many Requests")
			p.finish(nil)
		}()
		return p
	}

	_, err := f.ctrl.QuickTunnel()
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrTimeout)
	assert.Contains(t, err.Error(), "429 Too Many Requests")
}
