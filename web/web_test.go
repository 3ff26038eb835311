package web

import (
	"io"
	"net/http"
	"testing"

	"github.com/mayugoro/xray/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackAddr(t *testing.T) {
	tests := []struct {
		listen string
		want   string
	}{
		{"127.0.0.1:8080", "127.0.0.1:8080"},
		{"[::1]:8080", "[::1]:8080"},
		{":8080", "127.0.0.1:8080"},
		{"0.0.0.0:8080", "127.0.0.1:8080"},
		{"[2001:db8::1]:9000", "[::1]:9000"},
		{"localhost:8080", "127.0.0.1:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.listen, func(t *testing.T) {
			got, err := loopbackAddr(tt.listen)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := loopbackAddr("no-port")
	assert.Error(t, err)
}

func TestServer_StartServesHealthz(t *testing.T) {
	cfg := &config.Config{HTTPListen: "127.0.0.1:0", LogLevel: config.Info}
	s := NewServer(cfg, nil, nil, nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	resp, err := http.Get("http://" + s.Addr().String() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
}

func TestServer_StopBeforeStart(t *testing.T) {
	s := NewServer(&config.Config{HTTPListen: "127.0.0.1:0"}, nil, nil, nil)
	assert.NoError(t, s.Stop())
	assert.Nil(t, s.Addr())
}
