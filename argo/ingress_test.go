package argo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mayugoro/xray/util/common"
)

func TestNewIngressConfig_WithDomain(t *testing.T) {
	cfg := NewIngressConfig("abc123", "/root/.cloudflared", "vpn.example.com", 8080)

	data, err := cfg.Marshal()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "abc123", doc["tunnel"])
	assert.Equal(t, "/root/.cloudflared/abc123.json", doc["credentials-file"])
	assert.Equal(t, []any{
		map[string]any{"hostname": "vpn.example.com", "service": "http://localhost:8080"},
		map[string]any{"service": "http://localhost:8080"},
	}, doc["ingress"])
}

func TestNewIngressConfig_CatchAllOnly(t *testing.T) {
	cfg := NewIngressConfig("abc123", "/root/.cloudflared", "", 9000)
	require.Len(t, cfg.Ingress, 1)
	assert.Empty(t, cfg.Ingress[0].Hostname)
	assert.Equal(t, "http://localhost:9000", cfg.Ingress[0].Service)
}

func TestIngressConfig_WriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "argo_edge.yaml")
	cfg := NewIngressConfig("abc123", "/creds", "", 8080)
	require.NoError(t, cfg.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back IngressConfig
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, *cfg, back)
}

func TestIngressConfig_WriteFileError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := NewIngressConfig("abc123", "/creds", "", 8080).WriteFile(filepath.Join(blocker, "argo_edge.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[Argo.Ingress] write ")

	var se *common.ServiceError
	assert.ErrorAs(t, err, &se)
}
