package xray

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
  "log": {"loglevel": "warning", "access": "/var/log/xray/access.log"},
  "inbounds": [
    {
      "tag": "vmess-ws",
      "port": 8080,
      "listen": "127.0.0.1",
      "protocol": "vmess",
      "settings": {"clients": [{"id": "11111111-1111-1111-1111-111111111111", "email": "alice", "alterId": 0}], "disableInsecureEncryption": false},
      "streamSettings": {"network": "ws", "wsSettings": {"path": "/vmess"}},
      "sniffing": {"enabled": true, "destOverride": ["http", "tls"]}
    },
    {"tag": "api", "port": 10085, "protocol": "dokodemo-door", "settings": {"address": "127.0.0.1"}}
  ],
  "outbounds": [{"protocol": "freedom"}, {"protocol": "blackhole", "tag": "block"}],
  "routing": {"rules": [{"type": "field", "inboundTag": ["api"], "outboundTag": "api"}]}
}`

func TestConfig_RoundTripPreservesUnknownKeys(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, json.Unmarshal([]byte(sampleConfig), cfg))

	out, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, sampleConfig, string(out))
}

func TestConfig_VMessInbound(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, json.Unmarshal([]byte(sampleConfig), cfg))

	in, err := cfg.VMessInbound()
	require.NoError(t, err)
	assert.Equal(t, "vmess-ws", in.Tag)
	assert.Equal(t, 8080, in.Port)
	require.Len(t, in.Settings.Clients, 1)
	assert.Equal(t, "alice", in.Settings.Clients[0].Email)
}

func TestConfig_VMessInboundMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no vmess inbound", `{"inbounds":[{"protocol":"vless","settings":{"clients":[]}}]}`},
		{"no inbounds", `{"outbounds":[]}`},
		{"two vmess inbounds", `{"inbounds":[{"protocol":"vmess"},{"protocol":"vmess"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			require.NoError(t, json.Unmarshal([]byte(tt.doc), cfg))
			_, err := cfg.VMessInbound()
			assert.Error(t, err)
		})
	}
}

func TestConfig_VMessInboundWithoutSettings(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, json.Unmarshal([]byte(`{"inbounds":[{"protocol":"vmess","port":443}]}`), cfg))

	in, err := cfg.VMessInbound()
	require.NoError(t, err)
	assert.NotNil(t, in.Settings.Clients)
	assert.Empty(t, in.Settings.Clients)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(ScaffoldOptions{Port: 443, WSPath: "/vmess", APIPort: 10085})

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Contains(t, generic, "stats")
	assert.Contains(t, generic, "api")
	assert.Contains(t, generic, "policy")

	inbounds := generic["inbounds"].([]any)
	require.Len(t, inbounds, 2)
	vmess := inbounds[0].(map[string]any)
	assert.Equal(t, "vmess", vmess["protocol"])
	assert.Equal(t, float64(443), vmess["port"])
	assert.Equal(t, []any{}, vmess["settings"].(map[string]any)["clients"])
	assert.Equal(t, "/vmess", vmess["streamSettings"].(map[string]any)["wsSettings"].(map[string]any)["path"])

	outbounds := generic["outbounds"].([]any)
	assert.Equal(t, "freedom", outbounds[0].(map[string]any)["protocol"])
}

func TestDefaultConfig_WithoutAPI(t *testing.T) {
	cfg := DefaultConfig(ScaffoldOptions{Port: 443, WSPath: "/vmess"})
	assert.Len(t, cfg.Inbounds, 1)
	_, err := cfg.VMessInbound()
	assert.NoError(t, err)
}
