package link

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayugoro/xray/util/common"
)

func TestSelectRoute(t *testing.T) {
	tests := []struct {
		name string
		opts RouteOptions
		want Route
	}{
		{
			name: "tunnel wins when enabled with domain",
			opts: RouteOptions{ServerAddr: "203.0.113.7", Port: 443, BugHost: "bug.example", TunnelDomain: "vpn.example.com", TunnelEnabled: true},
			want: Route{Mode: ModeTunnel, Address: "vpn.example.com", Port: 443, TLS: true, SNI: "vpn.example.com", Host: "vpn.example.com"},
		},
		{
			name: "tunnel domain without switch falls to disguise",
			opts: RouteOptions{ServerAddr: "203.0.113.7", Port: 443, BugHost: "bug.example", TunnelDomain: "vpn.example.com"},
			want: Route{Mode: ModeDisguise, Address: "bug.example", Port: 80, Host: "203.0.113.7"},
		},
		{
			name: "switch without domain falls to direct",
			opts: RouteOptions{ServerAddr: "203.0.113.7", Port: 8443, TunnelEnabled: true},
			want: Route{Mode: ModeDirect, Address: "203.0.113.7", Port: 8443},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectRoute(tt.opts))
		})
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	routes := []Route{
		SelectRoute(RouteOptions{TunnelDomain: "vpn.example.com", TunnelEnabled: true}),
		SelectRoute(RouteOptions{ServerAddr: "203.0.113.7", BugHost: "bug.example"}),
		SelectRoute(RouteOptions{ServerAddr: "203.0.113.7", Port: 443}),
	}
	for _, r := range routes {
		t.Run(r.Mode.String(), func(t *testing.T) {
			want := NewDescriptor("alice@example.com", "b831381d-6324-4d53-ad4f-8cda48b30811", r, "")
			got, err := Decode(want.String())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestNewDescriptor_Fields(t *testing.T) {
	d := NewDescriptor("bob", "id", SelectRoute(RouteOptions{TunnelDomain: "t.example", TunnelEnabled: true}), "/custom")
	assert.Equal(t, "2", d.V)
	assert.Equal(t, "0", d.Aid)
	assert.Equal(t, "auto", d.Scy)
	assert.Equal(t, "ws", d.Net)
	assert.Equal(t, "none", d.Type)
	assert.Equal(t, "/custom", d.Path)
	assert.Equal(t, "tls", d.TLS)
	assert.Equal(t, "443", d.Port)
	assert.Equal(t, "", d.ALPN)
	assert.Equal(t, "bob [Argo TLS]", d.PS)

	direct := NewDescriptor("bob", "id", SelectRoute(RouteOptions{ServerAddr: "1.2.3.4", Port: 2053}), "")
	assert.Equal(t, "", direct.TLS)
	assert.Equal(t, "", direct.Host)
	assert.Equal(t, "2053", direct.Port)
	assert.Equal(t, DefaultPath, direct.Path)
}

func TestEncode_WireFormat(t *testing.T) {
	s := Encode("bob", "id", SelectRoute(RouteOptions{ServerAddr: "1.2.3.4", Port: 443}), "/vmess")
	require.True(t, strings.HasPrefix(s, "vmess://"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, "vmess://"))
	require.NoError(t, err)
	assert.Equal(t,
		`{"v":"2","ps":"bob","add":"1.2.3.4","port":"443","id":"id","aid":"0","scy":"auto","net":"ws","type":"none","host":"","path":"/vmess","tls":"","sni":"","alpn":""}`,
		string(raw))
}

func TestDecode_Failures(t *testing.T) {
	tests := map[string]string{
		"wrong scheme":    "vless://abc",
		"empty payload":   "vmess://",
		"bad base64":      "vmess://!!!notbase64***",
		"not json":        "vmess://" + base64.StdEncoding.EncodeToString([]byte("hello")),
		"json not object": "vmess://" + base64.StdEncoding.EncodeToString([]byte(`["a"]`)),
		"json null":       "vmess://" + base64.StdEncoding.EncodeToString([]byte(`null`)),
		"empty object":    "vmess://" + base64.StdEncoding.EncodeToString([]byte(`{}`)),
		"missing add":     "vmess://" + base64.StdEncoding.EncodeToString([]byte(`{"v":"2","id":"u"}`)),
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				d, err := Decode(input)
				assert.Nil(t, d)
				assert.ErrorIs(t, err, common.ErrDecodeFailure)
			})
		})
	}
}

func TestDecode_Lenient(t *testing.T) {
	payload := `{"v":2,"ps":"x","add":"1.2.3.4","port":443,"id":"u","aid":0,"net":"ws"}`
	d, err := Decode("vmess://" + base64.RawURLEncoding.EncodeToString([]byte(payload)))
	require.NoError(t, err)
	assert.Equal(t, "443", d.Port)
	assert.Equal(t, "0", d.Aid)
	assert.Equal(t, "2", d.V)
}

func TestQRCode(t *testing.T) {
	png, err := QRCode(Encode("bob", "id", SelectRoute(RouteOptions{ServerAddr: "1.2.3.4", Port: 443}), ""))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
