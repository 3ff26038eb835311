package argo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayugoro/xray/util/common"
)

func TestDownloadURL(t *testing.T) {
	tests := []struct {
		machine string
		url     string
	}{
		{"x86_64", releaseBaseURL + "cloudflared-linux-amd64"},
		{"amd64", releaseBaseURL + "cloudflared-linux-amd64"},
		{"aarch64", releaseBaseURL + "cloudflared-linux-arm64"},
		{"arm64\n", releaseBaseURL + "cloudflared-linux-arm64"},
		{"armv7l", "https://github.com/cloudflare/cloudflared/releases/latest/download/cloudflared-linux-arm"},
	}
	for _, tt := range tests {
		t.Run(tt.machine, func(t *testing.T) {
			url, err := DownloadURL(tt.machine)
			require.NoError(t, err)
			assert.Equal(t, tt.url, url)
		})
	}
}

func TestDetectArch_Unsupported(t *testing.T) {
	for _, machine := range []string{"i686", "mips64", "riscv64", "armv6l", ""} {
		_, err := DetectArch(machine)
		assert.ErrorIs(t, err, common.ErrUnsupportedArch, machine)
	}
}
