package argo

import (
	"fmt"
	"strings"

	"github.com/mayugoro/xray/util/common"
)

const releaseBaseURL = "https://github.com/cloudflare/cloudflared/releases/latest/download/"

var archAssets = map[string]string{
	"x86_64":  "cloudflared-linux-amd64",
	"amd64":   "cloudflared-linux-amd64",
	"aarch64": "cloudflared-linux-arm64",
	"arm64":   "cloudflared-linux-arm64",
	"armv7l":  "cloudflared-linux-arm",
}

// DetectArch 把 `uname -m` 的输出映射为 cloudflared 的发布文件名，不支持的架构直接报错
func DetectArch(machine string) (string, error) {
	machine = strings.TrimSpace(machine)
	asset, ok := archAssets[machine]
	if !ok {
		return "", fmt.Errorf("%w: %q", common.ErrUnsupportedArch, machine)
	}
	return asset, nil
}

// DownloadURL 返回对应架构的下载地址
func DownloadURL(machine string) (string, error) {
	asset, err := DetectArch(machine)
	if err != nil {
		return "", err
	}
	return releaseBaseURL + asset, nil
}
