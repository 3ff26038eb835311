package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// PlaceholderServerAddr VPS_IP 未配置时的默认值
const PlaceholderServerAddr = "YOUR_VPS_IP"

// PublicIPDetector 并发询问多个回显服务，取第一个合法的公网地址
type PublicIPDetector struct {
	services []string
	client   *http.Client
}

func NewPublicIPDetector(timeout time.Duration) *PublicIPDetector {
	return &PublicIPDetector{
		services: []string{
			"https://api.ipify.org",
			"https://ifconfig.me/ip",
			"https://icanhazip.com",
			"https://api.ip.sb/ip",
		},
		client: &http.Client{Timeout: timeout},
	}
}

func (d *PublicIPDetector) GetPublicIP(ctx context.Context) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		ip  string
		err error
	}
	results := make(chan result, len(d.services))
	for _, u := range d.services {
		go func(url string) {
			ip, err := d.fetch(ctx, url)
			results <- result{ip: ip, err: err}
		}(u)
	}

	var lastErr error
	for range d.services {
		res := <-results
		if res.err == nil && ValidatePublicIP(res.ip) {
			return res.ip, nil
		}
		if res.err != nil {
			lastErr = res.err
		}
	}
	return "", fmt.Errorf("public ip detection failed: %v", lastErr)
}

func (d *PublicIPDetector) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "curl/8.5.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: HTTP %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// ValidatePublicIP 只接受可路由的公网地址
func ValidatePublicIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return !(ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() || ip.IsMulticast())
}

// NeedsServerAddr 判断 VPS_IP 是否仍是占位值
func NeedsServerAddr(addr string) bool {
	addr = strings.TrimSpace(addr)
	return addr == "" || addr == PlaceholderServerAddr
}
