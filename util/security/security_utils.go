// Package security 校验会被拼进外部命令参数的配置值
package security

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	domainRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*$`)
	// systemd 单元名与 cloudflared 隧道名共用的字符集
	nameRe = regexp.MustCompile(`^[A-Za-z0-9@._:-]{1,128}$`)
)

// ValidatePort 验证端口号是否在有效范围内
func ValidatePort(portStr string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return 0, fmt.Errorf("port must be a number: %q", portStr)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port must be within 1-65535: %d", port)
	}
	return port, nil
}

// ValidateDomain 验证域名格式，拒绝带协议或路径的输入
func ValidateDomain(domain string) error {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return fmt.Errorf("domain is empty")
	}
	if len(domain) > 253 || !domainRe.MatchString(domain) {
		return fmt.Errorf("invalid domain %q", domain)
	}
	return nil
}

// ValidateName 服务名、隧道名等不能以 - 开头，避免被当作命令行选项
func ValidateName(name string) error {
	if !nameRe.MatchString(name) || strings.HasPrefix(name, "-") {
		return fmt.Errorf("invalid name %q", name)
	}
	return nil
}
