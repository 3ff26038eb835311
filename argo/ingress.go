package argo

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mayugoro/xray/util/common"
	"github.com/mayugoro/xray/util/sys"
)

// IngressConfig cloudflared 运行配置
type IngressConfig struct {
	Tunnel          string        `yaml:"tunnel"`
	CredentialsFile string        `yaml:"credentials-file"`
	Ingress         []IngressRule `yaml:"ingress"`
}

type IngressRule struct {
	Hostname string `yaml:"hostname,omitempty"`
	Service  string `yaml:"service"`
}

// NewIngressConfig 所有流量转发到本地端口；绑定了域名时在前面加一条按主机名匹配的规则
func NewIngressConfig(tunnelID, credentialsDir, domain string, localPort int) *IngressConfig {
	service := fmt.Sprintf("http://localhost:%d", localPort)
	cfg := &IngressConfig{
		Tunnel:          tunnelID,
		CredentialsFile: filepath.Join(credentialsDir, tunnelID+".json"),
		Ingress:         []IngressRule{{Service: service}},
	}
	if domain != "" {
		cfg.Ingress = append([]IngressRule{{Hostname: domain, Service: service}}, cfg.Ingress...)
	}
	return cfg
}

func (c *IngressConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteFile 原子写入配置文件
func (c *IngressConfig) WriteFile(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return common.Wrapf("Argo.Ingress", err, "marshal tunnel %s", c.Tunnel)
	}
	if err := sys.AtomicWriteFile(path, data, 0o600); err != nil {
		return common.Wrapf("Argo.Ingress", err, "write %s", path)
	}
	return nil
}
