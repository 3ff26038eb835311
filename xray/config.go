package xray

import (
	"encoding/json"
	"fmt"

	"github.com/mayugoro/xray/util/json_util"
)

// Config xray 配置文档。只建模 inbounds 和 outbounds，其余顶层字段原样保留
type Config struct {
	Inbounds  []*InboundConfig
	Outbounds []json_util.RawMessage

	extra map[string]json_util.RawMessage
}

// InboundConfig 入站配置，未建模的字段（sniffing、streamSettings 等）原样保留
type InboundConfig struct {
	Port     int
	Protocol string
	Tag      string
	Settings *InboundSettings

	extra map[string]json_util.RawMessage
}

// InboundSettings 入站的 settings，除 clients 外原样保留
type InboundSettings struct {
	Clients []Client

	extra map[string]json_util.RawMessage
}

// splitRaw 把对象拆成字段名到原始 JSON 的映射
func splitRaw(data []byte) (map[string]json_util.RawMessage, error) {
	m := map[string]json_util.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func takeField(m map[string]json_util.RawMessage, key string, v any) error {
	raw, ok := m[key]
	if !ok {
		return nil
	}
	delete(m, key)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	return nil
}

func joinRaw(extra map[string]json_util.RawMessage, known map[string]any) ([]byte, error) {
	out := make(map[string]any, len(extra)+len(known))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range known {
		out[k] = v
	}
	return json.Marshal(out)
}

func (c *Config) UnmarshalJSON(data []byte) error {
	m, err := splitRaw(data)
	if err != nil {
		return err
	}
	if err := takeField(m, "inbounds", &c.Inbounds); err != nil {
		return err
	}
	if err := takeField(m, "outbounds", &c.Outbounds); err != nil {
		return err
	}
	c.extra = m
	return nil
}

func (c Config) MarshalJSON() ([]byte, error) {
	inbounds := c.Inbounds
	if inbounds == nil {
		inbounds = []*InboundConfig{}
	}
	known := map[string]any{"inbounds": inbounds}
	if c.Outbounds != nil {
		known["outbounds"] = c.Outbounds
	}
	return joinRaw(c.extra, known)
}

func (i *InboundConfig) UnmarshalJSON(data []byte) error {
	m, err := splitRaw(data)
	if err != nil {
		return err
	}
	for key, dst := range map[string]any{"port": &i.Port, "protocol": &i.Protocol, "tag": &i.Tag, "settings": &i.Settings} {
		if err := takeField(m, key, dst); err != nil {
			return err
		}
	}
	i.extra = m
	return nil
}

func (i InboundConfig) MarshalJSON() ([]byte, error) {
	known := map[string]any{"protocol": i.Protocol}
	if i.Port != 0 {
		known["port"] = i.Port
	}
	if i.Tag != "" {
		known["tag"] = i.Tag
	}
	if i.Settings != nil {
		known["settings"] = i.Settings
	}
	return joinRaw(i.extra, known)
}

func (s *InboundSettings) UnmarshalJSON(data []byte) error {
	m, err := splitRaw(data)
	if err != nil {
		return err
	}
	if err := takeField(m, "clients", &s.Clients); err != nil {
		return err
	}
	s.extra = m
	return nil
}

func (s InboundSettings) MarshalJSON() ([]byte, error) {
	known := map[string]any{}
	if s.Clients != nil {
		known["clients"] = s.Clients
	}
	return joinRaw(s.extra, known)
}

// VMessInbound 返回唯一的 vmess 入站；没有或多于一个都视为配置损坏
func (c *Config) VMessInbound() (*InboundConfig, error) {
	var found *InboundConfig
	for _, in := range c.Inbounds {
		if in == nil || in.Protocol != "vmess" {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("more than one vmess inbound")
		}
		found = in
	}
	if found == nil {
		return nil, fmt.Errorf("vmess inbound not found")
	}
	if found.Settings == nil {
		found.Settings = &InboundSettings{}
	}
	if found.Settings.Clients == nil {
		found.Settings.Clients = []Client{}
	}
	return found, nil
}

// ScaffoldOptions 生成默认配置所需的参数
type ScaffoldOptions struct {
	Port    int
	WSPath  string
	APIPort int
	Listen  string
}

// DefaultConfig 配置文件不存在时使用的最小配置：一个 vmess 入站、stats API 与 freedom 出站
func DefaultConfig(opts ScaffoldOptions) *Config {
	raw := func(v any) json_util.RawMessage {
		b, _ := json.Marshal(v)
		return b
	}

	vmess := &InboundConfig{
		Port:     opts.Port,
		Protocol: "vmess",
		Tag:      "vmess-in",
		Settings: &InboundSettings{Clients: []Client{}},
		extra: map[string]json_util.RawMessage{
			"streamSettings": raw(map[string]any{
				"network":    "ws",
				"security":   "none",
				"wsSettings": map[string]any{"path": opts.WSPath},
			}),
		},
	}
	if opts.Listen != "" {
		vmess.extra["listen"] = raw(opts.Listen)
	}

	cfg := &Config{
		Inbounds:  []*InboundConfig{vmess},
		Outbounds: []json_util.RawMessage{raw(map[string]any{"protocol": "freedom", "tag": "direct"})},
		extra: map[string]json_util.RawMessage{
			"log": raw(map[string]any{"loglevel": "warning"}),
		},
	}

	if opts.APIPort > 0 {
		api := &InboundConfig{
			Port:     opts.APIPort,
			Protocol: "dokodemo-door",
			Tag:      "api",
			Settings: &InboundSettings{extra: map[string]json_util.RawMessage{"address": raw("127.0.0.1")}},
			extra:    map[string]json_util.RawMessage{"listen": raw("127.0.0.1")},
		}
		cfg.Inbounds = append(cfg.Inbounds, api)
		cfg.extra["api"] = raw(map[string]any{"tag": "api", "services": []string{"StatsService"}})
		cfg.extra["stats"] = raw(map[string]any{})
		cfg.extra["policy"] = raw(map[string]any{
			"levels": map[string]any{"0": map[string]any{"statsUserUplink": true, "statsUserDownlink": true}},
			"system": map[string]any{"statsInboundUplink": true, "statsInboundDownlink": true},
		})
		cfg.extra["routing"] = raw(map[string]any{
			"rules": []any{map[string]any{"type": "field", "inboundTag": []string{"api"}, "outboundTag": "api"}},
		})
	}
	return cfg
}
