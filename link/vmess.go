package link

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/mayugoro/xray/util/common"
)

const (
	Scheme      = "vmess://"
	DefaultPath = "/vmess"
)

// Descriptor vmess:// 链接中的 JSON 内容，字段全部为字符串
type Descriptor struct {
	V    string `json:"v"`
	PS   string `json:"ps"`
	Add  string `json:"add"`
	Port string `json:"port"`
	ID   string `json:"id"`
	Aid  string `json:"aid"`
	Scy  string `json:"scy"`
	Net  string `json:"net"`
	Type string `json:"type"`
	Host string `json:"host"`
	Path string `json:"path"`
	TLS  string `json:"tls"`
	SNI  string `json:"sni"`
	ALPN string `json:"alpn"`
}

// NewDescriptor 按路由方式填充描述，path 为空时使用 /vmess
func NewDescriptor(accountID, clientID string, route Route, path string) *Descriptor {
	if path == "" {
		path = DefaultPath
	}
	d := &Descriptor{
		V:    "2",
		PS:   route.Label(accountID),
		Add:  route.Address,
		Port: route.portString(),
		ID:   clientID,
		Aid:  "0",
		Scy:  "auto",
		Net:  "ws",
		Type: "none",
		Host: route.Host,
		Path: path,
		SNI:  route.SNI,
	}
	if route.TLS {
		d.TLS = "tls"
	}
	return d
}

// String 编码为 vmess:// 加紧凑 JSON 的标准 base64
func (d *Descriptor) String() string {
	data, _ := json.Marshal(d)
	return Scheme + base64.StdEncoding.EncodeToString(data)
}

// Encode 生成账户的连接链接
func Encode(accountID, clientID string, route Route, path string) string {
	return NewDescriptor(accountID, clientID, route, path).String()
}

// Decode 解析 vmess:// 链接；前缀、base64 或 JSON 有误，或缺少 id/add 时返回 ErrDecodeFailure
func Decode(s string) (*Descriptor, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, Scheme) {
		return nil, fmt.Errorf("%w: missing %s prefix", common.ErrDecodeFailure, Scheme)
	}
	payload, err := decodeBase64(strings.TrimPrefix(s, Scheme))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecodeFailure, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecodeFailure, err)
	}
	// JSON null 解码为 nil map
	if fields == nil {
		return nil, fmt.Errorf("%w: payload is not an object", common.ErrDecodeFailure)
	}

	get := func(key string) string {
		switch v := fields[key].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		default:
			return ""
		}
	}
	if get("id") == "" || get("add") == "" {
		return nil, fmt.Errorf("%w: missing id or add", common.ErrDecodeFailure)
	}
	return &Descriptor{
		V:    get("v"),
		PS:   get("ps"),
		Add:  get("add"),
		Port: get("port"),
		ID:   get("id"),
		Aid:  get("aid"),
		Scy:  get("scy"),
		Net:  get("net"),
		Type: get("type"),
		Host: get("host"),
		Path: get("path"),
		TLS:  get("tls"),
		SNI:  get("sni"),
		ALPN: get("alpn"),
	}, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, fmt.Errorf("empty payload")
	}
	var lastErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// QRCode 生成链接的 PNG 二维码
func QRCode(link string) ([]byte, error) {
	return qrcode.Encode(link, qrcode.Medium, 256)
}
