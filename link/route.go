package link

import "strconv"

// Mode 连接描述使用的路由方式
type Mode int

const (
	ModeTunnel Mode = iota
	ModeDisguise
	ModeDirect
)

func (m Mode) String() string {
	switch m {
	case ModeTunnel:
		return "argo"
	case ModeDisguise:
		return "bug"
	default:
		return "direct"
	}
}

// RouteOptions 选择路由所需的服务器配置
type RouteOptions struct {
	ServerAddr    string
	Port          int
	BugHost       string
	TunnelDomain  string
	TunnelEnabled bool
}

// Route 一种路由方式对应的地址、端口、TLS 与 Host 头
type Route struct {
	Mode    Mode
	Address string
	Port    int
	TLS     bool
	SNI     string
	Host    string
}

// SelectRoute 优先级：隧道（已启用且配置了域名）> 伪装域名 > 直连
func SelectRoute(o RouteOptions) Route {
	switch {
	case o.TunnelEnabled && o.TunnelDomain != "":
		return Route{
			Mode:    ModeTunnel,
			Address: o.TunnelDomain,
			Port:    443,
			TLS:     true,
			SNI:     o.TunnelDomain,
			Host:    o.TunnelDomain,
		}
	case o.BugHost != "":
		return Route{
			Mode:    ModeDisguise,
			Address: o.BugHost,
			Port:    80,
			Host:    o.ServerAddr,
		}
	default:
		return Route{
			Mode:    ModeDirect,
			Address: o.ServerAddr,
			Port:    o.Port,
		}
	}
}

// Label 客户端里显示的名称
func (r Route) Label(accountID string) string {
	switch r.Mode {
	case ModeTunnel:
		return accountID + " [Argo TLS]"
	case ModeDisguise:
		return accountID + " [Bug]"
	default:
		return accountID
	}
}

func (r Route) portString() string {
	return strconv.Itoa(r.Port)
}
