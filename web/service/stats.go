package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	gopsnet "github.com/shirou/gopsutil/v4/net"

	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/util/common"
	"github.com/mayugoro/xray/util/sys"
	"github.com/mayugoro/xray/xray"
)

// ConnectionKind 连接样本的类型标签
type ConnectionKind string

const (
	KindTraffic  ConnectionKind = "traffic"
	KindPresence ConnectionKind = "presence"
)

// TrafficSample 来自 stats API 的账户流量
type TrafficSample struct {
	User     string `json:"user"`
	Uplink   int64  `json:"uplink"`
	Downlink int64  `json:"downlink"`
	Upload   string `json:"upload"`
	Download string `json:"download"`
	Total    string `json:"total"`
}

// PresenceSample 只从日志中得知的客户端 IP
type PresenceSample struct {
	IP     string `json:"ip"`
	Status string `json:"status"`
}

// ConnectionSample 按 Kind 区分，Traffic 与 Presence 只有一个非空
type ConnectionSample struct {
	Kind     ConnectionKind  `json:"kind"`
	Traffic  *TrafficSample  `json:"traffic,omitempty"`
	Presence *PresenceSample `json:"presence,omitempty"`
}

// PresenceProvider 实时跟踪 access log 得到的在线 IP
type PresenceProvider interface {
	ActiveIPs() []string
}

var ipv4Re = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)

// StatsService 汇总 stats API、守护进程日志与 socket 表，所有失败都降级为空结果
type StatsService struct {
	Source      xray.StatsSource
	Runner      sys.Runner
	Presence    PresenceProvider
	XrayService string
	XrayBin     string
	StatsPort   int
	Timeout     time.Duration
	LogLines    int

	// connections 默认读取系统 socket 表
	connections func(ctx context.Context) ([]gopsnet.ConnectionStat, error)
	// host 默认通过 gopsutil 采样
	host func(ctx context.Context) HostStatus
}

func NewStatsService(source xray.StatsSource, xrayService string, statsPort int, timeout time.Duration, logLines int) *StatsService {
	return &StatsService{
		Source:      source,
		Runner:      sys.ExecRunner{},
		XrayService: xrayService,
		StatsPort:   statsPort,
		Timeout:     timeout,
		LogLines:    logLines,
		connections: func(ctx context.Context) ([]gopsnet.ConnectionStat, error) {
			return gopsnet.ConnectionsWithContext(ctx, "tcp")
		},
		host: sampleHost,
	}
}

// GetLiveConnections 优先返回有流量的账户；没有时退回到日志中的 IP
func (s *StatsService) GetLiveConnections(ctx context.Context) []ConnectionSample {
	if samples := s.TrafficSamples(ctx); len(samples) > 0 {
		return samples
	}
	return s.PresenceSamples(ctx)
}

// TrafficSamples stats API 中上下行不全为 0 的账户
func (s *StatsService) TrafficSamples(ctx context.Context) []ConnectionSample {
	if s.Source == nil {
		return nil
	}
	text, err := s.Source.Query(ctx)
	if err != nil {
		logger.Debugf("stats query failed: %v", err)
		return nil
	}

	var samples []ConnectionSample
	for _, u := range xray.ParseUserStats(text) {
		if u.Uplink == 0 && u.Downlink == 0 {
			continue
		}
		samples = append(samples, ConnectionSample{
			Kind: KindTraffic,
			Traffic: &TrafficSample{
				User:     u.User,
				Uplink:   u.Uplink,
				Downlink: u.Downlink,
				Upload:   common.FormatTraffic(u.Uplink),
				Download: common.FormatTraffic(u.Downlink),
				Total:    common.FormatTraffic(u.Total()),
			},
		})
	}
	return samples
}

// PresenceSamples journalctl 最近的日志与 access log 实时跟踪结果合并去重
func (s *StatsService) PresenceSamples(ctx context.Context) []ConnectionSample {
	var ips []string
	if s.Runner != nil && s.XrayService != "" {
		ctx, cancel := context.WithTimeout(ctx, s.Timeout)
		stdout, _, err := s.Runner.Run(ctx, "journalctl", "-u", s.XrayService, "-n", itoa(s.LogLines), "--no-pager")
		cancel()
		if err != nil {
			logger.Debugf("journalctl failed: %v", err)
		} else {
			ips = ParseLogPresence(string(stdout))
		}
	}
	if s.Presence != nil {
		ips = mergeUnique(ips, s.Presence.ActiveIPs())
	}

	samples := make([]ConnectionSample, 0, len(ips))
	for _, ip := range ips {
		samples = append(samples, ConnectionSample{
			Kind:     KindPresence,
			Presence: &PresenceSample{IP: ip, Status: "Active"},
		})
	}
	return samples
}

// ParseLogPresence 提取包含 accepted 或 connection 的行中的第一个 IPv4 地址，按首次出现去重
func ParseLogPresence(text string) []string {
	var ips []string
	seen := map[string]bool{}
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "accepted") && !strings.Contains(lower, "connection") {
			continue
		}
		m := ipv4Re.FindStringSubmatch(line)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		ips = append(ips, m[1])
	}
	return ips
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// GetConnectionCount 统计本地端口为 StatsPort 的 ESTABLISHED TCP 连接，出错返回 0
func (s *StatsService) GetConnectionCount(ctx context.Context) int {
	if s.connections == nil || s.StatsPort == 0 {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	conns, err := s.connections(ctx)
	if err != nil {
		logger.Debugf("socket snapshot failed: %v", err)
		return 0
	}
	count := 0
	for _, c := range conns {
		if c.Status == "ESTABLISHED" && c.Laddr.Port == uint32(s.StatsPort) {
			count++
		}
	}
	return count
}
