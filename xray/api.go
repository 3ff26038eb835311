package xray

import (
	"context"
	"fmt"
	"strings"
	"time"

	statsCmd "github.com/xtls/xray-core/app/stats/command"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mayugoro/xray/util/sys"
)

// StatsSource 返回包含 user>>>label>>>direction 记录的文本
type StatsSource interface {
	Query(ctx context.Context) (string, error)
}

// CLIStatsSource 调用 `xray api statsquery`
type CLIStatsSource struct {
	Bin     string
	Server  string
	Timeout time.Duration
	Runner  sys.Runner
}

func NewCLIStatsSource(bin, server string, timeout time.Duration) *CLIStatsSource {
	return &CLIStatsSource{Bin: bin, Server: server, Timeout: timeout, Runner: sys.ExecRunner{}}
}

func (s *CLIStatsSource) Query(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	stdout, stderr, err := s.Runner.Run(ctx, s.Bin, "api", "statsquery", "--server="+s.Server)
	if err != nil {
		return "", fmt.Errorf("statsquery: %s", sys.CommandDetail(nil, stderr, err))
	}
	return string(stdout), nil
}

// GRPCStatsSource 直接调用 xray 的 StatsService
type GRPCStatsSource struct {
	Addr    string
	Timeout time.Duration
}

func NewGRPCStatsSource(addr string, timeout time.Duration) *GRPCStatsSource {
	return &GRPCStatsSource{Addr: addr, Timeout: timeout}
}

func (s *GRPCStatsSource) Query(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	conn, err := grpc.NewClient(s.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return "", fmt.Errorf("dial stats api %s: %w", s.Addr, err)
	}
	defer func() { _ = conn.Close() }()

	client := statsCmd.NewStatsServiceClient(conn)
	resp, err := client.QueryStats(ctx, &statsCmd.QueryStatsRequest{Pattern: "user>>>"})
	if err != nil {
		return "", fmt.Errorf("QueryStats: %w", err)
	}

	var sb strings.Builder
	for _, stat := range resp.GetStat() {
		fmt.Fprintf(&sb, "stat: name: %q value: %d\n", stat.GetName(), stat.GetValue())
	}
	return sb.String(), nil
}
