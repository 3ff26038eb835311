package xray

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	statsCmd "github.com/xtls/xray-core/app/stats/command"
	"google.golang.org/grpc"
)

type fakeStatsServer struct {
	statsCmd.UnimplementedStatsServiceServer
	pattern string
}

func (f *fakeStatsServer) QueryStats(ctx context.Context, req *statsCmd.QueryStatsRequest) (*statsCmd.QueryStatsResponse, error) {
	f.pattern = req.GetPattern()
	return &statsCmd.QueryStatsResponse{Stat: []*statsCmd.Stat{
		{Name: "user>>>alice>>>traffic>>>uplink", Value: 500},
		{Name: "user>>>alice>>>traffic>>>downlink", Value: 1500},
		{Name: "user>>>bob>>>traffic>>>uplink", Value: 0},
	}}, nil
}

func TestGRPCStatsSource(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	fake := &fakeStatsServer{}
	statsCmd.RegisterStatsServiceServer(srv, fake)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	s := NewGRPCStatsSource(lis.Addr().String(), 2*time.Second)
	out, err := s.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user>>>", fake.pattern)

	// 输出与 CLI 格式一致，可直接交给 ParseUserStats
	stats := ParseUserStats(out)
	require.Len(t, stats, 2)
	assert.Equal(t, UserTraffic{User: "alice", Uplink: 500, Downlink: 1500}, stats[0])
	assert.Equal(t, "bob", stats[1].User)
}

func TestGRPCStatsSource_Unreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	s := NewGRPCStatsSource(addr, 300*time.Millisecond)
	_, err = s.Query(context.Background())
	assert.Error(t, err)
}
