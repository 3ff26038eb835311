package service

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/xray"
)

// HostStatus 主机资源概况，采样失败的字段保持零值
type HostStatus struct {
	CPU         float64 `json:"cpu"`
	CPUCores    int     `json:"cpu_cores"`
	MemUsed     uint64  `json:"mem_used"`
	MemTotal    uint64  `json:"mem_total"`
	Load1       float64 `json:"load1"`
	Uptime      uint64  `json:"uptime"`
	XrayVersion string  `json:"xray_version,omitempty"`
}

func sampleHost(ctx context.Context) HostStatus {
	status := HostStatus{CPUCores: runtime.NumCPU()}

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		logger.Debug("get cpu percent failed:", err)
	} else if len(percents) > 0 {
		status.CPU = percents[0]
	}

	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		logger.Debug("get virtual memory failed:", err)
	} else {
		status.MemUsed = memInfo.Used
		status.MemTotal = memInfo.Total
	}

	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		logger.Debug("get load average failed:", err)
	} else {
		status.Load1 = avg.Load1
	}

	uptime, err := host.UptimeWithContext(ctx)
	if err != nil {
		logger.Debug("get uptime failed:", err)
	} else {
		status.Uptime = uptime
	}
	return status
}

// HostStatus 采样主机资源并附带 xray 版本，版本获取失败时留空
func (s *StatsService) HostStatus(ctx context.Context) HostStatus {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	status := s.host(ctx)
	if s.XrayBin != "" && s.Runner != nil {
		if v, err := xray.Version(ctx, s.Runner, s.XrayBin); err == nil {
			status.XrayVersion = v
		} else {
			logger.Debug(err)
		}
	}
	return status
}
