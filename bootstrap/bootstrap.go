package bootstrap

import (
	"context"
	"net"
	"time"

	"github.com/mayugoro/xray/argo"
	"github.com/mayugoro/xray/config"
	"github.com/mayugoro/xray/database"
	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/util/security"
	"github.com/mayugoro/xray/web/job"
	"github.com/mayugoro/xray/web/service"
	"github.com/mayugoro/xray/xray"

	"github.com/joho/godotenv"
)

const publicIPTimeout = 5 * time.Second

// App 封装运行时所需的全部组件，启动时构建一次
type App struct {
	Config   *config.Config
	Store    database.AccountStore
	Sync     *xray.ConfigSynchronizer
	Argo     *argo.Controller
	Accounts *service.AccountService
	Tunnel   *service.TunnelService
	Stats    *service.StatsService
	TgBot    *service.Tgbot
	Streamer *job.LogStreamer
}

// NewApp 按依赖顺序组装各服务
func NewApp(cfg *config.Config, store database.AccountStore) *App {
	scaffold := xray.ScaffoldOptions{
		Port:    cfg.VMessPort,
		WSPath:  cfg.WSPath,
		APIPort: apiPort(cfg.StatsAPIAddr),
	}
	if cfg.TunnelEnabled() {
		// cloudflared 转发到本地端口，入站只监听回环
		scaffold.Port = cfg.LocalPort
		scaffold.Listen = "127.0.0.1"
	}
	reloader := xray.NewSystemdReloader(cfg.XrayService, config.ReloadTimeout)
	syncer := xray.NewConfigSynchronizer(cfg.XrayConfigPath, scaffold, reloader, store)

	ctrl := argo.NewController(argo.Options{
		BinPath:         cfg.CloudflaredPath,
		CredentialsDir:  cfg.CloudflaredDir,
		ConfigDir:       cfg.TunnelConfigDir,
		LocalPort:       cfg.LocalPort,
		CommandTimeout:  config.TunnelCommandTimeout,
		DownloadTimeout: config.DownloadTimeout,
		StopGrace:       config.TunnelStopGrace,
		QuickRetries:    config.QuickTunnelRetries,
		QuickInterval:   config.QuickTunnelInterval,
	})

	accounts := service.NewAccountService(cfg, store, syncer)
	tunnel := service.NewTunnelService(cfg, ctrl)
	accounts.SetDomainProvider(tunnel)

	stats := service.NewStatsService(newStatsSource(cfg), cfg.XrayService, cfg.StatsPort, config.TelemetryTimeout, config.LogTailLines)
	stats.XrayBin = cfg.XrayBin

	var streamer *job.LogStreamer
	if cfg.XrayAccessLog != "" {
		streamer = job.NewLogStreamer(cfg.XrayAccessLog, config.PresenceTTL)
		stats.Presence = streamer
	}

	return &App{
		Config:   cfg,
		Store:    store,
		Sync:     syncer,
		Argo:     ctrl,
		Accounts: accounts,
		Tunnel:   tunnel,
		Stats:    stats,
		TgBot:    service.NewTgBot(cfg, accounts, tunnel, stats),
		Streamer: streamer,
	}
}

func newStatsSource(cfg *config.Config) xray.StatsSource {
	if cfg.StatsSource == config.StatsGRPC {
		return xray.NewGRPCStatsSource(cfg.StatsAPIAddr, config.TelemetryTimeout)
	}
	return xray.NewCLIStatsSource(cfg.XrayBin, cfg.StatsAPIAddr, config.TelemetryTimeout)
}

// apiPort 取 stats API 地址中的端口，解析失败返回 0，此时脚手架不生成 API 入站
func apiPort(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	p, err := security.ValidatePort(port)
	if err != nil {
		return 0
	}
	return p
}

// LoadEnv 加载 .env，文件不存在时忽略
func LoadEnv() {
	_ = godotenv.Load()
}

// InitLogger 根据配置初始化日志系统
func InitLogger(cfg *config.Config) {
	logger.InitLogger(logger.ParseLevel(string(cfg.LogLevel)), cfg.LogLocal, cfg.LogFile)
}

// LoadConfig 读取环境与配置文件，并初始化日志
func LoadConfig() (*config.Config, error) {
	LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	InitLogger(cfg)
	return cfg, nil
}

// Initialize 执行完整的应用初始化流程
func Initialize() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	logger.Infof("Starting %v %v", config.GetName(), config.GetVersion())

	store, err := database.OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	resolveServerAddr(cfg)
	resolveAccessLog(cfg)
	return NewApp(cfg, store), nil
}

// resolveServerAddr VPS_IP 未配置时探测公网地址，失败则保留占位值
func resolveServerAddr(cfg *config.Config) {
	if !service.NeedsServerAddr(cfg.ServerAddr) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publicIPTimeout)
	defer cancel()
	ip, err := service.NewPublicIPDetector(publicIPTimeout).GetPublicIP(ctx)
	if err != nil {
		logger.Warning("VPS_IP is not set and", err)
		return
	}
	logger.Infof("VPS_IP is not set, using detected public address %s", ip)
	cfg.ServerAddr = ip
}

// resolveAccessLog XRAY_ACCESS_LOG 为空时读取 xray 配置中的 log.access
func resolveAccessLog(cfg *config.Config) {
	if cfg.XrayAccessLog != "" {
		return
	}
	path, err := xray.AccessLogPath(cfg.XrayConfigPath)
	if err != nil {
		logger.Warning("read access log path:", err)
		return
	}
	if path != "" {
		logger.Infof("following xray access log %s", path)
		cfg.XrayAccessLog = path
	}
}
