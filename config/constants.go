package config

import "time"

// =================================================================
// 外部命令超时
// =================================================================

const (
	// TelemetryTimeout 统计查询、日志读取等遥测命令的超时
	TelemetryTimeout = 5 * time.Second

	// ReloadTimeout 重启 Xray 服务的超时
	ReloadTimeout = 30 * time.Second

	// TunnelCommandTimeout cloudflared 管理子命令（create/route/list）的超时
	TunnelCommandTimeout = 60 * time.Second

	// DownloadTimeout 下载 cloudflared 二进制的超时
	DownloadTimeout = 2 * time.Minute

	// TunnelStopGrace 停止隧道时 SIGTERM 之后等待进程退出的时间
	TunnelStopGrace = 5 * time.Second
)

// =================================================================
// 临时隧道（trycloudflare）
// =================================================================

const (
	// QuickTunnelRetries 等待临时域名出现的轮数
	QuickTunnelRetries = 30

	// QuickTunnelInterval 每轮等待间隔，总预算约 30 秒
	QuickTunnelInterval = time.Second
)

// =================================================================
// Telegram Bot
// =================================================================

const (
	// TelegramMessageLimit 单条消息分页长度
	TelegramMessageLimit = 2000

	// CallbackHashTTL 回调数据哈希的保留时间
	CallbackHashTTL = 20 * time.Minute

	// PresenceTTL 访问日志中出现过的 IP 视为在线的时间窗口
	PresenceTTL = 3 * time.Minute

	// LogTailLines 回退统计读取的日志行数
	LogTailLines = 100
)
