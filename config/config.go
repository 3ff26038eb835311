package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mayugoro/xray/util/security"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug   LogLevel = "debug"
	Info    LogLevel = "info"
	Notice  LogLevel = "notice"
	Warning LogLevel = "warning"
	Error   LogLevel = "error"
)

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

// StoreDriver 账户记录存储后端
type StoreDriver string

const (
	StoreJSON   StoreDriver = "json"
	StoreSQLite StoreDriver = "sqlite"
)

// StatsSource 实时流量统计的数据来源
type StatsSource string

const (
	StatsCLI  StatsSource = "cli"
	StatsGRPC StatsSource = "grpc"
)

// Config 启动时构建一次的只读配置，由 bootstrap 注入到各组件
type Config struct {
	BotToken string
	AdminIDs []int64
	TgProxy  string

	ServerAddr string
	BugHost    string
	ArgoDomain string
	UseArgo    bool
	VMessPort  int
	LocalPort  int
	WSPath     string

	XrayConfigPath string
	XrayService    string
	XrayBin        string
	XrayAccessLog  string
	StatsAPIAddr   string
	StatsSource    StatsSource
	StatsPort      int

	CloudflaredPath string
	CloudflaredDir  string
	TunnelName      string
	TunnelConfigDir string

	DBPath      string
	StoreDriver StoreDriver

	DefaultDays    int
	SessionTimeout time.Duration
	ExpiryCron     string
	HTTPListen     string

	LogLevel LogLevel
	LogLocal bool
	LogFile  string
}

// Load 从环境变量（含 .env）和可选的 config.toml 读取配置
func Load() (*Config, error) {
	v := newViper()

	adminIDs, err := parseAdminIDs(v.GetString("admin_id"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BotToken: strings.TrimSpace(v.GetString("bot_token")),
		AdminIDs: adminIDs,
		TgProxy:  v.GetString("tg_proxy"),

		ServerAddr: v.GetString("vps_ip"),
		BugHost:    strings.TrimSpace(v.GetString("bug_host")),
		ArgoDomain: strings.TrimSpace(v.GetString("argo_domain")),
		UseArgo:    v.GetBool("use_argo"),
		VMessPort:  v.GetInt("vmess_port"),
		LocalPort:  v.GetInt("xray_local_port"),
		WSPath:     v.GetString("ws_path"),

		XrayConfigPath: v.GetString("xray_config_path"),
		XrayService:    v.GetString("xray_service"),
		XrayBin:        v.GetString("xray_bin"),
		XrayAccessLog:  v.GetString("xray_access_log"),
		StatsAPIAddr:   v.GetString("stats_api_addr"),
		StatsSource:    StatsSource(strings.ToLower(v.GetString("stats_source"))),
		StatsPort:      v.GetInt("stats_port"),

		CloudflaredPath: v.GetString("cloudflared_path"),
		CloudflaredDir:  v.GetString("cloudflared_dir"),
		TunnelName:      v.GetString("tunnel_name"),
		TunnelConfigDir: v.GetString("tunnel_config_dir"),

		DBPath:      v.GetString("db_path"),
		StoreDriver: StoreDriver(strings.ToLower(v.GetString("db_driver"))),

		DefaultDays:    v.GetInt("default_days"),
		SessionTimeout: v.GetDuration("session_timeout"),
		ExpiryCron:     v.GetString("expiry_cron"),
		HTTPListen:     v.GetString("http_listen"),

		LogLevel: LogLevel(strings.ToLower(v.GetString("log_level"))),
		LogLocal: v.GetBool("log_local"),
		LogFile:  v.GetString("log_file"),
	}
	if v.GetBool("debug") {
		cfg.LogLevel = Debug
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseAdminIDs 解析逗号分隔的管理员 ID，兼容单个 ADMIN_ID
func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin ID format '%s': %v", part, err)
		}
		if id <= 0 {
			return nil, fmt.Errorf("invalid admin ID '%d': must be a positive number", id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Validate 检查必填项与取值范围
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN is not configured")
	}
	if len(c.BotToken) < 10 || !strings.Contains(c.BotToken, ":") {
		return errors.New("invalid BOT_TOKEN format, expected '123456789:ABCdef...'")
	}
	if len(c.AdminIDs) == 0 {
		return errors.New("ADMIN_ID is not configured")
	}
	if !validPort(c.VMessPort) {
		return fmt.Errorf("invalid VMESS_PORT %d", c.VMessPort)
	}
	if !validPort(c.LocalPort) {
		return fmt.Errorf("invalid XRAY_LOCAL_PORT %d", c.LocalPort)
	}
	if c.StatsPort != 0 && !validPort(c.StatsPort) {
		return fmt.Errorf("invalid STATS_PORT %d", c.StatsPort)
	}
	if c.DefaultDays <= 0 {
		return fmt.Errorf("invalid DEFAULT_DAYS %d", c.DefaultDays)
	}
	if c.ArgoDomain != "" {
		if err := security.ValidateDomain(c.ArgoDomain); err != nil {
			return fmt.Errorf("ARGO_DOMAIN: %w", err)
		}
	}
	if c.BugHost != "" {
		if err := security.ValidateDomain(c.BugHost); err != nil {
			return fmt.Errorf("BUG_HOST: %w", err)
		}
	}
	if c.XrayService != "" {
		if err := security.ValidateName(c.XrayService); err != nil {
			return fmt.Errorf("XRAY_SERVICE: %w", err)
		}
	}
	if c.TunnelName != "" {
		if err := security.ValidateName(c.TunnelName); err != nil {
			return fmt.Errorf("TUNNEL_NAME: %w", err)
		}
	}
	switch c.StoreDriver {
	case StoreJSON, StoreSQLite:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.StoreDriver)
	}
	switch c.StatsSource {
	case StatsCLI, StatsGRPC:
	default:
		return fmt.Errorf("unknown STATS_SOURCE %q", c.StatsSource)
	}
	switch c.LogLevel {
	case Debug, Info, Notice, Warning, Error:
	default:
		return fmt.Errorf("unknown LOG_LEVEL %q", c.LogLevel)
	}
	return nil
}

// TunnelEnabled 隧道模式需要同时开启开关并配置域名
func (c *Config) TunnelEnabled() bool {
	return c.UseArgo && c.ArgoDomain != ""
}

// IsAdmin 判断 Telegram 用户是否为管理员
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}
