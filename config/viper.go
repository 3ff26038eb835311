package config

import (
	"strings"

	"github.com/spf13/viper"
)

// newViper 每次加载创建独立实例，避免包级状态
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath("/etc/vmess-bot")
	v.AddConfigPath(".")

	// 环境变量与原有 .env 键名一致，例如 BOT_TOKEN、VPS_IP
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	// 配置文件是可选的，不存在时静默使用默认值
	_ = v.ReadInConfig()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("vps_ip", "YOUR_VPS_IP")
	v.SetDefault("bug_host", "")
	v.SetDefault("argo_domain", "")
	v.SetDefault("use_argo", false)
	v.SetDefault("vmess_port", 443)
	v.SetDefault("xray_local_port", 8080)
	v.SetDefault("ws_path", "/vmess")

	v.SetDefault("xray_config_path", "/usr/local/etc/xray/config.json")
	v.SetDefault("xray_service", "xray")
	v.SetDefault("xray_bin", "xray")
	v.SetDefault("xray_access_log", "")
	v.SetDefault("stats_api_addr", "127.0.0.1:10085")
	v.SetDefault("stats_source", string(StatsCLI))
	v.SetDefault("stats_port", 54354)

	v.SetDefault("cloudflared_path", "/usr/local/bin/cloudflared")
	v.SetDefault("cloudflared_dir", "/root/.cloudflared")
	v.SetDefault("tunnel_name", "vmess-tunnel")
	v.SetDefault("tunnel_config_dir", "/tmp")

	v.SetDefault("db_path", "users.json")
	v.SetDefault("db_driver", string(StoreJSON))

	v.SetDefault("default_days", 30)
	v.SetDefault("session_timeout", "5m")
	v.SetDefault("expiry_cron", "@daily")
	v.SetDefault("http_listen", "")

	v.SetDefault("debug", false)
	v.SetDefault("log_level", string(Info))
	v.SetDefault("log_local", false)
	v.SetDefault("log_file", "vmess-bot.log")
}
