package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mayugoro/xray/config"
	"github.com/mayugoro/xray/link"
	"github.com/mayugoro/xray/util/common"
	"github.com/mayugoro/xray/xray"
)

const helpText = `📖 <b>Commands</b>

/start - main menu
/create [name] [days] - create an account (step by step without arguments)
/list - list accounts
/delete [name] - delete an account
/info &lt;name&gt; - account details, link and QR code
/status - live connections and traffic
/argo - Cloudflare tunnel menu
/sync - compare account records with the xray config
/logs [count] - recent log lines
/cancel - cancel the current operation

Send <code>auto</code> as the name to generate one.`

var qrCode = link.QRCode

func (t *Tgbot) welcomeText() string {
	route := t.accounts.Route()
	return fmt.Sprintf("👋 <b>%s</b> %s\n\n🖥 Host: <code>%s</code>\n🔗 Link mode: <b>%s</b>\n\nChoose an option:",
		escapeHTML(config.GetName()), escapeHTML(config.GetVersion()), escapeHTML(t.hostname), route.Mode)
}

func (t *Tgbot) tunnelText() string {
	st := t.tunnel.Status()
	var sb strings.Builder
	sb.WriteString("☁️ <b>Cloudflare tunnel</b>\n\n")
	fmt.Fprintf(&sb, "State: <b>%s</b>\n", st.State)
	if st.Name != "" {
		fmt.Fprintf(&sb, "Name: <code>%s</code>\n", escapeHTML(st.Name))
	}
	if st.Domain != "" {
		fmt.Fprintf(&sb, "Domain: <code>%s</code>\n", escapeHTML(st.Domain))
	}
	if st.QuickHost != "" {
		fmt.Fprintf(&sb, "Quick host: <code>%s</code>\n", escapeHTML(st.QuickHost))
	}
	for _, r := range st.Running {
		fmt.Fprintf(&sb, "▶️ %s (pid %d, since %s)\n", escapeHTML(r.Name), r.Pid, r.Started.Format("01-02 15:04"))
	}
	return sb.String()
}

func formatAccount(v *AccountView) string {
	if v == nil {
		return ""
	}
	status := "🟢 Active"
	if v.Expired {
		status = "🔴 Expired"
	}
	return fmt.Sprintf("👤 <b>Name:</b> <code>%s</code>\n🆔 <b>UUID:</b> <code>%s</code>\n📅 <b>Created:</b> %s\n⏳ <b>Expires:</b> %s (%d days left)\n%s\n🔗 <b>Mode:</b> %s\n\n<code>%s</code>",
		escapeHTML(v.AccountID),
		v.ClientID,
		v.CreatedAt.Format("2006-01-02 15:04:05"),
		v.ExpiryDate.Format("2006-01-02"),
		v.DaysLeft,
		status,
		v.Mode,
		escapeHTML(v.Link),
	)
}

func formatAccountList(views []AccountView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 <b>Users (%d)</b>\r\n\r\n", len(views))
	for i, v := range views {
		icon := "🟢"
		if v.Expired {
			icon = "🔴"
		}
		fmt.Fprintf(&sb, "%d. %s <code>%s</code>\nExpires: %s (%d days left)\r\n\r\n",
			i+1, icon, escapeHTML(v.AccountID), v.ExpiryDate.Format("2006-01-02"), v.DaysLeft)
	}
	return sb.String()
}

func formatStatus(hostname string, h HostStatus, count int, samples []ConnectionSample, tunnel TunnelStatus) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 <b>Monitor</b> <code>%s</code>\n\n", escapeHTML(hostname))
	fmt.Fprintf(&sb, "🖥 CPU %.1f%% (%d cores)  load %.2f\n", h.CPU, h.CPUCores, h.Load1)
	fmt.Fprintf(&sb, "💾 Memory %s / %s\n", common.FormatTraffic(int64(h.MemUsed)), common.FormatTraffic(int64(h.MemTotal)))
	fmt.Fprintf(&sb, "⏱ Uptime %s\n", formatUptime(h.Uptime))
	if h.XrayVersion != "" {
		fmt.Fprintf(&sb, "🚀 Xray <code>%s</code>\n", escapeHTML(h.XrayVersion))
	}
	fmt.Fprintf(&sb, "🔌 Established connections: <b>%d</b>\n", count)
	fmt.Fprintf(&sb, "☁️ Tunnel: <b>%s</b>\r\n\r\n", tunnel.State)

	if len(samples) == 0 {
		sb.WriteString("No active users.")
		return sb.String()
	}
	for _, s := range samples {
		switch s.Kind {
		case KindTraffic:
			tr := s.Traffic
			fmt.Fprintf(&sb, "👤 <code>%s</code>\n⬆️ %s  ⬇️ %s  Σ %s\r\n\r\n", escapeHTML(tr.User), tr.Upload, tr.Download, tr.Total)
		case KindPresence:
			fmt.Fprintf(&sb, "🌐 <code>%s</code> %s\n", s.Presence.IP, s.Presence.Status)
		}
	}
	return sb.String()
}

func formatUptime(seconds uint64) string {
	d := seconds / 86400
	h := seconds % 86400 / 3600
	m := seconds % 3600 / 60
	if d > 0 {
		return fmt.Sprintf("%dd %dh %dm", d, h, m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

func formatReconcile(r *xray.ReconcileReport) string {
	if r.Consistent() {
		return "✅ Account records and xray config are in sync."
	}
	var sb strings.Builder
	sb.WriteString("⚠️ <b>Inconsistencies found</b>\r\n\r\n")
	if len(r.MissingInConfig) > 0 {
		sb.WriteString("Records without a client in the xray config:\n")
		for _, id := range r.MissingInConfig {
			fmt.Fprintf(&sb, "• <code>%s</code>\n", escapeHTML(id))
		}
		sb.WriteString("\r\n\r\n")
	}
	if len(r.Orphans) > 0 {
		sb.WriteString("Clients in the xray config without a record:\n")
		for _, c := range r.Orphans {
			fmt.Fprintf(&sb, "• <code>%s</code> %s\n", c.ID, escapeHTML(c.Email))
		}
		sb.WriteString("\r\n\r\n")
	}
	if len(r.LabelMismatch) > 0 {
		sb.WriteString("Records whose client carries another email:\n")
		for _, id := range r.LabelMismatch {
			fmt.Fprintf(&sb, "• <code>%s</code>\n", escapeHTML(id))
		}
	}
	return sb.String()
}

func formatResult(res common.Result) string {
	icon := "✅"
	switch {
	case !res.OK:
		icon = "❌"
	case res.Code != "":
		icon = "ℹ️"
	}
	return icon + " <code>" + escapeHTML(res.Detail) + "</code>"
}

// splitMessage 按空行分页，单段超长时按字符硬切
func splitMessage(msg string, limit int) []string {
	if len(msg) <= limit {
		return []string{msg}
	}

	var pages []string
	for _, part := range strings.Split(msg, "\r\n\r\n") {
		for _, chunk := range hardSplit(part, limit) {
			last := len(pages) - 1
			if last < 0 || len(pages[last])+len("\r\n\r\n")+len(chunk) > limit {
				pages = append(pages, chunk)
				continue
			}
			pages[last] += "\r\n\r\n" + chunk
		}
	}
	for len(pages) > 0 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

func hardSplit(s string, limit int) []string {
	var out []string
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	return append(out, s)
}
