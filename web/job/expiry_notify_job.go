package job

import (
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/web/service"
)

// ExpiredLister 列出在某一时刻已过期的账户
type ExpiredLister interface {
	ExpiredAccounts(now time.Time) ([]service.AccountView, error)
}

// AdminNotifier 给所有管理员发消息
type AdminNotifier interface {
	SendMsgToTgbotAdmins(msg string)
}

// ExpiryNotifyJob 定时把新过期的账户发给管理员，同一账户只提醒一次
type ExpiryNotifyJob struct {
	accounts ExpiredLister
	notifier AdminNotifier
	now      func() time.Time

	mu       sync.Mutex
	notified map[string]bool
}

func NewExpiryNotifyJob(accounts ExpiredLister, notifier AdminNotifier) *ExpiryNotifyJob {
	return &ExpiryNotifyJob{
		accounts: accounts,
		notifier: notifier,
		now:      time.Now,
		notified: make(map[string]bool),
	}
}

func (j *ExpiryNotifyJob) Run() {
	expired, err := j.accounts.ExpiredAccounts(j.now())
	if err != nil {
		logger.Warningf("list expired accounts: %v", err)
		return
	}

	j.mu.Lock()
	var fresh []service.AccountView
	current := make(map[string]bool, len(expired))
	for _, a := range expired {
		current[a.AccountID] = true
		if !j.notified[a.AccountID] {
			fresh = append(fresh, a)
		}
	}
	// 已删除或续期的账户不再记住
	j.notified = current
	j.mu.Unlock()

	if len(fresh) == 0 {
		return
	}
	logger.Infof("%d account(s) expired", len(fresh))
	j.notifier.SendMsgToTgbotAdmins(FormatExpired(fresh))
}

// FormatExpired 过期提醒的消息正文（HTML）
func FormatExpired(accounts []service.AccountView) string {
	var sb strings.Builder
	sb.WriteString("⏰ <b>Expired accounts</b>\r\n\r\n")
	for _, a := range accounts {
		fmt.Fprintf(&sb, "• <code>%s</code> expired %s\r\n", html.EscapeString(a.AccountID), a.ExpiryDate.Format("2006-01-02"))
	}
	sb.WriteString("\r\nUse /delete to revoke them.")
	return sb.String()
}
