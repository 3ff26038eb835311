package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/util/common"
)

const notAuthorized = "❌ You are not authorized to use this bot."

var botCommands = []telego.BotCommand{
	{Command: "start", Description: "Show the main menu"},
	{Command: "create", Description: "Create a VMess account: /create [name] [days]"},
	{Command: "list", Description: "List accounts"},
	{Command: "delete", Description: "Delete an account: /delete [name]"},
	{Command: "info", Description: "Account details and link: /info <name>"},
	{Command: "status", Description: "Live connections and traffic"},
	{Command: "argo", Description: "Cloudflare tunnel menu"},
	{Command: "sync", Description: "Compare records with the xray config"},
	{Command: "logs", Description: "Recent log lines: /logs [count]"},
	{Command: "cancel", Description: "Cancel the current operation"},
	{Command: "help", Description: "Show help"},
}

func (t *Tgbot) registerHandlers(bh *th.BotHandler) {
	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		defer common.Recover("tgbot message")
		if message.From == nil || message.Text == "" {
			return nil
		}
		t.onMessage(message.Chat.ID, message.From.ID, message.Text)
		return nil
	}, th.AnyMessage())

	bh.HandleCallbackQuery(func(ctx *th.Context, query telego.CallbackQuery) error {
		defer common.Recover("tgbot callback")
		chatID := query.From.ID
		if query.Message != nil {
			chatID = query.Message.GetChat().ID
		}
		t.onCallback(query.ID, chatID, query.From.ID, query.Data)
		return nil
	}, th.AnyCallbackQuery())
}

// guard 所有更新进入处理逻辑前的唯一入口检查。先按用户限流，超限的更新直接丢弃且不回复；
// 非管理员只会收到拒绝消息
func (t *Tgbot) guard(chatID, userID int64) bool {
	if !t.limiter.Allow(strconv.FormatInt(userID, 10)) {
		logger.Debugf("tgbot update from user %d dropped by rate limit", userID)
		return false
	}
	if t.cfg.IsAdmin(userID) {
		return true
	}
	logger.Warningf("rejected tgbot update from user %d", userID)
	t.SendMsgToTgbot(chatID, notAuthorized)
	return false
}

func (t *Tgbot) onMessage(chatID, userID int64, text string) {
	if !t.guard(chatID, userID) {
		return
	}
	if strings.HasPrefix(text, "/") {
		command, _, args := tu.ParseCommand(text)
		if command != "" {
			t.answerCommand(chatID, command, args)
			return
		}
	}
	t.answerText(chatID, strings.TrimSpace(text))
}

func (t *Tgbot) answerCommand(chatID int64, command string, args []string) {
	// 任何命令都会结束正在进行的多步输入
	wasActive := t.conv.Reset(chatID)

	switch command {
	case "start":
		t.SendMsgToTgbot(chatID, t.welcomeText(), mainMenu())
	case "help":
		t.SendMsgToTgbot(chatID, helpText)
	case "create":
		t.startCreate(chatID, args)
	case "list":
		t.sendAccountList(chatID)
	case "delete":
		if len(args) > 0 {
			t.deleteAccount(chatID, args[0])
			return
		}
		t.conv.Set(chatID, StateAwaitDeleteID, "")
		t.SendMsgToTgbot(chatID, "🗑 Send the name of the account to delete, or /cancel.")
	case "info":
		if len(args) == 0 {
			t.SendMsgToTgbot(chatID, "Usage: /info &lt;name&gt;")
			return
		}
		t.sendAccountInfo(chatID, args[0], true)
	case "status":
		t.sendStatus(chatID)
	case "argo":
		t.SendMsgToTgbot(chatID, t.tunnelText(), t.tunnelMenu())
	case "sync":
		t.sendReconcile(chatID)
	case "logs":
		t.sendLogs(chatID, args)
	case "cancel":
		if wasActive {
			t.SendMsgToTgbot(chatID, "❌ Operation cancelled.")
		} else {
			t.SendMsgToTgbot(chatID, "Nothing to cancel.")
		}
	default:
		t.SendMsgToTgbot(chatID, "❓ Unknown command. See /help")
	}
}

// startCreate /create [name] [days]：参数不全时进入对应的等待状态
func (t *Tgbot) startCreate(chatID int64, args []string) {
	switch len(args) {
	case 0:
		t.conv.Set(chatID, StateAwaitCreateID, "")
		t.SendMsgToTgbot(chatID, "➕ Send the email or name for the new account.\nSend <code>auto</code> to generate one, or /cancel.")
	case 1:
		t.acceptCreateID(chatID, args[0])
	default:
		days, err := strconv.Atoi(args[1])
		if err != nil || days <= 0 {
			t.SendMsgToTgbot(chatID, "❌ Days must be a positive number. Usage: /create [name] [days]")
			return
		}
		t.createAccount(chatID, normalizeCreateID(args[0]), days)
	}
}

func normalizeCreateID(s string) string {
	if strings.EqualFold(s, "auto") {
		return ""
	}
	return s
}

// acceptCreateID 校验名称并进入等待天数状态；无效时停留在当前状态
func (t *Tgbot) acceptCreateID(chatID int64, text string) {
	id := normalizeCreateID(text)
	if id != "" && !accountIDRe.MatchString(id) {
		t.conv.Set(chatID, StateAwaitCreateID, "")
		t.SendMsgToTgbot(chatID, "❌ Invalid name. Use letters, digits and _ . @ + - (max 64). Try again:")
		return
	}
	if id != "" {
		if _, err := t.accounts.Get(id); err == nil {
			t.conv.Set(chatID, StateAwaitCreateID, "")
			t.SendMsgToTgbot(chatID, "❌ User already exists! Please use a different name:")
			return
		}
	}
	t.conv.Set(chatID, StateAwaitCreateDays, id)
	t.SendMsgToTgbot(chatID, fmt.Sprintf("📅 How many days should it be valid? Send a number (e.g. %d):", t.defaultDays()))
}

func (t *Tgbot) defaultDays() int {
	if t.cfg.DefaultDays > 0 {
		return t.cfg.DefaultDays
	}
	return 30
}

// answerText 非命令文本按会话状态处理
func (t *Tgbot) answerText(chatID int64, text string) {
	session, expired := t.conv.Get(chatID)
	if expired {
		t.SendMsgToTgbot(chatID, "⌛ The previous operation timed out. Please start again.", mainMenu())
		return
	}

	switch session.State {
	case StateAwaitCreateID:
		t.acceptCreateID(chatID, text)
	case StateAwaitCreateDays:
		days, err := strconv.Atoi(text)
		if err != nil || days <= 0 {
			t.conv.Set(chatID, StateAwaitCreateDays, session.PendingID)
			t.SendMsgToTgbot(chatID, "❌ Invalid number. Please send a positive number:")
			return
		}
		t.conv.Reset(chatID)
		t.createAccount(chatID, session.PendingID, days)
	case StateAwaitDeleteID:
		t.conv.Reset(chatID)
		t.deleteAccount(chatID, text)
	default:
		t.SendMsgToTgbot(chatID, "Use the menu below or /help.", mainMenu())
	}
}

func (t *Tgbot) createAccount(chatID int64, accountID string, days int) {
	view, res := t.accounts.Create(context.Background(), accountID, days)
	switch {
	case res.OK && res.Code == common.ErrCodeAlreadyExists:
		t.SendMsgToTgbot(chatID, "ℹ️ "+escapeHTML(res.Detail)+"\n\n"+formatAccount(view))
	case res.OK:
		t.SendMsgToTgbot(chatID, "✅ <b>User created successfully!</b>\n\n"+formatAccount(view))
		t.sendQRCode(chatID, view)
	case view != nil:
		// 配置已写入但 xray 未重启，账户仍然可用
		t.SendMsgToTgbot(chatID, "⚠️ Account saved but xray was not restarted:\n<code>"+escapeHTML(res.Detail)+"</code>\n\n"+formatAccount(view))
	default:
		t.SendMsgToTgbot(chatID, "❌ Failed to create account: <code>"+escapeHTML(res.Detail)+"</code>")
	}
}

func (t *Tgbot) deleteAccount(chatID int64, accountID string) {
	res := t.accounts.Delete(context.Background(), accountID)
	switch {
	case res.OK && res.Code != "":
		t.SendMsgToTgbot(chatID, "⚠️ "+escapeHTML(res.Detail))
	case res.OK:
		t.SendMsgToTgbot(chatID, fmt.Sprintf("✅ User <code>%s</code> has been deleted successfully!", escapeHTML(accountID)))
	case res.Code == common.ErrCodeNotFound:
		t.SendMsgToTgbot(chatID, "❌ User not found!")
	default:
		t.SendMsgToTgbot(chatID, "❌ Failed to delete: <code>"+escapeHTML(res.Detail)+"</code>")
	}
}

func (t *Tgbot) sendAccountInfo(chatID int64, accountID string, withQR bool) {
	view, err := t.accounts.Get(accountID)
	if err != nil {
		if common.IsNotFoundError(err) {
			t.SendMsgToTgbot(chatID, "❌ User not found!")
			return
		}
		t.SendMsgToTgbot(chatID, "❌ "+escapeHTML(err.Error()))
		return
	}
	t.SendMsgToTgbot(chatID, formatAccount(view), t.accountKeyboard(view.AccountID))
	if withQR {
		t.sendQRCode(chatID, view)
	}
}

func (t *Tgbot) sendQRCode(chatID int64, view *AccountView) {
	png, err := qrCode(view.Link)
	if err != nil {
		logger.Warningf("qr code for %s: %v", view.AccountID, err)
		return
	}
	t.SendPhoto(chatID, png, "📱 <code>"+escapeHTML(view.AccountID)+"</code>")
}

func (t *Tgbot) sendAccountList(chatID int64) {
	views, err := t.accounts.List()
	if err != nil {
		t.SendMsgToTgbot(chatID, "❌ "+escapeHTML(err.Error()))
		return
	}
	if len(views) == 0 {
		t.SendMsgToTgbot(chatID, "📭 No users found.")
		return
	}
	t.SendMsgToTgbot(chatID, formatAccountList(views), t.listKeyboard(views))
}

func (t *Tgbot) sendStatus(chatID int64) {
	ctx := context.Background()
	samples := t.stats.GetLiveConnections(ctx)
	count := t.stats.GetConnectionCount(ctx)
	hostStatus := t.stats.HostStatus(ctx)
	t.SendMsgToTgbot(chatID, formatStatus(t.hostname, hostStatus, count, samples, t.tunnel.Status()))
}

func (t *Tgbot) sendReconcile(chatID int64) {
	report, err := t.accounts.Reconcile()
	if err != nil {
		t.SendMsgToTgbot(chatID, "❌ "+escapeHTML(err.Error()))
		return
	}
	t.SendMsgToTgbot(chatID, formatReconcile(report))
}

func (t *Tgbot) sendLogs(chatID int64, args []string) {
	count := 20
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 && n <= 200 {
			count = n
		}
	}
	lines := logger.GetLogs(count, "info")
	if len(lines) == 0 {
		t.SendMsgToTgbot(chatID, "No log lines yet.")
		return
	}
	// GetLogs 从新到旧，显示时改为时间顺序
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	t.SendMsgToTgbot(chatID, "<pre>"+escapeHTML(strings.Join(lines, "\n"))+"</pre>")
}
