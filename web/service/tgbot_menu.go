package service

import (
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// 回调数据
const (
	cbCreate = "menu_create"
	cbList   = "menu_list"
	cbDelete = "menu_delete"
	cbStatus = "menu_status"
	cbArgo   = "menu_argo"
	cbHelp   = "menu_help"
	cbCancel = "cancel"

	cbArgoInstall = "argo_install"
	cbArgoSetup   = "argo_setup"
	cbArgoQuick   = "argo_quick"
	cbArgoStop    = "argo_stop"
	cbArgoStatus  = "argo_status"
	cbArgoList    = "argo_list"

	// 带账户名的回调，格式 prefix|account
	cbInfoPrefix      = "info|"
	cbDeletePrefix    = "del|"
	cbDeleteOKPrefix  = "delok|"
	maxListButtonRows = 30
)

func mainMenu() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("➕ Create User").WithCallbackData(cbCreate),
			tu.InlineKeyboardButton("📋 List Users").WithCallbackData(cbList),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🗑 Delete User").WithCallbackData(cbDelete),
			tu.InlineKeyboardButton("📊 Monitor").WithCallbackData(cbStatus),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("☁️ Tunnel").WithCallbackData(cbArgo),
			tu.InlineKeyboardButton("ℹ️ Help").WithCallbackData(cbHelp),
		),
	)
}

func (t *Tgbot) tunnelMenu() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🚀 Setup named tunnel").WithCallbackData(cbArgoSetup),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("⚡ Quick tunnel").WithCallbackData(cbArgoQuick),
			tu.InlineKeyboardButton("⏹ Stop").WithCallbackData(cbArgoStop),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("📥 Install").WithCallbackData(cbArgoInstall),
			tu.InlineKeyboardButton("📜 List").WithCallbackData(cbArgoList),
			tu.InlineKeyboardButton("🔄 Status").WithCallbackData(cbArgoStatus),
		),
	)
}

func (t *Tgbot) accountKeyboard(accountID string) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🗑 Delete").WithCallbackData(t.encodeQuery(cbDeletePrefix + accountID)),
			tu.InlineKeyboardButton("📋 List").WithCallbackData(cbList),
		),
	)
}

func (t *Tgbot) confirmDeleteKeyboard(accountID string) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("✅ Yes, delete").WithCallbackData(t.encodeQuery(cbDeleteOKPrefix + accountID)),
			tu.InlineKeyboardButton("❌ No").WithCallbackData(cbCancel),
		),
	)
}

// listKeyboard 每个账户一行按钮，过多时只列前 maxListButtonRows 个
func (t *Tgbot) listKeyboard(views []AccountView) *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	for i, v := range views {
		if i >= maxListButtonRows {
			break
		}
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("ℹ️ "+v.AccountID).WithCallbackData(t.encodeQuery(cbInfoPrefix+v.AccountID)),
			tu.InlineKeyboardButton("🗑").WithCallbackData(t.encodeQuery(cbDeletePrefix+v.AccountID)),
		))
	}
	return tu.InlineKeyboard(rows...)
}
