package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mayugoro/xray/util/common"
)

func (t *Tgbot) onCallback(queryID string, chatID, userID int64, data string) {
	if !t.guard(chatID, userID) {
		t.answerCallbackQuery(queryID, "not authorized")
		return
	}

	decoded, err := t.decodeQuery(data)
	if err != nil {
		t.answerCallbackQuery(queryID, err.Error())
		return
	}
	t.answerCallbackQuery(queryID, "")
	t.answerCallback(chatID, decoded)
}

func (t *Tgbot) answerCallback(chatID int64, data string) {
	switch {
	case strings.HasPrefix(data, cbInfoPrefix):
		t.sendAccountInfo(chatID, strings.TrimPrefix(data, cbInfoPrefix), true)
		return
	case strings.HasPrefix(data, cbDeleteOKPrefix):
		t.conv.Reset(chatID)
		t.deleteAccount(chatID, strings.TrimPrefix(data, cbDeleteOKPrefix))
		return
	case strings.HasPrefix(data, cbDeletePrefix):
		id := strings.TrimPrefix(data, cbDeletePrefix)
		t.SendMsgToTgbot(chatID, fmt.Sprintf("🤔 Delete <code>%s</code>? Its link will stop working.", escapeHTML(id)), t.confirmDeleteKeyboard(id))
		return
	}

	switch data {
	case cbCreate:
		t.conv.Reset(chatID)
		t.startCreate(chatID, nil)
	case cbList:
		t.sendAccountList(chatID)
	case cbDelete:
		t.conv.Set(chatID, StateAwaitDeleteID, "")
		t.SendMsgToTgbot(chatID, "🗑 Send the name of the account to delete, or /cancel.")
	case cbStatus:
		t.sendStatus(chatID)
	case cbArgo:
		t.SendMsgToTgbot(chatID, t.tunnelText(), t.tunnelMenu())
	case cbHelp:
		t.SendMsgToTgbot(chatID, helpText)
	case cbCancel:
		t.conv.Reset(chatID)
		t.SendMsgToTgbot(chatID, "❌ Operation cancelled.")
	case cbArgoInstall:
		t.SendMsgToTgbot(chatID, "⏳ Installing cloudflared...")
		t.sendResult(chatID, t.tunnel.Install(context.Background()))
	case cbArgoSetup:
		if t.cfg.TunnelName == "" {
			t.SendMsgToTgbot(chatID, "❌ TUNNEL_NAME is not configured.")
			return
		}
		t.SendMsgToTgbot(chatID, "⏳ Setting up tunnel <code>"+escapeHTML(t.cfg.TunnelName)+"</code>...")
		t.sendResult(chatID, t.tunnel.Setup(context.Background()))
	case cbArgoQuick:
		t.SendMsgToTgbot(chatID, "⏳ Starting quick tunnel, this can take up to 30 seconds...")
		res := t.tunnel.Quick(context.Background())
		t.sendResult(chatID, res)
		if res.OK {
			t.SendMsgToTgbot(chatID, "ℹ️ New links now use the quick tunnel host. Use /info to get them.")
		}
	case cbArgoStop:
		t.sendResult(chatID, t.tunnel.Stop())
	case cbArgoList:
		t.sendResult(chatID, t.tunnel.List(context.Background()))
	case cbArgoStatus:
		t.SendMsgToTgbot(chatID, t.tunnelText(), t.tunnelMenu())
	default:
		t.SendMsgToTgbot(chatID, "❓ Unknown action.")
	}
}

func (t *Tgbot) sendResult(chatID int64, res common.Result) {
	t.SendMsgToTgbot(chatID, formatResult(res))
}
