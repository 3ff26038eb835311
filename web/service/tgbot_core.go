package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpproxy"
	"go.uber.org/atomic"

	"github.com/mayugoro/xray/config"
	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/util/common"
	"github.com/mayugoro/xray/util/hashstorage"
	"github.com/mayugoro/xray/web/security"
)

// botAPI Tgbot 用到的 Telegram 接口，*telego.Bot 满足它
type botAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
}

// Tgbot 管理员通过 Telegram 管理账户、隧道与查看状态
type Tgbot struct {
	cfg      *config.Config
	accounts *AccountService
	tunnel   *TunnelService
	stats    *StatsService

	conv     *Conversations
	hostname string

	mu          sync.RWMutex
	api         botAPI
	handler     *th.BotHandler
	cancel      context.CancelFunc
	hashStorage *hashstorage.HashStorage
	forwarder   *LogForwarder
	limiter     *security.RateLimiter
	running     atomic.Bool

	// sendDelay 分页消息之间的间隔
	sendDelay time.Duration
}

// 每个 Telegram 用户的更新速率
var updateRateLimit = security.RateLimitConfig{PerSecond: 2, Burst: 20, IdleTTL: time.Hour}

func NewTgBot(cfg *config.Config, accounts *AccountService, tunnel *TunnelService, stats *StatsService) *Tgbot {
	hostname, _ := os.Hostname()
	return &Tgbot{
		cfg:         cfg,
		accounts:    accounts,
		tunnel:      tunnel,
		stats:       stats,
		conv:        NewConversations(cfg.SessionTimeout),
		hostname:    hostname,
		hashStorage: hashstorage.NewHashStorage(config.CallbackHashTTL),
		limiter:     security.NewRateLimiter(updateRateLimit),
		sendDelay:   500 * time.Millisecond,
	}
}

func (t *Tgbot) IsRunning() bool {
	return t.running.Load()
}

// GetRateLimiter 按用户计数的更新限速器
func (t *Tgbot) GetRateLimiter() *security.RateLimiter {
	return t.limiter
}

// GetHashStorage 回调数据的哈希存储
func (t *Tgbot) GetHashStorage() *hashstorage.HashStorage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hashStorage
}

// Start 连接 Telegram、注册命令并开始长轮询
func (t *Tgbot) Start() error {
	if t.IsRunning() {
		return nil
	}

	token := t.cfg.BotToken
	if len(token) < 10 || !strings.Contains(token, ":") {
		return fmt.Errorf("invalid Telegram bot token format, expected '123456789:ABCdef...'")
	}
	if len(t.cfg.AdminIDs) == 0 {
		return fmt.Errorf("no admin id configured")
	}

	bot, err := NewBot(token, t.cfg.TgProxy)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	meCtx, meCancel := context.WithTimeout(ctx, 10*time.Second)
	me, err := bot.GetMe(meCtx)
	meCancel()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to verify bot token with Telegram API: %w", err)
	}
	logger.Infof("connected to Telegram as @%s", me.Username)

	if err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: botCommands}); err != nil {
		logger.Warning("failed to set bot commands:", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{Timeout: 10})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}
	handler, err := th.NewBotHandler(bot, updates)
	if err != nil {
		cancel()
		return err
	}
	t.registerHandlers(handler)

	t.mu.Lock()
	t.api = bot
	t.handler = handler
	t.cancel = cancel
	t.hashStorage = hashstorage.NewHashStorage(config.CallbackHashTTL)
	t.forwarder = NewLogForwarder(t, logger.ERROR)
	t.mu.Unlock()

	t.running.Store(true)
	go func() {
		defer common.Recover("telegram handler")
		if err := handler.Start(); err != nil {
			logger.Warningf("telegram handler stopped: %v", err)
		}
	}()
	t.forwarder.Start()
	logger.Info("Telegram bot receiver started")
	return nil
}

// Stop 停止长轮询与日志转发
func (t *Tgbot) Stop() {
	if !t.running.CompareAndSwap(true, false) {
		return
	}
	t.mu.Lock()
	handler, cancel, forwarder := t.handler, t.cancel, t.forwarder
	t.handler, t.cancel, t.forwarder = nil, nil, nil
	t.mu.Unlock()

	if forwarder != nil {
		forwarder.Stop()
	}
	if handler != nil {
		_ = handler.Stop()
	}
	if cancel != nil {
		cancel()
	}
	logger.Info("Telegram bot receiver stopped")
}

// NewBot 仅支持 socks5 代理
func NewBot(token, proxyURL string) (*telego.Bot, error) {
	if proxyURL == "" {
		return telego.NewBot(token)
	}
	if !strings.HasPrefix(proxyURL, "socks5://") {
		logger.Warning("invalid socks5 URL, connecting without proxy")
		return telego.NewBot(token)
	}
	if _, err := url.Parse(proxyURL); err != nil {
		logger.Warningf("can't parse proxy URL, connecting without proxy: %v", err)
		return telego.NewBot(token)
	}
	return telego.NewBot(token, telego.WithFastHTTPClient(&fasthttp.Client{
		Dial: fasthttpproxy.FasthttpSocksDialer(proxyURL),
	}))
}

func (t *Tgbot) client() botAPI {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.api
}

// encodeQuery 超过 64 字节的回调数据存入哈希存储
func (t *Tgbot) encodeQuery(query string) string {
	if len(query) <= 64 {
		return query
	}
	return t.GetHashStorage().SaveHash(query)
}

func (t *Tgbot) decodeQuery(query string) (string, error) {
	storage := t.GetHashStorage()
	if !storage.IsHash(query) {
		return query, nil
	}
	decoded, ok := storage.GetValue(query)
	if !ok {
		return "", common.NewError("callback expired, please open the menu again")
	}
	return decoded, nil
}

// SendMsgToTgbot HTML 模式发送，超长消息分页，按钮只附在最后一页
func (t *Tgbot) SendMsgToTgbot(chatID int64, msg string, replyMarkup ...telego.ReplyMarkup) {
	api := t.client()
	if api == nil || !t.IsRunning() {
		return
	}
	if msg == "" {
		logger.Debug("[tgbot] message is empty")
		return
	}

	pages := splitMessage(msg, config.TelegramMessageLimit)
	for n, page := range pages {
		params := &telego.SendMessageParams{
			ChatID:    tu.ID(chatID),
			Text:      page,
			ParseMode: "HTML",
		}
		if len(replyMarkup) > 0 && n == len(pages)-1 {
			params.ReplyMarkup = replyMarkup[0]
		}
		if _, err := api.SendMessage(context.Background(), params); err != nil {
			logger.Warning("error sending tgbot message:", err)
		}
		if n < len(pages)-1 && t.sendDelay > 0 {
			time.Sleep(t.sendDelay)
		}
	}
}

// SendMsgToTgbotAdmins 发给所有管理员
func (t *Tgbot) SendMsgToTgbotAdmins(msg string) {
	for _, id := range t.cfg.AdminIDs {
		t.SendMsgToTgbot(id, msg)
	}
}

// SendPhoto 发送 PNG 图片
func (t *Tgbot) SendPhoto(chatID int64, png []byte, caption string) {
	api := t.client()
	if api == nil || !t.IsRunning() {
		return
	}
	params := tu.Photo(tu.ID(chatID), tu.File(tu.NameReader(bytes.NewReader(png), "vmess.png"))).
		WithCaption(caption).
		WithParseMode("HTML")
	if _, err := api.SendPhoto(context.Background(), params); err != nil {
		logger.Warning("error sending tgbot photo:", err)
	}
}

func (t *Tgbot) answerCallbackQuery(id, text string) {
	api := t.client()
	if api == nil {
		return
	}
	params := telego.AnswerCallbackQueryParams{
		CallbackQueryID: id,
		Text:            text,
	}
	if err := api.AnswerCallbackQuery(context.Background(), &params); err != nil {
		logger.Debugf("answer callback query: %v", err)
	}
}
