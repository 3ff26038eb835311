package service

import (
	"context"
	"fmt"
	"html"
	"os"
	"strings"
	"sync"

	"github.com/mayugoro/xray/logger"
)

// AdminMessenger 把文本发送给所有管理员
type AdminMessenger interface {
	SendMsgToTgbotAdmins(msg string)
	IsRunning() bool
}

// LogForwarder 把 ERROR 及以上级别的日志转发给管理员
type LogForwarder struct {
	target   AdminMessenger
	minLevel logger.Level
	buffer   chan string

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	enabled bool
}

func NewLogForwarder(target AdminMessenger, minLevel logger.Level) *LogForwarder {
	return &LogForwarder{
		target:   target,
		minLevel: minLevel,
		buffer:   make(chan string, 100),
	}
}

func (lf *LogForwarder) Start() {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.enabled {
		return
	}
	lf.ctx, lf.cancel = context.WithCancel(context.Background())
	lf.enabled = true
	logger.AddLogListener(lf)

	lf.wg.Add(1)
	go lf.worker(lf.ctx)
}

func (lf *LogForwarder) Stop() {
	lf.mu.Lock()
	if !lf.enabled {
		lf.mu.Unlock()
		return
	}
	lf.enabled = false
	lf.cancel()
	lf.mu.Unlock()

	logger.RemoveLogListener(lf)
	lf.wg.Wait()
}

// OnLog 实现 logger.LogListener，缓冲区满时丢弃
func (lf *LogForwarder) OnLog(level logger.Level, message, formatted string) {
	if level < lf.minLevel || skipForward(message) {
		return
	}
	select {
	case lf.buffer <- formatted:
	default:
	}
}

// skipForward 与 Telegram 发送有关的日志不转发，避免发送失败时循环
func skipForward(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "telegram") || strings.Contains(lower, "tgbot")
}

func (lf *LogForwarder) worker(ctx context.Context) {
	defer lf.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-lf.buffer:
			if !lf.target.IsRunning() {
				continue
			}
			lf.target.SendMsgToTgbotAdmins(formatForwarded(line))
		}
	}
}

func formatForwarded(line string) string {
	host, _ := os.Hostname()
	return fmt.Sprintf("🚨 <b>%s</b>\n<code>%s</code>", html.EscapeString(host), html.EscapeString(line))
}
