package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/op/go-logging"
)

const moduleName = "vmess-bot"

// LogListener 日志监听器，Bot 用它把错误日志转发给管理员
type LogListener interface {
	OnLog(level Level, message string, formattedLog string)
}

// ListenerBackend 包装下游后端并通知监听器
type ListenerBackend struct {
	listeners []LogListener
	mu        sync.RWMutex
	next      logging.Backend
}

// NewListenerBackend 创建新的监听后端
func NewListenerBackend(next logging.Backend) *ListenerBackend {
	return &ListenerBackend{
		listeners: make([]LogListener, 0),
		next:      next,
	}
}

// AddListener 添加日志监听器
func (b *ListenerBackend) AddListener(listener LogListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

// RemoveListener 移除日志监听器
func (b *ListenerBackend) RemoveListener(listener LogListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, l := range b.listeners {
		if l == listener {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			break
		}
	}
}

// Log 实现 logging.Backend 接口
func (b *ListenerBackend) Log(level logging.Level, calldepth int, rec *logging.Record) error {
	if b.next != nil {
		if err := b.next.Log(level, calldepth+1, rec); err != nil {
			return err
		}
	}

	b.mu.RLock()
	listeners := make([]LogListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	if len(listeners) > 0 {
		formattedLog := rec.Formatted(calldepth + 1)
		for _, listener := range listeners {
			go listener.OnLog(fromLogging(level), rec.Message(), formattedLog)
		}
	}

	return nil
}

type bufferEntry struct {
	time  string
	level Level
	log   string
}

var (
	logger          *logging.Logger
	logBuffer       []bufferEntry
	logBufferMu     sync.Mutex
	listenerBackend *ListenerBackend
	localLogEnabled bool
)

func init() {
	InitLogger(INFO, false, "")
}

// InitLogger 初始化日志后端；enabled 为 true 时同时写入 filePath
func InitLogger(level Level, enabled bool, filePath string) {
	localLogEnabled = enabled
	newLogger := logging.MustGetLogger(moduleName)

	var backend logging.Backend = logging.NewLogBackend(os.Stderr, "", 0)
	if enabled && filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			fmt.Fprintf(os.Stderr, "无法创建日志文件 %s: %v\n", filePath, err)
		} else {
			backend = logging.NewLogBackend(file, "", 0)
		}
	}

	format := logging.MustStringFormatter(`%{time:2006/01/02 15:04:05} %{level} - %{message}`)

	backendFormatter := logging.NewBackendFormatter(backend, format)
	backendLeveled := logging.AddModuleLevel(backendFormatter)
	backendLeveled.SetLevel(level.toLogging(), moduleName)

	listenerBackend = NewListenerBackend(backendLeveled)
	listenerLeveled := logging.AddModuleLevel(listenerBackend)
	listenerLeveled.SetLevel(level.toLogging(), moduleName)

	newLogger.SetBackend(listenerLeveled)
	logger = newLogger
}

func Debug(args ...any) {
	logger.Debug(args...)
	addToBuffer(DEBUG, fmt.Sprint(args...))
}

func Debugf(format string, args ...any) {
	logger.Debugf(format, args...)
	addToBuffer(DEBUG, fmt.Sprintf(format, args...))
}

func Info(args ...any) {
	logger.Info(args...)
	addToBuffer(INFO, fmt.Sprint(args...))
}

func Infof(format string, args ...any) {
	logger.Infof(format, args...)
	addToBuffer(INFO, fmt.Sprintf(format, args...))
}

func Notice(args ...any) {
	logger.Notice(args...)
	addToBuffer(NOTICE, fmt.Sprint(args...))
}

func Noticef(format string, args ...any) {
	logger.Noticef(format, args...)
	addToBuffer(NOTICE, fmt.Sprintf(format, args...))
}

func Warning(args ...any) {
	logger.Warning(args...)
	addToBuffer(WARNING, fmt.Sprint(args...))
}

func Warningf(format string, args ...any) {
	logger.Warningf(format, args...)
	addToBuffer(WARNING, fmt.Sprintf(format, args...))
}

func Error(args ...any) {
	logger.Error(args...)
	addToBuffer(ERROR, fmt.Sprint(args...))
}

func Errorf(format string, args ...any) {
	logger.Errorf(format, args...)
	addToBuffer(ERROR, fmt.Sprintf(format, args...))
}

func addToBuffer(level Level, newLog string) {
	maxSize := 10240
	if !localLogEnabled {
		maxSize = 1000
	}

	logBufferMu.Lock()
	defer logBufferMu.Unlock()
	if len(logBuffer) >= maxSize {
		logBuffer = logBuffer[1:]
	}
	logBuffer = append(logBuffer, bufferEntry{
		time:  time.Now().Format("2006/01/02 15:04:05"),
		level: level,
		log:   newLog,
	})
}

// GetLogs 从新到旧返回最多 c 条不低于 level 的日志
func GetLogs(c int, level string) []string {
	minLevel := ParseLevel(level)

	logBufferMu.Lock()
	defer logBufferMu.Unlock()

	var output []string
	for i := len(logBuffer) - 1; i >= 0 && len(output) < c; i-- {
		if logBuffer[i].level >= minLevel {
			output = append(output, fmt.Sprintf("%s %s - %s", logBuffer[i].time, logBuffer[i].level, logBuffer[i].log))
		}
	}
	return output
}

// AddLogListener 添加日志监听器
func AddLogListener(listener LogListener) {
	if listenerBackend != nil {
		listenerBackend.AddListener(listener)
	}
}

// RemoveLogListener 移除日志监听器
func RemoveLogListener(listener LogListener) {
	if listenerBackend != nil {
		listenerBackend.RemoveListener(listener)
	}
}
