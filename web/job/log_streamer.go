package job

import (
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/nxadm/tail"
	"go.uber.org/atomic"

	"github.com/mayugoro/xray/logger"
)

var (
	acceptedIPRe = regexp.MustCompile(`from (?:tcp:|udp:)?\[?([0-9a-fA-F\.:]+)\]?:\d+ accepted`)
	emailRe      = regexp.MustCompile(`email: ([^ ]+)`)
)

type presence struct {
	lastSeen time.Time
	account  string
}

// LogStreamer 跟踪 xray access log，记录一段时间窗口内出现过的客户端 IP
type LogStreamer struct {
	logPath string
	ttl     time.Duration
	now     func() time.Time

	tailer  *tail.Tail
	done    chan struct{}
	running atomic.Bool
	mu      sync.Mutex

	seenMu sync.RWMutex
	seen   map[string]presence
}

func NewLogStreamer(logPath string, ttl time.Duration) *LogStreamer {
	return &LogStreamer{
		logPath: logPath,
		ttl:     ttl,
		now:     time.Now,
		seen:    make(map[string]presence),
	}
}

func (ls *LogStreamer) Name() string { return "log-streamer" }

func (ls *LogStreamer) Start() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.running.Load() {
		return nil
	}

	t, err := tail.TailFile(ls.logPath, tail.Config{
		Follow:    true,
		ReOpen:    true,                                 // 日志轮转后重新打开
		MustExist: false,                                // 文件不存在时等待创建
		Poll:      true,                                 // 轮询，兼容不支持 inotify 的环境
		Location:  &tail.SeekInfo{Offset: 0, Whence: 2}, // 从末尾开始
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return err
	}
	ls.tailer = t
	ls.done = make(chan struct{})
	ls.running.Store(true)

	go ls.processLines(t, ls.done)

	logger.Infof("following access log %s", ls.logPath)
	return nil
}

func (ls *LogStreamer) Stop() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if !ls.running.Load() {
		return nil
	}
	_ = ls.tailer.Stop()
	ls.tailer.Cleanup()

	select {
	case <-ls.done:
	case <-time.After(5 * time.Second):
		logger.Warning("log streamer stop timed out")
	}
	ls.running.Store(false)
	return nil
}

func (ls *LogStreamer) IsRunning() bool {
	return ls.running.Load()
}

func (ls *LogStreamer) processLines(t *tail.Tail, done chan struct{}) {
	defer close(done)
	for line := range t.Lines {
		if line == nil {
			continue
		}
		if line.Err != nil {
			logger.Debugf("access log read: %v", line.Err)
			continue
		}
		ls.Observe(line.Text)
	}
}

// Observe 解析一行 access log，记录 accepted 的来源 IP（忽略回环地址）
func (ls *LogStreamer) Observe(line string) {
	m := acceptedIPRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	ip := m[1]
	if ip == "127.0.0.1" || ip == "::1" {
		return
	}
	p := presence{lastSeen: ls.now()}
	if em := emailRe.FindStringSubmatch(line); em != nil {
		p.account = em[1]
	}

	ls.seenMu.Lock()
	ls.seen[ip] = p
	ls.seenMu.Unlock()
}

// ActiveIPs 窗口内出现过的 IP，最近出现的在前；同时清理过期条目
func (ls *LogStreamer) ActiveIPs() []string {
	cutoff := ls.now().Add(-ls.ttl)

	ls.seenMu.Lock()
	type entry struct {
		ip string
		at time.Time
	}
	entries := make([]entry, 0, len(ls.seen))
	for ip, p := range ls.seen {
		if p.lastSeen.Before(cutoff) {
			delete(ls.seen, ip)
			continue
		}
		entries = append(entries, entry{ip, p.lastSeen})
	}
	ls.seenMu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].at.Equal(entries[j].at) {
			return entries[i].at.After(entries[j].at)
		}
		return entries[i].ip < entries[j].ip
	})
	ips := make([]string, len(entries))
	for i, e := range entries {
		ips[i] = e.ip
	}
	return ips
}

// ActiveAccounts 窗口内每个账户对应的 IP（只有日志中带 email 字段时才有）
func (ls *LogStreamer) ActiveAccounts() map[string][]string {
	cutoff := ls.now().Add(-ls.ttl)
	out := make(map[string][]string)

	ls.seenMu.RLock()
	for ip, p := range ls.seen {
		if p.account == "" || p.lastSeen.Before(cutoff) {
			continue
		}
		out[p.account] = append(out[p.account], ip)
	}
	ls.seenMu.RUnlock()

	for _, ips := range out {
		sort.Strings(ips)
	}
	return out
}
