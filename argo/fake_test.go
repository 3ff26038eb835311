package argo

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
)

type runCall struct {
	name string
	args []string
}

// fakeRunner 按参数前缀返回预设输出
type fakeRunner struct {
	mu      sync.Mutex
	calls   []runCall
	replies map[string]fakeReply
}

type fakeReply struct {
	stdout string
	stderr string
	err    error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{replies: map[string]fakeReply{}}
}

func (f *fakeRunner) on(args string, reply fakeReply) {
	f.replies[args] = reply
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, runCall{name: name, args: args})
	r := f.replies[strings.Join(args, " ")]
	return []byte(r.stdout), []byte(r.stderr), r.err
}

func (f *fakeRunner) argsOf(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.calls[i].args, " ")
}

type fakeDownloader struct {
	calls   []string
	payload string
	err     error
}

func (f *fakeDownloader) Download(ctx context.Context, url, dst string) error {
	f.calls = append(f.calls, url)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dst, []byte(f.payload), 0o600)
}

type fakeProcess struct {
	pid int
	r   *io.PipeReader
	w   *io.PipeWriter

	exit chan error
	once sync.Once

	mu           sync.Mutex
	signals      []os.Signal
	killed       bool
	exitOnSignal bool
}

func newFakeProcess(pid int, exitOnSignal bool) *fakeProcess {
	r, w := io.Pipe()
	return &fakeProcess{pid: pid, r: r, w: w, exit: make(chan error, 1), exitOnSignal: exitOnSignal}
}

func (p *fakeProcess) Pid() int          { return p.pid }
func (p *fakeProcess) Output() io.Reader { return p.r }
func (p *fakeProcess) Wait() error       { return <-p.exit }

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	exit := p.exitOnSignal
	p.mu.Unlock()
	if exit {
		p.finish(nil)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.finish(errors.New("signal: killed"))
	return nil
}

func (p *fakeProcess) write(line string) {
	_, _ = p.w.Write([]byte(line + "\n"))
}

func (p *fakeProcess) finish(err error) {
	p.once.Do(func() {
		_ = p.w.Close()
		p.exit <- err
	})
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *fakeProcess) signalCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.signals)
}

type spawnCall struct {
	name string
	args []string
}

type fakeSpawner struct {
	mu    sync.Mutex
	calls []spawnCall
	procs []*fakeProcess
	next  func() *fakeProcess
}

func (s *fakeSpawner) Spawn(name string, args ...string) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, spawnCall{name: name, args: args})
	p := s.next()
	s.procs = append(s.procs, p)
	return p, nil
}
