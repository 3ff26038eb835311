package argo

import (
	"io"
	"os"
	"os/exec"
)

// Process 一个被跟踪的 cloudflared 子进程
type Process interface {
	Pid() int
	// Output cloudflared 把日志写到 stderr，子进程退出后读到 EOF
	Output() io.Reader
	Wait() error
	Signal(sig os.Signal) error
	Kill() error
}

// Spawner 启动长期运行的子进程，测试中替换为假实现
type Spawner interface {
	Spawn(name string, args ...string) (Process, error)
}

type execSpawner struct{}

type execProcess struct {
	cmd    *exec.Cmd
	output *os.File
}

func (execSpawner) Spawn(name string, args ...string) (Process, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(name, args...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, err
	}
	// 父进程关闭写端，子进程退出后读端才会收到 EOF
	_ = pw.Close()
	return &execProcess{cmd: cmd, output: pr}, nil
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Output() io.Reader {
	return p.output
}

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	_ = p.output.Close()
	return err
}

func (p *execProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}
