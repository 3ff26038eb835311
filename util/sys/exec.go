package sys

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// Runner 执行外部命令并返回 stdout/stderr，测试里用假实现替换
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

// ExecRunner 基于 os/exec 的 Runner
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// CommandDetail 外部命令失败时给管理员看的说明：优先 stderr 原文，其次 stdout，最后是 err 本身
func CommandDetail(stdout, stderr []byte, err error) string {
	if s := strings.TrimSpace(string(stderr)); s != "" {
		return s
	}
	if s := strings.TrimSpace(string(stdout)); s != "" {
		return s
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
