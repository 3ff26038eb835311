//go:build windows

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mayugoro/xray/bootstrap"
)

// setupSignalHandler 注册信号监听（Windows版仅包含基础信号）
func setupSignalHandler(sigCh chan os.Signal) {
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, os.Interrupt)
}

// handleCustomSignal Windows 不支持 SIGUSR2，直接返回 false
func handleCustomSignal(sig os.Signal, runtime *bootstrap.Runtime) bool {
	return false
}
