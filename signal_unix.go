//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mayugoro/xray/bootstrap"
	"github.com/mayugoro/xray/logger"
)

// setupSignalHandler 注册信号监听（Unix版包含 SIGUSR2）
func setupSignalHandler(sigCh chan os.Signal) {
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)
}

// handleCustomSignal SIGUSR2 触发一次记录与配置的一致性检查
// 返回 true 表示信号已被处理
func handleCustomSignal(sig os.Signal, runtime *bootstrap.Runtime) bool {
	if sig == syscall.SIGUSR2 {
		logger.Info("Received SIGUSR2 signal. Running consistency check...")
		runtime.CheckConsistency()
		return true
	}
	return false
}
