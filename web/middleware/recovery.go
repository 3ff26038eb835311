package middleware

import (
	"errors"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"github.com/mayugoro/xray/logger"

	"github.com/gin-gonic/gin"
)

// RecoveryMiddleware 捕获 handler 中的 panic，记录后返回 500
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && isBrokenPipe(err) {
				logger.Errorf("[PANIC RECOVER] Broken pipe: %v", err)
				c.Error(err) // nolint: errcheck
				c.Abort()
				return
			}
			if gin.IsDebugging() {
				logger.Errorf("[PANIC RECOVER] panic recovered:\nError: %v\nStack: %s", rec, debug.Stack())
			} else {
				logger.Errorf("[PANIC RECOVER] panic recovered: %v", rec)
			}
			c.AbortWithStatus(http.StatusInternalServerError)
		}()
		c.Next()
	}
}

// 客户端断开时写响应会触发这类错误，不需要堆栈
func isBrokenPipe(err error) bool {
	var ne *net.OpError
	if !errors.As(err, &ne) {
		return false
	}
	var se *os.SyscallError
	if !errors.As(ne.Err, &se) {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
