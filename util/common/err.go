package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mayugoro/xray/logger"
)

func NewErrorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// NewError 参数之间以空格分隔
func NewError(a ...any) error {
	return errors.New(strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
}

// Recover 必须直接在 defer 中调用
func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil && msg != "" {
		logger.Error(msg, "panic:", panicErr)
	}
	return panicErr
}
