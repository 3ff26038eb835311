package common

import (
	"errors"
	"fmt"
	"strings"
)

// =================================================================
// 错误码常量
// =================================================================

const (
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAlreadyExists      = "ALREADY_EXISTS"
	ErrCodeConfigMalformed    = "CONFIG_MALFORMED"
	ErrCodeAppliedNotReloaded = "APPLIED_NOT_RELOADED"
	ErrCodeUnsupportedArch    = "UNSUPPORTED_ARCH"
	ErrCodeTunnelIDNotFound   = "TUNNEL_ID_NOT_FOUND"
	ErrCodeTimeout            = "TIMEOUT"
	ErrCodeDecodeFailure      = "DECODE_FAILURE"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeIntegrity          = "INTEGRITY"
	ErrCodeExternal           = "EXTERNAL"
	ErrCodeInternal           = "INTERNAL"
)

// =================================================================
// ServiceError 服务层错误包装
// =================================================================

type ServiceError struct {
	Op      string         // 操作名称，如 "AccountService.Create"
	Code    string         // 错误码，如 "NOT_FOUND"
	Err     error          // 原始错误
	Context map[string]any // 上下文信息
}

func (e *ServiceError) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString("[")
		sb.WriteString(e.Op)
		sb.WriteString("] ")
	}
	if e.Code != "" {
		sb.WriteString("(")
		sb.WriteString(e.Code)
		sb.WriteString(") ")
	}
	if e.Err != nil {
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError 创建服务层错误
func NewServiceError(op string, err error) *ServiceError {
	return &ServiceError{
		Op:  op,
		Err: err,
	}
}

// WithCode 添加错误码
func (e *ServiceError) WithCode(code string) *ServiceError {
	e.Code = code
	return e
}

// WithContext 添加上下文信息
func (e *ServiceError) WithContext(key string, val any) *ServiceError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = val
	return e
}

// Wrap 快速包装错误
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewServiceError(op, err)
}

// Wrapf 带格式化消息包装错误
func Wrapf(op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return NewServiceError(op, fmt.Errorf("%s: %w", msg, err))
}

// =================================================================
// 账户与代理配置相关错误
// =================================================================

var (
	// ErrNotFound 账户或隧道不存在
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists 已存在，创建类操作视为成功
	ErrAlreadyExists = errors.New("already exists")

	// ErrConfigMalformed 代理配置缺少必需的结构
	ErrConfigMalformed = errors.New("proxy config malformed")

	// ErrAppliedNotReloaded 配置已写入但守护进程未重载
	ErrAppliedNotReloaded = errors.New("applied but not reloaded")

	// ErrClientIDCollision 同一个 client id 挂在不同的账户名下
	ErrClientIDCollision = errors.New("client id collision")

	// ErrInvalidInput 无效输入
	ErrInvalidInput = errors.New("invalid input")
)

// =================================================================
// 隧道相关错误
// =================================================================

var (
	// ErrUnsupportedArch 不支持的 CPU 架构
	ErrUnsupportedArch = errors.New("unsupported architecture")

	// ErrTunnelIDNotFound 隧道列表中找不到该名称
	ErrTunnelIDNotFound = errors.New("tunnel id not found")

	// ErrTimeout 有界等待超时
	ErrTimeout = errors.New("timeout")
)

// =================================================================
// 链接相关错误
// =================================================================

var (
	// ErrDecodeFailure vmess 链接无法解析
	ErrDecodeFailure = errors.New("decode failure")
)

// =================================================================
// 辅助函数
// =================================================================

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GetErrorCode 从错误中提取错误码
func GetErrorCode(err error) string {
	var se *ServiceError
	if errors.As(err, &se) && se.Code != "" {
		return se.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrAlreadyExists):
		return ErrCodeAlreadyExists
	case errors.Is(err, ErrConfigMalformed):
		return ErrCodeConfigMalformed
	case errors.Is(err, ErrAppliedNotReloaded):
		return ErrCodeAppliedNotReloaded
	case errors.Is(err, ErrClientIDCollision):
		return ErrCodeIntegrity
	case errors.Is(err, ErrUnsupportedArch):
		return ErrCodeUnsupportedArch
	case errors.Is(err, ErrTunnelIDNotFound):
		return ErrCodeTunnelIDNotFound
	case errors.Is(err, ErrTimeout):
		return ErrCodeTimeout
	case errors.Is(err, ErrDecodeFailure):
		return ErrCodeDecodeFailure
	case errors.Is(err, ErrInvalidInput):
		return ErrCodeInvalidInput
	default:
		return ErrCodeInternal
	}
}
