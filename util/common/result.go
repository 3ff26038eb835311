package common

import "errors"

// Result 变更类操作的返回值：成功标志加一段给管理员看的说明
type Result struct {
	OK     bool   `json:"ok"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail"`
}

// Success 成功结果
func Success(detail string) Result {
	return Result{OK: true, Detail: detail}
}

// Failure 失败结果，错误码取自 err
func Failure(err error) Result {
	return Result{OK: false, Code: GetErrorCode(err), Detail: rootMessage(err)}
}

// ResultOf err 为 nil 时返回带 okDetail 的成功结果；ErrAlreadyExists 同样视为成功
func ResultOf(err error, okDetail string) Result {
	if err == nil {
		return Success(okDetail)
	}
	if errors.Is(err, ErrAlreadyExists) {
		return Result{OK: true, Code: ErrCodeAlreadyExists, Detail: rootMessage(err)}
	}
	return Failure(err)
}

// rootMessage 去掉 ServiceError 的操作前缀，保留外部进程原样的输出
func rootMessage(err error) string {
	var se *ServiceError
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	return err.Error()
}
