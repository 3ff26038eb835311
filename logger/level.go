package logger

import "github.com/op/go-logging"

// Level 日志级别，屏蔽 go-logging 的数值顺序（CRITICAL=0 ... DEBUG=5）
type Level int

const (
	DEBUG Level = iota
	INFO
	NOTICE
	WARNING
	ERROR
	CRITICAL
)

// String 返回级别的字符串表示
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case NOTICE:
		return "NOTICE"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel 从字符串解析日志级别，未知值返回 WARNING
func ParseLevel(s string) Level {
	switch s {
	case "DEBUG", "debug":
		return DEBUG
	case "INFO", "info":
		return INFO
	case "NOTICE", "notice":
		return NOTICE
	case "WARNING", "warning", "WARN", "warn":
		return WARNING
	case "ERROR", "error":
		return ERROR
	case "CRITICAL", "critical":
		return CRITICAL
	default:
		return WARNING
	}
}

func (l Level) toLogging() logging.Level {
	switch l {
	case DEBUG:
		return logging.DEBUG
	case INFO:
		return logging.INFO
	case NOTICE:
		return logging.NOTICE
	case WARNING:
		return logging.WARNING
	case ERROR:
		return logging.ERROR
	default:
		return logging.CRITICAL
	}
}

func fromLogging(l logging.Level) Level {
	switch l {
	case logging.DEBUG:
		return DEBUG
	case logging.INFO:
		return INFO
	case logging.NOTICE:
		return NOTICE
	case logging.WARNING:
		return WARNING
	case logging.ERROR:
		return ERROR
	default:
		return CRITICAL
	}
}
