package service

import (
	"html"
	"strconv"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

// escapeHTML Telegram HTML 模式下转义用户提供的文本
func escapeHTML(s string) string {
	return html.EscapeString(s)
}
