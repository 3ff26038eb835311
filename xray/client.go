package xray

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mayugoro/xray/util/random"
)

// Client vmess 入站中的一个客户端
type Client struct {
	ID      string `json:"id"`
	Email   string `json:"email,omitempty"`
	AlterID int    `json:"alterId"`
}

// GenerateClientID 生成随机 UUIDv4 作为客户端凭证
func GenerateClientID() string {
	return uuid.NewString()
}

// GenerateAccountID 未指定账户名时生成 vmess_<unix>，已被占用则追加随机后缀
func GenerateAccountID(now time.Time, exists func(string) bool) string {
	id := fmt.Sprintf("vmess_%d", now.Unix())
	for exists != nil && exists(id) {
		id = fmt.Sprintf("vmess_%d_%s", now.Unix(), random.LowerNumSeq(4))
	}
	return id
}
