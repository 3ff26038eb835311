package random

import (
	"crypto/rand"
	"math/big"
)

const (
	digits   = "0123456789"
	lowers   = "abcdefghijklmnopqrstuvwxyz"
	uppers   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerNum = digits + lowers
	allChars = digits + lowers + uppers
)

func pick(n int, charset string) string {
	if n <= 0 || charset == "" {
		return ""
	}
	out := make([]byte, n)
	max := big.NewInt(int64(len(charset)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		out[i] = charset[idx.Int64()]
	}
	return string(out)
}

// Seq 生成 n 位大小写字母加数字的随机串
func Seq(n int) string {
	return pick(n, allChars)
}

// LowerNumSeq 生成 n 位小写字母加数字的随机串，用于账户名后缀
func LowerNumSeq(n int) string {
	return pick(n, lowerNum)
}

// Num generates a random integer between 0 and n-1.
func Num(n int) int {
	if n <= 0 {
		return 0
	}
	r, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return int(r.Int64())
}
