package hashstorage

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sync"
	"time"
)

var hashPattern = regexp.MustCompile("^[a-f0-9]{64}$")

type entry struct {
	value   string
	savedAt time.Time
}

// HashStorage 把超过 Telegram 64 字节限制的回调数据换成 sha256 摘要
type HashStorage struct {
	mu         sync.RWMutex
	data       map[string]entry
	expiration time.Duration
	now        func() time.Time
}

func NewHashStorage(expiration time.Duration) *HashStorage {
	return &HashStorage{
		data:       make(map[string]entry),
		expiration: expiration,
		now:        time.Now,
	}
}

// SaveHash 保存原始数据并返回其摘要
func (h *HashStorage) SaveHash(query string) string {
	sum := sha256.Sum256([]byte(query))
	hash := hex.EncodeToString(sum[:])

	h.mu.Lock()
	h.data[hash] = entry{value: query, savedAt: h.now()}
	h.mu.Unlock()
	return hash
}

func (h *HashStorage) GetValue(hash string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.data[hash]
	return e.value, ok
}

func (h *HashStorage) IsHash(s string) bool {
	return hashPattern.MatchString(s)
}

// RemoveExpiredHashes 删除超过有效期的条目，返回删除数量
func (h *HashStorage) RemoveExpiredHashes() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	removed := 0
	for hash, e := range h.data {
		if now.Sub(e.savedAt) > h.expiration {
			delete(h.data, hash)
			removed++
		}
	}
	return removed
}

func (h *HashStorage) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.data)
}
