package service

import (
	"sync"
	"time"
)

// ConversationState 每个会话的多步输入状态
type ConversationState int

const (
	StateIdle ConversationState = iota
	StateAwaitCreateID
	StateAwaitCreateDays
	StateAwaitDeleteID
)

func (s ConversationState) String() string {
	switch s {
	case StateAwaitCreateID:
		return "await_create_id"
	case StateAwaitCreateDays:
		return "await_create_days"
	case StateAwaitDeleteID:
		return "await_delete_id"
	default:
		return "idle"
	}
}

// Session 会话状态与已经收集到的输入
type Session struct {
	State     ConversationState
	PendingID string
	Updated   time.Time
}

// Conversations 按 chat 保存会话，超过 timeout 未操作自动回到 Idle
type Conversations struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	timeout  time.Duration
	now      func() time.Time
}

func NewConversations(timeout time.Duration) *Conversations {
	return &Conversations{
		sessions: make(map[int64]*Session),
		timeout:  timeout,
		now:      time.Now,
	}
}

// Get 返回会话的副本；不存在或已超时返回 Idle，并报告是否因超时被丢弃
func (c *Conversations) Get(chatID int64) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[chatID]
	if !ok {
		return Session{State: StateIdle}, false
	}
	if c.timeout > 0 && c.now().Sub(s.Updated) > c.timeout {
		delete(c.sessions, chatID)
		return Session{State: StateIdle}, true
	}
	return *s, false
}

// Set 进入 state；Idle 等同 Reset
func (c *Conversations) Set(chatID int64, state ConversationState, pendingID string) {
	if state == StateIdle {
		c.Reset(chatID)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[chatID] = &Session{State: state, PendingID: pendingID, Updated: c.now()}
}

// Reset 回到 Idle，返回之前是否处于某个流程中
func (c *Conversations) Reset(chatID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sessions[chatID]
	delete(c.sessions, chatID)
	return ok
}

func (c *Conversations) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}
