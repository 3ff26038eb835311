package database

import (
	"time"

	"github.com/mayugoro/xray/database/model"
)

// AccountStore 账户记录的持久化接口，AccountID 为唯一键
type AccountStore interface {
	// Put 新增或覆盖记录
	Put(accountID string, account *model.Account) error
	// Get 记录不存在时返回 nil, nil
	Get(accountID string) (*model.Account, error)
	Delete(accountID string) (bool, error)
	ListAll() (map[string]*model.Account, error)
	// IsExpired 不存在的账户同样视为过期
	IsExpired(accountID string) bool
	Close() error
}

// AddAccount 构建并保存一条新记录
func AddAccount(store AccountStore, accountID, clientID string, days int, now time.Time) (*model.Account, error) {
	account := model.NewAccount(accountID, clientID, days, now)
	if err := store.Put(accountID, account); err != nil {
		return nil, err
	}
	return account, nil
}

func isExpired(store AccountStore, accountID string, now time.Time) bool {
	account, err := store.Get(accountID)
	if err != nil || account == nil {
		return true
	}
	return account.IsExpiredAt(now)
}
