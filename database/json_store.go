package database

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mayugoro/xray/database/model"
	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/util/sys"
)

// JSONStore 以单个 JSON 文档保存全部账户，每次操作整体读取再整体写回。
// 进程内有互斥锁，多进程同时写入仍可能丢失更新。
type JSONStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path, now: time.Now}
}

func (s *JSONStore) load() (map[string]*model.Account, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]*model.Account{}, nil
	}
	if err != nil {
		return nil, err
	}
	accounts := map[string]*model.Account{}
	if len(data) == 0 {
		return accounts, nil
	}
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	// 旧文件里 email 字段可能缺失，以键为准
	for id, a := range accounts {
		if a == nil {
			delete(accounts, id)
			continue
		}
		a.AccountID = id
	}
	return accounts, nil
}

func (s *JSONStore) save(accounts map[string]*model.Account) error {
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return err
	}
	return sys.AtomicWriteFile(s.path, data, sys.FileMode(s.path, 0o600))
}

func (s *JSONStore) Put(accountID string, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return err
	}
	account.AccountID = accountID
	accounts[accountID] = account
	return s.save(accounts)
}

func (s *JSONStore) Get(accountID string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return nil, err
	}
	return accounts[accountID], nil
}

func (s *JSONStore) Delete(accountID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return false, err
	}
	if _, ok := accounts[accountID]; !ok {
		return false, nil
	}
	delete(accounts, accountID)
	if err := s.save(accounts); err != nil {
		return false, err
	}
	return true, nil
}

func (s *JSONStore) ListAll() (map[string]*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *JSONStore) IsExpired(accountID string) bool {
	expired := isExpired(s, accountID, s.now())
	if expired {
		logger.Debugf("account %s is expired or absent", accountID)
	}
	return expired
}

func (s *JSONStore) Close() error {
	return nil
}
