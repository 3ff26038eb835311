package database

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mayugoro/xray/database/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLiteStore 基于 gorm 的账户存储，契约与 JSONStore 相同
type SQLiteStore struct {
	db  *gorm.DB
	now func() time.Time
}

// InitDB 打开 sqlite 数据库并迁移 accounts 表；":memory:" 用于测试
func InitDB(dbPath string, debug bool) (*gorm.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), fs.ModePerm); err != nil {
			return nil, err
		}
	}

	gormLogger := gormlogger.Discard
	if debug {
		gormLogger = gormlogger.Default
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// 单连接，避免 :memory: 在多个连接间各自为政
	sqlDB.SetMaxOpenConns(1)
	if dbPath != ":memory:" {
		db.Exec("PRAGMA journal_mode=WAL;")
	}

	if err := db.AutoMigrate(&model.Account{}); err != nil {
		return nil, err
	}
	return db, nil
}

func NewSQLiteStore(db *gorm.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) Put(accountID string, account *model.Account) error {
	account.AccountID = accountID
	return s.db.Save(account).Error
}

func (s *SQLiteStore) Get(accountID string) (*model.Account, error) {
	account := &model.Account{}
	err := s.db.Where("account_id = ?", accountID).First(account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *SQLiteStore) Delete(accountID string) (bool, error) {
	res := s.db.Where("account_id = ?", accountID).Delete(&model.Account{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLiteStore) ListAll() (map[string]*model.Account, error) {
	var rows []*model.Account
	if err := s.db.Order("account_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	accounts := make(map[string]*model.Account, len(rows))
	for _, a := range rows {
		accounts[a.AccountID] = a
	}
	return accounts, nil
}

func (s *SQLiteStore) IsExpired(accountID string) bool {
	return isExpired(s, accountID, s.now())
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
