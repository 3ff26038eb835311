package model

import (
	"encoding/json"
	"time"
)

const (
	CreatedAtLayout = "2006-01-02 15:04:05"
	ExpiryLayout    = "2006-01-02"
)

// Account 一个 VMess 账户的本地记录，AccountID 为唯一键
type Account struct {
	AccountID  string    `gorm:"primaryKey;column:account_id"`
	ClientID   string    `gorm:"uniqueIndex;column:client_id;not null"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	ExpiryDate time.Time `gorm:"column:expiry_date"`
	Days       int       `gorm:"column:days"`
	Active     bool      `gorm:"column:active"`
}

func (Account) TableName() string {
	return "accounts"
}

// NewAccount 以 now 为创建时间构建记录，到期日为创建日加 days 个自然日
func NewAccount(accountID, clientID string, days int, now time.Time) *Account {
	created := now.Truncate(time.Second)
	return &Account{
		AccountID:  accountID,
		ClientID:   clientID,
		CreatedAt:  created,
		ExpiryDate: DateOf(created.AddDate(0, 0, days)),
		Days:       days,
		Active:     true,
	}
}

// DateOf 截断到当地零点
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsExpiredAt 到期日零点之后即视为过期
func (a *Account) IsExpiredAt(now time.Time) bool {
	if a == nil {
		return true
	}
	return now.After(a.ExpiryDate)
}

// DaysLeft 剩余的日历天数，过期后为 0；按 UTC 日期相减，不受夏令时切换影响
func (a *Account) DaysLeft(now time.Time) int {
	if a.IsExpiredAt(now) {
		return 0
	}
	return int(utcDate(a.ExpiryDate).Sub(utcDate(now)).Hours() / 24)
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type accountJSON struct {
	ClientID   string `json:"uuid"`
	Email      string `json:"email"`
	CreatedAt  string `json:"created_at"`
	ExpiryDate string `json:"expiry_date"`
	Days       int    `json:"days"`
	Active     bool   `json:"active"`
}

// MarshalJSON 保持 users.json 原有的字段名与时间格式
func (a Account) MarshalJSON() ([]byte, error) {
	return json.Marshal(accountJSON{
		ClientID:   a.ClientID,
		Email:      a.AccountID,
		CreatedAt:  a.CreatedAt.Format(CreatedAtLayout),
		ExpiryDate: a.ExpiryDate.Format(ExpiryLayout),
		Days:       a.Days,
		Active:     a.Active,
	})
}

func (a *Account) UnmarshalJSON(data []byte) error {
	var raw accountJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.ClientID = raw.ClientID
	a.AccountID = raw.Email
	a.Days = raw.Days
	a.Active = raw.Active

	var err error
	if raw.CreatedAt != "" {
		if a.CreatedAt, err = time.ParseInLocation(CreatedAtLayout, raw.CreatedAt, time.Local); err != nil {
			return err
		}
	}
	if raw.ExpiryDate != "" {
		if a.ExpiryDate, err = time.ParseInLocation(ExpiryLayout, raw.ExpiryDate, time.Local); err != nil {
			return err
		}
	}
	return nil
}
