package database

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/mayugoro/xray/logger"
)

var sqliteHeader = []byte("SQLite format 3\x00")

// IsSQLiteDB 通过文件头判断是否为 sqlite 数据库
func IsSQLiteDB(r io.Reader) (bool, error) {
	buf := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(buf, sqliteHeader), nil
}

// IsSQLiteFile 文件不存在时返回 false
func IsSQLiteFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	return IsSQLiteDB(f)
}

// MigrateReport 账户迁移结果
type MigrateReport struct {
	Copied  int
	Skipped []string
}

// MigrateAccounts 把 src 的全部记录复制到 dst；dst 已有的账户默认跳过
func MigrateAccounts(src, dst AccountStore, overwrite bool) (*MigrateReport, error) {
	all, err := src.ListAll()
	if err != nil {
		return nil, err
	}
	report := &MigrateReport{}
	for id, account := range all {
		if !overwrite {
			existing, err := dst.Get(id)
			if err != nil {
				return report, err
			}
			if existing != nil {
				report.Skipped = append(report.Skipped, id)
				continue
			}
		}
		if err := dst.Put(id, account); err != nil {
			return report, err
		}
		report.Copied++
	}
	logger.Infof("migrated %d accounts, skipped %d", report.Copied, len(report.Skipped))
	return report, nil
}
