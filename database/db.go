package database

import (
	"fmt"

	"github.com/mayugoro/xray/config"
	"github.com/mayugoro/xray/logger"
)

// OpenStore 按配置选择账户存储后端
func OpenStore(cfg *config.Config) (AccountStore, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		db, err := InitDB(cfg.DBPath, cfg.LogLevel == config.Debug)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", cfg.DBPath, err)
		}
		logger.Infof("account store: sqlite %s", cfg.DBPath)
		return NewSQLiteStore(db), nil
	case config.StoreJSON, "":
		if isDB, err := IsSQLiteFile(cfg.DBPath); err == nil && isDB {
			return nil, fmt.Errorf("%s looks like a sqlite database, set DB_DRIVER=sqlite", cfg.DBPath)
		}
		logger.Infof("account store: json %s", cfg.DBPath)
		return NewJSONStore(cfg.DBPath), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
