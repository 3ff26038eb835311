package xray

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/mayugoro/xray/database"
	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/util/common"
	"github.com/mayugoro/xray/util/sys"
)

// ConfigSynchronizer 负责 xray 配置文件中 vmess 客户端列表的读改写与重载。
// 每次修改都整体读取、整体写回；进程内串行，跨进程不加锁。
type ConfigSynchronizer struct {
	path     string
	scaffold ScaffoldOptions
	reloader Reloader
	store    database.AccountStore

	mu       sync.Mutex
	backedUp bool
}

func NewConfigSynchronizer(path string, scaffold ScaffoldOptions, reloader Reloader, store database.AccountStore) *ConfigSynchronizer {
	return &ConfigSynchronizer{
		path:     path,
		scaffold: scaffold,
		reloader: reloader,
		store:    store,
	}
}

func (s *ConfigSynchronizer) Path() string {
	return s.path
}

// Read 读取配置，文件不存在时返回默认配置
func (s *ConfigSynchronizer) Read() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		logger.Infof("xray config %s not found, using default scaffold", s.path)
		return DefaultConfig(s.scaffold), nil
	}
	if err != nil {
		return nil, common.NewServiceError("XraySync.Read", err).WithCode(common.ErrCodeInternal)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, common.NewServiceError("XraySync.Read", fmt.Errorf("%w: %v", common.ErrConfigMalformed, err)).
			WithCode(common.ErrCodeConfigMalformed)
	}
	return cfg, nil
}

func (s *ConfigSynchronizer) write(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if !s.backedUp {
		backup, err := sys.BackupFile(s.path)
		if err != nil {
			logger.Warningf("backup %s failed: %v", s.path, err)
		} else if backup != "" {
			logger.Infof("xray config backed up to %s", backup)
		}
		s.backedUp = true
	}
	return sys.AtomicWriteFile(s.path, data, sys.FileMode(s.path, 0o644))
}

func (s *ConfigSynchronizer) vmessInbound(op string, cfg *Config) (*InboundConfig, error) {
	inbound, err := cfg.VMessInbound()
	if err != nil {
		return nil, common.NewServiceError(op, fmt.Errorf("%w: %v", common.ErrConfigMalformed, err)).
			WithCode(common.ErrCodeConfigMalformed)
	}
	return inbound, nil
}

// AddClient 向 vmess 入站追加客户端后写回并重载。
// 账户名相同视为已存在；client id 相同而账户名不同视为完整性错误。
func (s *ConfigSynchronizer) AddClient(ctx context.Context, accountID, clientID string) error {
	const op = "XraySync.AddClient"
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.Read()
	if err != nil {
		return err
	}
	inbound, err := s.vmessInbound(op, cfg)
	if err != nil {
		return err
	}

	for _, c := range inbound.Settings.Clients {
		switch {
		case c.Email == accountID:
			return common.NewServiceError(op, fmt.Errorf("client %s: %w", accountID, common.ErrAlreadyExists)).
				WithCode(common.ErrCodeAlreadyExists)
		case c.ID == clientID:
			return common.NewServiceError(op, fmt.Errorf("%w: id %s already belongs to %q", common.ErrClientIDCollision, clientID, c.Email)).
				WithCode(common.ErrCodeIntegrity).
				WithContext("account", accountID).
				WithContext("owner", c.Email)
		}
	}

	inbound.Settings.Clients = append(inbound.Settings.Clients, Client{ID: clientID, Email: accountID, AlterID: 0})
	if err := s.write(cfg); err != nil {
		return common.NewServiceError(op, err).WithCode(common.ErrCodeInternal)
	}
	logger.Infof("client %s added to %s", accountID, s.path)
	return s.ApplyAndReload(ctx)
}

// RemoveClient 通过账户记录找到 client id 并从配置中删除；找不到时文件保持不变
func (s *ConfigSynchronizer) RemoveClient(ctx context.Context, accountID string) error {
	const op = "XraySync.RemoveClient"
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.store.Get(accountID)
	if err != nil {
		return common.NewServiceError(op, err).WithCode(common.ErrCodeInternal)
	}
	if account == nil {
		return common.NewServiceError(op, fmt.Errorf("account %s: %w", accountID, common.ErrNotFound)).
			WithCode(common.ErrCodeNotFound)
	}

	cfg, err := s.Read()
	if err != nil {
		return err
	}
	inbound, err := s.vmessInbound(op, cfg)
	if err != nil {
		return err
	}

	kept := make([]Client, 0, len(inbound.Settings.Clients))
	for _, c := range inbound.Settings.Clients {
		if c.ID != account.ClientID {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(inbound.Settings.Clients) {
		return common.NewServiceError(op, fmt.Errorf("client %s not in proxy config: %w", accountID, common.ErrNotFound)).
			WithCode(common.ErrCodeNotFound)
	}

	inbound.Settings.Clients = kept
	if err := s.write(cfg); err != nil {
		return common.NewServiceError(op, err).WithCode(common.ErrCodeInternal)
	}
	logger.Infof("client %s removed from %s", accountID, s.path)
	return s.ApplyAndReload(ctx)
}

// ApplyAndReload 重载守护进程；失败时文件已更新，返回 ErrAppliedNotReloaded
func (s *ConfigSynchronizer) ApplyAndReload(ctx context.Context) error {
	if s.reloader == nil {
		return nil
	}
	if err := s.reloader.Reload(ctx); err != nil {
		var re *ReloadError
		detail := err.Error()
		if errors.As(err, &re) {
			detail = re.Detail
		}
		return common.NewServiceError("XraySync.ApplyAndReload", fmt.Errorf("%w: %s", common.ErrAppliedNotReloaded, detail)).
			WithCode(common.ErrCodeAppliedNotReloaded)
	}
	return nil
}

// ListClients 返回 vmess 入站的客户端列表
func (s *ConfigSynchronizer) ListClients() ([]Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.Read()
	if err != nil {
		return nil, err
	}
	inbound, err := s.vmessInbound("XraySync.ListClients", cfg)
	if err != nil {
		return nil, err
	}
	return inbound.Settings.Clients, nil
}

// ReconcileReport 账户记录与代理配置的差异
type ReconcileReport struct {
	// MissingInConfig 有记录但代理配置里没有对应 client id
	MissingInConfig []string `json:"missing_in_config"`
	// Orphans 代理配置里有但没有任何记录引用的客户端
	Orphans []Client `json:"orphans"`
	// LabelMismatch client id 一致但配置中的 email 与账户名不同
	LabelMismatch []string `json:"label_mismatch"`
}

func (r *ReconcileReport) Consistent() bool {
	return len(r.MissingInConfig) == 0 && len(r.Orphans) == 0 && len(r.LabelMismatch) == 0
}

// Reconcile 对比账户记录与代理配置，只报告不修改
func (s *ConfigSynchronizer) Reconcile() (*ReconcileReport, error) {
	clients, err := s.ListClients()
	if err != nil {
		return nil, err
	}
	accounts, err := s.store.ListAll()
	if err != nil {
		return nil, common.NewServiceError("XraySync.Reconcile", err).WithCode(common.ErrCodeInternal)
	}

	byID := make(map[string]Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}

	report := &ReconcileReport{}
	referenced := make(map[string]bool, len(accounts))
	for id, a := range accounts {
		referenced[a.ClientID] = true
		c, ok := byID[a.ClientID]
		if !ok {
			report.MissingInConfig = append(report.MissingInConfig, id)
			continue
		}
		if c.Email != "" && c.Email != id {
			report.LabelMismatch = append(report.LabelMismatch, id)
		}
	}
	for _, c := range clients {
		if !referenced[c.ID] {
			report.Orphans = append(report.Orphans, c)
		}
	}
	sort.Strings(report.MissingInConfig)
	sort.Strings(report.LabelMismatch)
	if !report.Consistent() {
		logger.Warningf("store/proxy config inconsistent: missing=%v orphans=%d mismatch=%v",
			report.MissingInConfig, len(report.Orphans), report.LabelMismatch)
	}
	return report, nil
}
