package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mayugoro/xray/config"
	"github.com/mayugoro/xray/database"
	"github.com/mayugoro/xray/database/model"
	"github.com/mayugoro/xray/link"
	"github.com/mayugoro/xray/logger"
	"github.com/mayugoro/xray/util/common"
	"github.com/mayugoro/xray/xray"
)

// accountIDRe 允许邮箱样式的名字与生成的 vmess_<ts> 标识
var accountIDRe = regexp.MustCompile(`^[A-Za-z0-9_.@+-]{1,64}$`)

// ProxySynchronizer 代理配置的客户端增删与对账
type ProxySynchronizer interface {
	AddClient(ctx context.Context, accountID, clientID string) error
	RemoveClient(ctx context.Context, accountID string) error
	ListClients() ([]xray.Client, error)
	Reconcile() (*xray.ReconcileReport, error)
}

// DomainProvider 返回当前可用的隧道域名（例如临时隧道分配的域名），没有时返回空串
type DomainProvider interface {
	ActiveDomain() string
}

// AccountView 账户记录加上展示用的派生字段
type AccountView struct {
	AccountID  string    `json:"account_id"`
	ClientID   string    `json:"client_id"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiryDate time.Time `json:"expiry_date"`
	Days       int       `json:"days"`
	Active     bool      `json:"active"`
	Expired    bool      `json:"expired"`
	DaysLeft   int       `json:"days_left"`
	Mode       string    `json:"mode"`
	Link       string    `json:"link"`
}

// AccountService 账户生命周期：记录存储与代理配置两边保持一致
type AccountService struct {
	cfg     *config.Config
	store   database.AccountStore
	sync    ProxySynchronizer
	domains DomainProvider

	// mu 串行化创建与删除，避免 bot 与其他入口交错
	mu  sync.Mutex
	now func() time.Time
}

func NewAccountService(cfg *config.Config, store database.AccountStore, syncer ProxySynchronizer) *AccountService {
	return &AccountService{
		cfg:   cfg,
		store: store,
		sync:  syncer,
		now:   time.Now,
	}
}

// SetDomainProvider 注入隧道域名来源
func (s *AccountService) SetDomainProvider(p DomainProvider) {
	s.domains = p
}

func validateCreate(accountID string, days int) error {
	if accountID != "" && !accountIDRe.MatchString(accountID) {
		return common.NewServiceError("Account.Create",
			fmt.Errorf("%w: account id %q must be 1-64 letters, digits or _.@+-", common.ErrInvalidInput, accountID)).
			WithCode(common.ErrCodeInvalidInput)
	}
	if days <= 0 {
		return common.NewServiceError("Account.Create", fmt.Errorf("%w: days must be positive, got %d", common.ErrInvalidInput, days)).
			WithCode(common.ErrCodeInvalidInput)
	}
	return nil
}

// Create 新建账户。空 accountID 会生成 vmess_<ts>；已存在的账户按幂等成功返回原记录。
func (s *AccountService) Create(ctx context.Context, accountID string, days int) (*AccountView, common.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID = strings.TrimSpace(accountID)
	if err := validateCreate(accountID, days); err != nil {
		return nil, common.Failure(err)
	}

	now := s.now()
	if accountID == "" {
		accountID = xray.GenerateAccountID(now, func(id string) bool {
			a, err := s.store.Get(id)
			return err == nil && a != nil
		})
	}

	existing, err := s.store.Get(accountID)
	if err != nil {
		return nil, common.Failure(common.Wrap("Account.Create", err))
	}
	if existing != nil {
		view := s.view(existing, now)
		return view, common.Result{
			OK:     true,
			Code:   common.ErrCodeAlreadyExists,
			Detail: fmt.Sprintf("account %s already exists", accountID),
		}
	}

	clientID := xray.GenerateClientID()
	detail := fmt.Sprintf("account %s created, valid for %d days", accountID, days)
	syncErr := s.sync.AddClient(ctx, accountID, clientID)
	switch {
	case syncErr == nil:
	case errors.Is(syncErr, common.ErrAlreadyExists):
		// 配置里已有同名客户端但没有记录：沿用配置中的 client id
		adopted, err := s.adoptClientID(accountID)
		if err != nil {
			return nil, common.Failure(err)
		}
		clientID = adopted
		detail = fmt.Sprintf("account %s adopted existing proxy client", accountID)
	case errors.Is(syncErr, common.ErrAppliedNotReloaded):
		// 配置文件已经包含该客户端，记录也要落盘
	default:
		logger.Warningf("add client %s failed: %v", accountID, syncErr)
		return nil, common.Failure(syncErr)
	}

	account, err := database.AddAccount(s.store, accountID, clientID, days, now)
	if err != nil {
		logger.Errorf("account %s is in proxy config but record was not saved: %v", accountID, err)
		return nil, common.Failure(common.NewServiceError("Account.Create", err).WithCode(common.ErrCodeIntegrity))
	}
	view := s.view(account, now)

	if syncErr != nil && errors.Is(syncErr, common.ErrAppliedNotReloaded) {
		logger.Warningf("account %s stored but xray not reloaded: %v", accountID, syncErr)
		return view, common.Failure(syncErr)
	}
	logger.Infof("account %s created (%d days)", accountID, days)
	return view, common.Success(detail)
}

func (s *AccountService) adoptClientID(accountID string) (string, error) {
	clients, err := s.sync.ListClients()
	if err != nil {
		return "", err
	}
	for _, c := range clients {
		if c.Email == accountID {
			return c.ID, nil
		}
	}
	return "", common.NewServiceError("Account.Create",
		fmt.Errorf("proxy config reports %s as existing but has no such client: %w", accountID, common.ErrNotFound)).
		WithCode(common.ErrCodeIntegrity)
}

// Delete 删除账户。代理配置里已经没有对应客户端时仍删除记录，并在结果中说明不一致。
func (s *AccountService) Delete(ctx context.Context, accountID string) common.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID = strings.TrimSpace(accountID)
	existing, err := s.store.Get(accountID)
	if err != nil {
		return common.Failure(common.Wrap("Account.Delete", err))
	}
	if existing == nil {
		return common.Failure(common.NewServiceError("Account.Delete", fmt.Errorf("account %s: %w", accountID, common.ErrNotFound)).
			WithCode(common.ErrCodeNotFound))
	}

	syncErr := s.sync.RemoveClient(ctx, accountID)
	inconsistent := false
	switch {
	case syncErr == nil:
	case errors.Is(syncErr, common.ErrNotFound):
		inconsistent = true
	case errors.Is(syncErr, common.ErrAppliedNotReloaded):
	default:
		logger.Warningf("remove client %s failed: %v", accountID, syncErr)
		return common.Failure(syncErr)
	}

	if _, err := s.store.Delete(accountID); err != nil {
		return common.Failure(common.NewServiceError("Account.Delete", err).WithCode(common.ErrCodeIntegrity))
	}

	if inconsistent {
		logger.Warningf("account %s had no client in proxy config, record removed", accountID)
		return common.Result{
			OK:     true,
			Code:   common.ErrCodeIntegrity,
			Detail: fmt.Sprintf("account %s removed; its client was already missing from the proxy config", accountID),
		}
	}
	if syncErr != nil {
		return common.Failure(syncErr)
	}
	logger.Infof("account %s deleted", accountID)
	return common.Success(fmt.Sprintf("account %s deleted", accountID))
}

// Get 账户不存在时返回 ErrNotFound
func (s *AccountService) Get(accountID string) (*AccountView, error) {
	a, err := s.store.Get(strings.TrimSpace(accountID))
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, common.ErrNotFound)
	}
	return s.view(a, s.now()), nil
}

// List 按账户名排序
func (s *AccountService) List() ([]AccountView, error) {
	all, err := s.store.ListAll()
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]AccountView, 0, len(all))
	for _, a := range all {
		views = append(views, *s.view(a, now))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].AccountID < views[j].AccountID })
	return views, nil
}

// ExpiredAccounts 在 now 时刻已过期的账户
func (s *AccountService) ExpiredAccounts(now time.Time) ([]AccountView, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var expired []AccountView
	for _, v := range all {
		if !now.After(v.ExpiryDate) {
			continue
		}
		v.Expired = true
		expired = append(expired, v)
	}
	return expired, nil
}

// Link 账户的 vmess:// 链接
func (s *AccountService) Link(accountID string) (string, error) {
	v, err := s.Get(accountID)
	if err != nil {
		return "", err
	}
	return v.Link, nil
}

// Reconcile 只报告记录与代理配置的差异
func (s *AccountService) Reconcile() (*xray.ReconcileReport, error) {
	return s.sync.Reconcile()
}

// Route 当前用于生成链接的路由
func (s *AccountService) Route() link.Route {
	opts := link.RouteOptions{
		ServerAddr:    s.cfg.ServerAddr,
		Port:          s.cfg.VMessPort,
		BugHost:       s.cfg.BugHost,
		TunnelDomain:  s.cfg.ArgoDomain,
		TunnelEnabled: s.cfg.TunnelEnabled(),
	}
	if s.domains != nil {
		if d := s.domains.ActiveDomain(); d != "" {
			opts.TunnelDomain = d
			opts.TunnelEnabled = true
		}
	}
	return link.SelectRoute(opts)
}

func (s *AccountService) view(a *model.Account, now time.Time) *AccountView {
	route := s.Route()
	return &AccountView{
		AccountID:  a.AccountID,
		ClientID:   a.ClientID,
		CreatedAt:  a.CreatedAt,
		ExpiryDate: a.ExpiryDate,
		Days:       a.Days,
		Active:     a.Active,
		Expired:    a.IsExpiredAt(now),
		DaysLeft:   a.DaysLeft(now),
		Mode:       route.Mode.String(),
		Link:       link.Encode(a.AccountID, a.ClientID, route, s.wsPath()),
	}
}

func (s *AccountService) wsPath() string {
	if s.cfg.WSPath == "" {
		return link.DefaultPath
	}
	return s.cfg.WSPath
}
