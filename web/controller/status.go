package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/mayugoro/xray/web/entity"
	"github.com/mayugoro/xray/web/service"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type AccountLister interface {
	List() ([]service.AccountView, error)
}

type ConnectionReporter interface {
	GetLiveConnections(ctx context.Context) []service.ConnectionSample
	GetConnectionCount(ctx context.Context) int
}

type TunnelReporter interface {
	Status() service.TunnelStatus
}

// StatusController 只读状态接口，任何依赖为 nil 时对应路由返回 503
type StatusController struct {
	accounts AccountLister
	conns    ConnectionReporter
	tunnel   TunnelReporter
	started  time.Time
	timeout  time.Duration
}

func NewStatusController(g *gin.RouterGroup, accounts AccountLister, conns ConnectionReporter, tunnel TunnelReporter, timeout time.Duration) *StatusController {
	a := &StatusController{
		accounts: accounts,
		conns:    conns,
		tunnel:   tunnel,
		started:  time.Now(),
		timeout:  timeout,
	}
	a.initRouter(g)
	return a
}

func (a *StatusController) initRouter(g *gin.RouterGroup) {
	g.GET("/healthz", a.healthz)

	api := g.Group("/api")
	api.GET("/accounts", a.listAccounts)
	api.GET("/connections", a.connections)
	api.GET("/tunnel", a.tunnelStatus)
}

func (a *StatusController) healthz(c *gin.Context) {
	jsonObj(c, gin.H{
		"status": "ok",
		"uptime": int64(time.Since(a.started).Seconds()),
	})
}

func (a *StatusController) listAccounts(c *gin.Context) {
	if a.accounts == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	views, err := a.accounts.List()
	if err != nil {
		jsonMsg(c, http.StatusInternalServerError, "list accounts", err)
		return
	}
	entries := make([]entity.AccountEntry, 0, len(views))
	for _, v := range views {
		entries = append(entries, entity.AccountEntry{
			AccountID:  v.AccountID,
			ClientID:   v.ClientID,
			CreatedAt:  v.CreatedAt.Format(dateLayout),
			ExpiryDate: v.ExpiryDate.Format(dateLayout),
			DaysLeft:   v.DaysLeft,
			Expired:    v.Expired,
		})
	}
	jsonObj(c, entries)
}

func (a *StatusController) connections(c *gin.Context) {
	if a.conns == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), a.timeout)
	defer cancel()

	samples := a.conns.GetLiveConnections(ctx)
	report := entity.ConnectionsReport{
		Count:   len(samples),
		Sockets: a.conns.GetConnectionCount(ctx),
		Items:   samples,
	}
	if len(samples) > 0 {
		report.Kind = string(samples[0].Kind)
	}
	jsonObj(c, report)
}

func (a *StatusController) tunnelStatus(c *gin.Context) {
	if a.tunnel == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	jsonObj(c, a.tunnel.Status())
}
