// Package apihttp 提供規則管理、行情查詢與回測的 HTTP API。
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"twquant/internal/backtest"
	"twquant/internal/indicator"
	"twquant/internal/market"
	"twquant/internal/rule"
)

// seriesLabels 是指標序列的顯示名稱；核心一律用 ASCII 鍵，
// 只有在這一層才轉成在地化名稱。
var seriesLabels = map[string]string{
	indicator.KeyClose:     "收盤價",
	indicator.KeyBollUpper: "上軌",
	indicator.KeyBollMid:   "中軌",
	indicator.KeyBollLower: "下軌",
}

func seriesLabel(key string) string {
	if label, ok := seriesLabels[key]; ok {
		return label
	}
	return key
}

// Server 是對外的 HTTP 服務。
type Server struct {
	addr   string
	repo   rule.Repository
	svc    *backtest.Service
	store  *market.Store
	router *gin.Engine
}

// Config 描述 HTTP Server 的依賴。
type Config struct {
	Addr  string
	Repo  rule.Repository
	Svc   *backtest.Service
	Store *market.Store
}

// NewServer 建構 HTTP Server。
func NewServer(cfg Config) (*Server, error) {
	if cfg.Repo == nil {
		return nil, errors.New("規則庫不能為空")
	}
	if cfg.Svc == nil {
		return nil, errors.New("回測服務不能為空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:   cfg.Addr,
		repo:   cfg.Repo,
		svc:    cfg.Svc,
		store:  cfg.Store,
		router: router,
	}
	s.registerRoutes()
	return s, nil
}

// Router 暴露底層路由，供測試直接發請求。
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	api.GET("/indicators/:type/params", s.handleIndicatorParams)

	api.GET("/rules", s.handleRuleList)
	api.POST("/rules", s.handleRuleCreate)
	api.DELETE("/rules/:id", s.handleRuleDelete)
	api.POST("/rules/:id/conditions", s.handleConditionAdd)
	api.DELETE("/rules/:id/conditions/:cid", s.handleConditionRemove)

	api.GET("/stocks/search", s.handleStockSearch)
	api.GET("/stocks/:market/:code/daily", s.handleDailyBars)

	api.POST("/backtest", s.handleBacktest)
}

// respondErr 把領域錯誤對應到 HTTP 狀態碼。
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, rule.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, market.ErrConfig):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleIndicatorParams(c *gin.Context) {
	t, err := rule.ParseIndicatorType(c.Param("type"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"indicator_type": t, "params": rule.ParamsFor(t)})
}

func (s *Server) handleRuleList(c *gin.Context) {
	groups, err := s.repo.List(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": groups})
}

func (s *Server) handleRuleCreate(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		RuleType string `json:"rule_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := s.repo.Create(c.Request.Context(), req.Name, req.RuleType)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rule": g})
}

func (s *Server) handleRuleDelete(c *gin.Context) {
	if err := s.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (s *Server) handleConditionAdd(c *gin.Context) {
	var cond rule.Condition
	if err := c.ShouldBindJSON(&cond); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	added, err := s.repo.AddCondition(c.Request.Context(), c.Param("id"), cond)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"condition": added})
}

func (s *Server) handleConditionRemove(c *gin.Context) {
	if err := s.repo.RemoveCondition(c.Request.Context(), c.Param("id"), c.Param("cid")); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("cid")})
}

func (s *Server) handleStockSearch(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "行情資料庫未啟用"})
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q 必填"})
		return
	}
	stocks, err := s.store.SearchStocks(c.Request.Context(), q)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stocks": stocks})
}

func (s *Server) handleDailyBars(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "行情資料庫未啟用"})
		return
	}
	bars, err := s.store.RangeBars(
		c.Request.Context(),
		c.Param("market"),
		c.Param("code"),
		c.Query("start"),
		c.Query("end"),
	)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bars": bars})
}

func (s *Server) handleBacktest(c *gin.Context) {
	var req struct {
		DailyData []market.Bar `json:"daily_data" binding:"required"`
		Shares    int64        `json:"shares"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.svc.Run(c.Request.Context(), req.DailyData, req.Shares)
	if err != nil {
		respondErr(c, err)
		return
	}

	series := make([]gin.H, 0, len(res.Series))
	for key, values := range res.Series {
		series = append(series, gin.H{
			"key":    key,
			"name":   seriesLabel(key),
			"values": values,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"dates":         res.Dates,
		"trades":        res.Trades,
		"metrics":       res.Metrics,
		"entry_signals": res.Entry,
		"exit_signals":  res.Exit,
		"series":        series,
	})
}

// Start 啟動 HTTP 服務，阻塞直到 ctx 取消或出現錯誤。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
