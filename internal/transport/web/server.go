package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"okra/internal/logger"
	"okra/internal/paper"
	"okra/internal/report"
	"okra/internal/store"
)

// 中文说明：
// 只读 HTTP 接口：查询模拟盘快照、周报文本、交易历史与估值序列，
// 并输出净值曲线图表页面。不提供任何写操作，下单只由分析循环驱动。

type Server struct {
	addr    string
	trader  *paper.Trader
	archive *store.Archive
	srv     *http.Server
}

func NewServer(addr string, trader *paper.Trader, archive *store.Archive) *Server {
	s := &Server{addr: addr, trader: trader, archive: archive}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	api := r.Group("/api")
	{
		api.GET("/portfolio", s.handlePortfolio)
		api.GET("/report", s.handleReport)
		api.GET("/history", s.handleHistory)
		api.GET("/valuations", s.handleValuations)
		api.GET("/trades", s.handleTrades)
	}
	r.GET("/chart", s.handleChart)

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *Server) Addr() string { return s.addr }

// Start 启动监听并在 ctx 取消时优雅退出。
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("✓ HTTP 接口监听 %s", s.addr)

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handlePortfolio(c *gin.Context) {
	if s.trader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "模拟盘未启用"})
		return
	}
	pf := s.trader.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"balance":      pf.Balance,
		"positions":    pf.Positions,
		"total_value":  pf.TotalValue,
		"last_updated": pf.LastUpdated,
	})
}

func (s *Server) handleReport(c *gin.Context) {
	if s.trader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "模拟盘未启用"})
		return
	}
	c.String(http.StatusOK, s.trader.Report())
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.trader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "模拟盘未启用"})
		return
	}
	pf := s.trader.Snapshot()
	history := pf.History
	if n := queryLimit(c, 0); n > 0 && n < len(history) {
		history = history[len(history)-n:]
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) handleValuations(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "归档未启用"})
		return
	}
	points, err := s.archive.ListValuations(c.Request.Context(), queryLimit(c, 500))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, points)
}

func (s *Server) handleTrades(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "归档未启用"})
		return
	}
	ops, err := s.archive.ListTradeOps(c.Request.Context(), queryLimit(c, 100))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ops)
}

func (s *Server) handleChart(c *gin.Context) {
	if s.archive == nil {
		c.String(http.StatusServiceUnavailable, "归档未启用")
		return
	}
	points, err := s.archive.ListValuations(c.Request.Context(), queryLimit(c, 500))
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := report.RenderEquityChart(c.Writer, points); err != nil {
		logger.Errorf("渲染净值曲线失败: %v", err)
	}
}

func queryLimit(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
