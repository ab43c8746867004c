package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"okra/internal/ai"
	"okra/internal/analysis/sector"
	"okra/internal/analysis/technical"
	"okra/internal/config"
	"okra/internal/logger"
	"okra/internal/market"
	"okra/internal/news"
	"okra/internal/notify"
	"okra/internal/paper"
	"okra/internal/pkg/jsonutil"
	"okra/internal/report"
	"okra/internal/store"
)

// AnalysisService 负责完整的分析循环：
// 行情 → 赛道识别 → 新闻 → AI 分析 → 推送 → 交易决策 → 模拟盘执行 → 估值归档。
type AnalysisService struct {
	cfg      *config.Config
	source   market.Source
	analyst  *ai.Analyst
	resolver *sector.Resolver
	news     *news.Client
	notifier *notify.Notifier
	trader   *paper.Trader
	archive  *store.Archive
}

// Run 按调度配置执行分析循环。未启用调度时只跑一轮后返回。
func (s *AnalysisService) Run(ctx context.Context) error {
	sched := s.cfg.Schedule
	if !sched.Enabled {
		return s.RunOnce(ctx)
	}

	if sched.IntervalMinutes > 0 {
		interval := time.Duration(sched.IntervalMinutes) * time.Minute
		logger.Infof("定时分析已启用: 每 %d 分钟", sched.IntervalMinutes)
		// 启动即跑一轮，再按间隔循环
		if err := s.RunOnce(ctx); err != nil {
			logger.Errorf("分析执行失败: %v", err)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := s.RunOnce(ctx); err != nil {
					logger.Errorf("分析执行失败: %v", err)
				}
			}
		}
	}

	logger.Infof("定时分析已启用: 每日 %s", sched.DailyAt)
	for {
		wait := untilNextClock(time.Now(), sched.DailyAt)
		logger.Infof("下一轮分析在 %s 后执行", wait.Truncate(time.Second))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if err := s.RunOnce(ctx); err != nil {
				logger.Errorf("分析执行失败: %v", err)
			}
		}
	}
}

// RunOnce 执行一轮完整分析。行情拉取失败整轮失败；
// 新闻、赛道识别、推送、归档失败只记日志不中断。
func (s *AnalysisService) RunOnce(ctx context.Context) error {
	traceID := uuid.NewString()
	start := time.Now()
	logger.Infof("===== 开始分析 [%s] =====", traceID)

	tickers, err := s.source.Tickers(ctx)
	if err != nil {
		return fmt.Errorf("拉取行情失败: %w", err)
	}
	logger.Infof("获取到 %d 个 USDT 交易对", len(tickers))

	funding, err := s.source.FundingRates(ctx, s.cfg.Market.FundingSymbols)
	if err != nil {
		logger.Warnf("拉取资金费率失败: %v", err)
	}

	// 新币种赛道批量补齐（只问 AI 一次，结果进缓存）
	top := market.TopByVolume(tickers, s.cfg.Market.TopN)
	if s.analyst.Enabled() {
		ids := make([]string, 0, len(top))
		for _, t := range top {
			ids = append(ids, t.InstID)
		}
		s.resolver.UpdateWithAI(ctx, s.analyst, ids)
	}

	summary := market.BuildSummary(tickers, s.resolver.Lookup, funding, s.cfg.Market.TopN)
	summary += s.technicalSnapshot(ctx)

	newsText := ""
	newsCount := 0
	if s.news.Enabled() {
		items := s.news.Latest(ctx, s.cfg.News.Currencies, s.cfg.News.Limit)
		newsText = news.Render(items)
		newsCount = len(items)
		logger.Infof("获取到 %d 条新闻", newsCount)
	}

	analysis := ""
	if s.analyst.Enabled() {
		analysis, err = s.analyst.AnalyzeMarket(ctx, summary, newsText, "")
		if err != nil {
			logger.Errorf("AI 市场分析失败: %v", err)
		} else {
			logger.Infof("\n%s", report.RenderBlockTable("市场分析报告", analysis))
			s.notifier.Send(ctx, "📊 加密货币市场分析", analysis)
		}
	}

	decisionsJSON := s.runTrading(ctx, traceID, summary, tickers)

	if s.archive != nil {
		rec := store.RunRecord{
			TraceID:       traceID,
			Model:         s.cfg.AI.Model,
			SummaryChars:  len(summary),
			NewsCount:     newsCount,
			Report:        analysis,
			DecisionsJSON: decisionsJSON,
		}
		if err := s.archive.SaveRun(ctx, rec); err != nil {
			logger.Errorf("归档分析记录失败: %v", err)
		}
	}

	logger.Infof("===== 分析完成 [%s] 耗时 %s =====", traceID, time.Since(start).Truncate(time.Millisecond))
	return nil
}

// technicalSnapshot 拉取基准币种 K 线并生成技术面快照文本，失败返回空串。
func (s *AnalysisService) technicalSnapshot(ctx context.Context) string {
	m := s.cfg.Market
	candles, err := s.source.Candles(ctx, m.CandleSymbol, m.CandleBar, m.CandleLimit)
	if err != nil {
		logger.Warnf("拉取 %s K 线失败: %v", m.CandleSymbol, err)
		return ""
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	snap := technical.Snapshot(m.CandleSymbol, m.CandleBar, closes)
	if snap == "" {
		return ""
	}
	return "\n\n" + snap
}

// runTrading 执行 AI 交易决策与模拟盘流水，返回本轮合规决策的 JSON（用于归档）。
func (s *AnalysisService) runTrading(ctx context.Context, traceID, summary string, tickers []market.Ticker) string {
	if s.trader == nil || !s.analyst.Enabled() {
		return ""
	}

	decisions, raw, err := s.analyst.DecideTrades(ctx, summary, s.trader.Report())
	if err != nil {
		logger.Errorf("AI 交易决策失败: %v", err)
		logger.Debugf("模型原始输出: %s", raw)
		return ""
	}
	logger.Debugf("本轮决策:\n%s", jsonutil.Pretty(raw))

	valid := decisions[:0]
	for i := range decisions {
		if verr := ai.Validate(&decisions[i]); verr != nil {
			logger.Warnf("丢弃不合规决策: %v", verr)
			continue
		}
		valid = append(valid, decisions[i])
	}
	if max := s.cfg.Paper.MaxTradesPerCycle; len(valid) > max {
		logger.Warnf("决策数量超限，只执行前 %d 条", max)
		valid = valid[:max]
	}

	prices := market.PriceMap(tickers)
	for _, d := range valid {
		if d.Action == ai.ActionHold {
			logger.Infof("本轮观望: %s", d.Reason)
			s.archiveTradeOp(ctx, traceID, d, 0, false)
			continue
		}
		price, ok := prices[d.Symbol]
		if !ok {
			logger.Warnf("无 %s 的有效价格，跳过 %s", d.Symbol, d.Action)
			s.archiveTradeOp(ctx, traceID, d, 0, false)
			continue
		}
		executed := s.trader.ExecuteTrade(d.Action, d.Symbol, price, d.AmountUSDT, d.Reason)
		s.archiveTradeOp(ctx, traceID, d, price, executed)
	}

	total := s.trader.UpdateValuations(prices)
	logger.Infof("模拟盘总资产: %.2f USDT", total)
	if s.archive != nil {
		snap := s.trader.Snapshot()
		err := s.archive.SaveValuation(ctx, store.ValuationPoint{
			Balance:    snap.Balance,
			TotalValue: snap.TotalValue,
		})
		if err != nil {
			logger.Errorf("归档估值快照失败: %v", err)
		}
	}
	s.notifier.Send(ctx, "💰 模拟盘持仓报告", s.trader.Report())

	buf, err := json.Marshal(valid)
	if err != nil {
		return ""
	}
	return string(buf)
}

func (s *AnalysisService) archiveTradeOp(ctx context.Context, traceID string, d ai.TradeDecision, price float64, executed bool) {
	if s.archive == nil {
		return
	}
	op := store.TradeOp{
		TraceID:    traceID,
		Action:     d.Action,
		Symbol:     d.Symbol,
		Price:      price,
		AmountUSDT: d.AmountUSDT,
		Executed:   executed,
		Reason:     d.Reason,
	}
	if err := s.archive.SaveTradeOp(ctx, op); err != nil {
		logger.Errorf("归档交易流水失败: %v", err)
	}
}

// untilNextClock 返回从 now 到下一次 HH:MM 的等待时长（今日已过则顺延到明天）。
func untilNextClock(now time.Time, clock string) time.Duration {
	var h, m int
	fmt.Sscanf(clock, "%d:%d", &h, &m)
	next := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
