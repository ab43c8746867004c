package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/sync/errgroup"

	"okra/internal/logger"
)

// 中文说明：
// Binance 行情源：现货 24h 快照与 K 线走公开接口（无需 API Key），
// 资金费率走 USDT-M 合约 premiumIndex。对外统一使用 BTC-USDT 这类
// 规范 instId，内部转换为 Binance 的 BTCUSDT 形式。

type BinanceSource struct {
	spot *binance.Client
	fut  *futures.Client
}

func NewBinanceSource() *BinanceSource {
	return &BinanceSource{
		spot: binance.NewClient("", ""),
		fut:  futures.NewClient("", ""),
	}
}

func (s *BinanceSource) Name() string { return "binance" }

// toInstID BTCUSDT -> BTC-USDT
func toInstID(symbol string) string {
	if strings.HasSuffix(symbol, "USDT") && len(symbol) > 4 {
		return symbol[:len(symbol)-4] + "-USDT"
	}
	return symbol
}

// toBinanceSymbol BTC-USDT -> BTCUSDT
func toBinanceSymbol(instID string) string {
	return strings.ReplaceAll(strings.ToUpper(instID), "-", "")
}

func (s *BinanceSource) Tickers(ctx context.Context) ([]Ticker, error) {
	stats, err := s.spot.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance 24h 行情失败: %w", err)
	}
	out := make([]Ticker, 0, len(stats))
	for _, st := range stats {
		if !strings.HasSuffix(st.Symbol, "USDT") {
			continue
		}
		t, ok := parseTicker(toInstID(st.Symbol), st.LastPrice, st.OpenPrice, st.HighPrice, st.LowPrice, st.QuoteVolume)
		if !ok {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("binance 返回空行情")
	}
	return out, nil
}

func (s *BinanceSource) Candles(ctx context.Context, instID, bar string, limit int) ([]Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.spot.NewKlinesService().
		Symbol(toBinanceSymbol(instID)).
		Interval(strings.ToLower(bar)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance K线失败: %w", err)
	}
	out := make([]Candle, 0, len(rows))
	for _, r := range rows {
		o, err1 := strconv.ParseFloat(r.Open, 64)
		h, err2 := strconv.ParseFloat(r.High, 64)
		l, err3 := strconv.ParseFloat(r.Low, 64)
		c, err4 := strconv.ParseFloat(r.Close, 64)
		v, err5 := strconv.ParseFloat(r.Volume, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		out = append(out, Candle{Ts: r.OpenTime, Open: o, High: h, Low: l, Close: c, Volume: v})
	}
	return out, nil
}

func (s *BinanceSource) FundingRates(ctx context.Context, instIDs []string) (map[string]float64, error) {
	rates := make(map[string]float64, len(instIDs))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range instIDs {
		spotID := id
		g.Go(func() error {
			rows, err := s.fut.NewPremiumIndexService().Symbol(toBinanceSymbol(spotID)).Do(ctx)
			if err != nil {
				logger.Debugf("获取 %s 资金费率失败: %v", spotID, err)
				return nil
			}
			if len(rows) == 0 {
				return nil
			}
			v, err := strconv.ParseFloat(rows[0].LastFundingRate, 64)
			if err != nil {
				return nil
			}
			mu.Lock()
			rates[spotID] = v * 100
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rates, err
	}
	return rates, nil
}
