package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// 中文说明：
// 行情源抽象：提供现货行情快照、K 线与资金费率。
// 具体实现目前有 OKX（默认）与 Binance 两套，由配置 exchange.name 选择。

// Ticker 现货 24h 行情快照，价格与成交额均为报价币（USDT）单位。
type Ticker struct {
	InstID    string  // 规范形式，如 BTC-USDT
	Last      float64 // 最新成交价
	Open24h   float64
	High24h   float64
	Low24h    float64
	VolCcy24h float64 // 24h 成交额（报价币）
}

// Candle 单根 K 线（毫秒时间戳，已按时间正序排列）。
type Candle struct {
	Ts     int64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Source 行情源接口
type Source interface {
	// Tickers 返回全部 USDT 现货交易对的行情快照
	Tickers(ctx context.Context) ([]Ticker, error)
	// Candles 返回指定交易对最近 limit 根 K 线（时间正序）
	Candles(ctx context.Context, instID, bar string, limit int) ([]Candle, error)
	// FundingRates 返回给定现货交易对对应永续合约的最新资金费率（百分比）
	FundingRates(ctx context.Context, instIDs []string) (map[string]float64, error)
	Name() string
}

// SourceConfig 行情源构造参数
type SourceConfig struct {
	Name    string
	BaseURL string
}

// NewSource 根据配置构造行情源
func NewSource(cfg SourceConfig) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", "okx":
		return NewOKXSource(cfg.BaseURL), nil
	case "binance":
		return NewBinanceSource(), nil
	default:
		return nil, fmt.Errorf("未知行情源: %s", cfg.Name)
	}
}

// PriceMap 将行情快照转为 {instId: 最新价}，供估值与交易执行使用。
func PriceMap(tickers []Ticker) map[string]float64 {
	out := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		if t.Last > 0 {
			out[t.InstID] = t.Last
		}
	}
	return out
}

// TopByVolume 按 24h 成交额降序返回前 n 个交易对。
func TopByVolume(tickers []Ticker, n int) []Ticker {
	sorted := make([]Ticker, len(tickers))
	copy(sorted, tickers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].VolCcy24h > sorted[j].VolCcy24h })
	if n > 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// BaseCoin 去掉 -USDT 等后缀，返回基础币种代码。
func BaseCoin(instID string) string {
	if i := strings.Index(instID, "-"); i > 0 {
		return instID[:i]
	}
	return instID
}
