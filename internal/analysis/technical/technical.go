package technical

import (
	"fmt"
	"strings"

	talib "github.com/markcheno/go-talib"
)

// 中文说明：
// 简单技术面计算：涨跌幅、波动率，以及基于 K 线收盘价的指标快照
// （EMA 7/25/99 + RSI 14），快照文本拼入 LLM 提示词作为技术面参考。

const (
	emaFast = 7
	emaMid  = 25
	emaSlow = 99
	rsiLen  = 14
)

// Change 计算涨跌幅（百分比）；开盘价为 0 时返回 0。
func Change(current, open float64) float64 {
	if open == 0 {
		return 0
	}
	return (current - open) / open * 100
}

// Volatility 以高低价差衡量波动率（百分比）；低价为 0 时返回 0。
func Volatility(high, low float64) float64 {
	if low == 0 {
		return 0
	}
	return (high - low) / low * 100
}

// Snapshot 对收盘价序列生成指标快照文本。
// 数据不足以计算最慢的指标时返回空串（调用方直接跳过该段落）。
func Snapshot(instID, bar string, closes []float64) string {
	if len(closes) < emaSlow+1 {
		return ""
	}
	last := func(xs []float64) float64 { return xs[len(xs)-1] }
	rsi := last(talib.Rsi(closes, rsiLen))
	fast := last(talib.Ema(closes, emaFast))
	mid := last(talib.Ema(closes, emaMid))
	slow := last(talib.Ema(closes, emaSlow))

	trend := "震荡"
	switch {
	case fast > mid && mid > slow:
		trend = "多头排列"
	case fast < mid && mid < slow:
		trend = "空头排列"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s 技术面: ", instID, bar))
	sb.WriteString(fmt.Sprintf("收盘=%.4f, RSI(%d)=%.1f, ", last(closes), rsiLen, rsi))
	sb.WriteString(fmt.Sprintf("EMA%d/%d/%d=%.4f/%.4f/%.4f (%s)", emaFast, emaMid, emaSlow, fast, mid, slow, trend))
	return sb.String()
}
