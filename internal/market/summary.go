package market

import (
	"fmt"
	"strings"

	"okra/internal/analysis/technical"
)

// SectorFunc 根据 instId 查询所属赛道，未知时返回 "Unknown"。
type SectorFunc func(instID string) string

// BuildSummary 将行情快照格式化为 LLM 易读的文本（按成交额排序取前 topN），
// 每行包含价格、赛道、24h 涨跌幅、成交额，风向标币种附带资金费率。
func BuildSummary(tickers []Ticker, sector SectorFunc, funding map[string]float64, topN int) string {
	rows := TopByVolume(tickers, topN)
	lines := make([]string, 0, len(rows))
	for _, t := range rows {
		sec := "Unknown"
		if sector != nil {
			sec = sector(t.InstID)
		}
		line := fmt.Sprintf("Symbol: %s, Price: %s, Sector: %s, 24h Change: %.2f%%, 24h Vol(USDT): %.0f",
			t.InstID, trimFloat(t.Last), sec, technical.Change(t.Last, t.Open24h), t.VolCcy24h)
		if fr, ok := funding[t.InstID]; ok {
			line += fmt.Sprintf(", Funding Rate: %.4f%%", fr)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func trimFloat(v float64) string {
	out := fmt.Sprintf("%.8f", v)
	out = strings.TrimRight(strings.TrimRight(out, "0"), ".")
	if out == "" {
		return "0"
	}
	return out
}
