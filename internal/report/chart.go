package report

import (
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"okra/internal/store"
)

// 中文说明：
// 净值曲线：把估值快照画成折线图（总资产 + 可用余额两条线），
// 输出自包含的 HTML，由 Web 端直接返回给浏览器。

// RenderEquityChart 将估值序列渲染为 HTML 折线图写入 w。
func RenderEquityChart(w io.Writer, points []store.ValuationPoint) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "模拟盘净值曲线",
			Subtitle: "总资产与可用余额 (USDT)",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	xs := make([]string, 0, len(points))
	totals := make([]opts.LineData, 0, len(points))
	balances := make([]opts.LineData, 0, len(points))
	for _, p := range points {
		xs = append(xs, time.UnixMilli(p.Timestamp).Format("01-02 15:04"))
		totals = append(totals, opts.LineData{Value: p.TotalValue})
		balances = append(balances, opts.LineData{Value: p.Balance})
	}

	line.SetXAxis(xs).
		AddSeries("总资产", totals).
		AddSeries("可用余额", balances).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	return line.Render(w)
}
