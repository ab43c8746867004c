package report

import (
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"okra/internal/pkg/format"
	"okra/internal/paper"
	"okra/internal/store"
)

// RenderBlockTable 渲染单列表格，标题作为表头，内容放入一行，便于日志展示。
func RenderBlockTable(title, content string) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{title})
	t.AppendRow(table.Row{content})
	return t.Render()
}

// RenderPortfolioTable 将持仓快照渲染为终端表格。
func RenderPortfolioTable(pf paper.Portfolio) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("模拟盘持仓")
	t.AppendHeader(table.Row{"币种", "数量"})

	symbols := make([]string, 0, len(pf.Positions))
	for sym := range pf.Positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		t.AppendRow(table.Row{sym, format.Float(pf.Positions[sym], 6)})
	}
	t.AppendFooter(table.Row{"可用余额", format.USDT(pf.Balance)})
	t.AppendFooter(table.Row{"总资产", format.USDT(pf.TotalValue)})
	return t.Render()
}

// RenderTradeOpsTable 将归档交易流水渲染为终端表格。
func RenderTradeOpsTable(ops []store.TradeOp) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("交易流水")
	t.AppendHeader(table.Row{"动作", "币种", "价格", "金额(USDT)", "执行", "理由"})
	for _, op := range ops {
		executed := "否"
		if op.Executed {
			executed = "是"
		}
		t.AppendRow(table.Row{
			op.Action, op.Symbol,
			format.Float(op.Price, 6), format.Float(op.AmountUSDT, 2),
			executed, op.Reason,
		})
	}
	return t.Render()
}
