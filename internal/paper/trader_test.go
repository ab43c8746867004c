package paper

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
}

func newTestTrader(t *testing.T, initial float64, strict bool) *Trader {
	t.Helper()
	tr := NewTrader(t.TempDir(), initial, strict)
	tr.now = fixedClock
	return tr
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBuyAndSellFullCycle(t *testing.T) {
	tr := newTestTrader(t, 10000, false)

	if !tr.ExecuteTrade("buy", "BTC-USDT", 50000, 1000, "看多") {
		t.Fatal("买入应成功")
	}
	pf := tr.Snapshot()
	if !approxEqual(pf.Balance, 9000) {
		t.Fatalf("余额 = %v, want 9000", pf.Balance)
	}
	if !approxEqual(pf.Positions["BTC-USDT"], 0.02) {
		t.Fatalf("持仓 = %v, want 0.02", pf.Positions["BTC-USDT"])
	}

	if !tr.ExecuteTrade("sell", "BTC-USDT", 60000, SellAll, "止盈") {
		t.Fatal("清仓应成功")
	}
	pf = tr.Snapshot()
	if !approxEqual(pf.Balance, 10200) {
		t.Fatalf("余额 = %v, want 10200", pf.Balance)
	}
	if _, ok := pf.Positions["BTC-USDT"]; ok {
		t.Fatal("清仓后持仓条目应删除")
	}
	if len(pf.History) != 2 {
		t.Fatalf("流水条数 = %d, want 2", len(pf.History))
	}
	rec := pf.History[0]
	if rec.Time != "2025-06-01 12:30:00" || rec.Action != "buy" || rec.Symbol != "BTC-USDT" {
		t.Fatalf("流水记录异常: %+v", rec)
	}
	if pf.LastUpdated == nil || *pf.LastUpdated != "2025-06-01 12:30:00" {
		t.Fatalf("last_updated = %v", pf.LastUpdated)
	}
}

func TestBuyInsufficientBalance(t *testing.T) {
	tr := newTestTrader(t, 500, false)

	if tr.ExecuteTrade("buy", "ETH-USDT", 3000, 1000, "") {
		t.Fatal("余额不足时买入应失败")
	}
	pf := tr.Snapshot()
	if !approxEqual(pf.Balance, 500) || len(pf.Positions) != 0 || len(pf.History) != 0 {
		t.Fatalf("失败的买入不应改动状态: %+v", pf)
	}
}

func TestSellWithoutPosition(t *testing.T) {
	tr := newTestTrader(t, 1000, false)
	if tr.ExecuteTrade("sell", "SOL-USDT", 150, SellAll, "") {
		t.Fatal("无持仓卖出应失败")
	}
	if len(tr.Snapshot().History) != 0 {
		t.Fatal("失败的卖出不应产生流水")
	}
}

func TestSellZeroQuantityPosition(t *testing.T) {
	tr := newTestTrader(t, 1000, false)
	tr.pf.Positions["XRP-USDT"] = 0
	if tr.ExecuteTrade("sell", "XRP-USDT", 2, SellAll, "") {
		t.Fatal("零数量持仓卖出应失败")
	}
}

func TestSellFullByAmountThreshold(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
	}{
		{"金额恰等于市值", 1000},
		{"金额超过市值", 5000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTrader(t, 2000, false)
			if !tr.ExecuteTrade("buy", "DOGE-USDT", 100, 1000, "") {
				t.Fatal("买入失败")
			}
			// 持仓 10 个，市值 1000
			if !tr.ExecuteTrade("sell", "DOGE-USDT", 100, tt.amount, "") {
				t.Fatal("卖出失败")
			}
			pf := tr.Snapshot()
			if _, ok := pf.Positions["DOGE-USDT"]; ok {
				t.Fatal("达到市值门槛应整体清仓")
			}
			if !approxEqual(pf.Balance, 2000) {
				t.Fatalf("余额 = %v, want 2000", pf.Balance)
			}
		})
	}
}

func TestPartialSellKeepsRemainder(t *testing.T) {
	tr := newTestTrader(t, 2000, false)
	tr.ExecuteTrade("buy", "OP-USDT", 2, 1000, "")
	// 持仓 500 个
	if !tr.ExecuteTrade("sell", "OP-USDT", 2, 400, "") {
		t.Fatal("减仓失败")
	}
	pf := tr.Snapshot()
	if !approxEqual(pf.Positions["OP-USDT"], 300) {
		t.Fatalf("剩余持仓 = %v, want 300", pf.Positions["OP-USDT"])
	}
	if !approxEqual(pf.Balance, 1400) {
		t.Fatalf("余额 = %v, want 1400", pf.Balance)
	}
}

func TestRejectBadInputs(t *testing.T) {
	tr := newTestTrader(t, 1000, false)
	tests := []struct {
		name   string
		action string
		price  float64
		amount float64
	}{
		{"零价格", "buy", 0, 100},
		{"负价格", "buy", -5, 100},
		{"未知动作", "hold", 100, 100},
		{"乱动作", "short", 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tr.ExecuteTrade(tt.action, "BTC-USDT", tt.price, tt.amount, "") {
				t.Fatal("应拒绝")
			}
		})
	}
	if len(tr.Snapshot().History) != 0 {
		t.Fatal("被拒绝的交易不应产生流水")
	}
}

func TestUpdateValuations(t *testing.T) {
	tr := newTestTrader(t, 10000, false)
	tr.ExecuteTrade("buy", "BTC-USDT", 50000, 1000, "")
	tr.ExecuteTrade("buy", "ETH-USDT", 2500, 500, "")

	total := tr.UpdateValuations(map[string]float64{
		"BTC-USDT": 60000,
		"ETH-USDT": -1, // 非正价格按 0 计
	})
	// 8500 + 0.02*60000 = 9700
	if !approxEqual(total, 9700) {
		t.Fatalf("总资产 = %v, want 9700", total)
	}
	pf := tr.Snapshot()
	if !approxEqual(pf.TotalValue, 9700) {
		t.Fatalf("TotalValue = %v, want 9700", pf.TotalValue)
	}
	if !approxEqual(pf.Positions["ETH-USDT"], 0.2) {
		t.Fatal("估值不应改动持仓数量")
	}

	// 幂等
	if again := tr.UpdateValuations(map[string]float64{"BTC-USDT": 60000}); !approxEqual(again, 9700) {
		t.Fatalf("重复估值 = %v, want 9700", again)
	}
}

func TestReloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tr := NewTrader(dir, 10000, false)
	tr.now = fixedClock
	tr.ExecuteTrade("buy", "BTC-USDT", 50000, 1000, "建仓")
	tr.UpdateValuations(map[string]float64{"BTC-USDT": 55000})

	re := NewTrader(dir, 10000, false)
	pf := re.Snapshot()
	if !approxEqual(pf.Balance, 9000) || !approxEqual(pf.Positions["BTC-USDT"], 0.02) {
		t.Fatalf("重载后状态异常: %+v", pf)
	}
	if len(pf.History) != 1 || pf.History[0].Reason != "建仓" {
		t.Fatalf("重载后流水异常: %+v", pf.History)
	}
}

func TestPersistedSchema(t *testing.T) {
	dir := t.TempDir()
	tr := NewTrader(dir, 10000, false)
	tr.now = fixedClock
	tr.ExecuteTrade("buy", "BTC-USDT", 50000, 1000, "建仓")

	data, err := os.ReadFile(filepath.Join(dir, "paper_trading.json"))
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"balance", "positions", "total_value", "history", "last_updated"} {
		if _, ok := doc[key]; !ok {
			t.Fatalf("缺少字段 %s", key)
		}
	}
	if !strings.Contains(string(data), `"amount_usdt"`) {
		t.Fatal("流水应使用 amount_usdt 字段名")
	}
}

func TestCorruptFileFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "paper_trading.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	tr := NewTrader(dir, 8888, false)
	pf := tr.Snapshot()
	if !approxEqual(pf.Balance, 8888) || !approxEqual(pf.TotalValue, 8888) || len(pf.Positions) != 0 {
		t.Fatalf("损坏文件应回退到初始组合: %+v", pf)
	}
}

// 以普通文件冒充数据目录，迫使落盘失败
func brokenDataDir(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notadir")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return filepath.Join(path, "sub")
}

func TestSaveFailureBestEffort(t *testing.T) {
	tr := NewTrader(brokenDataDir(t), 1000, false)
	tr.now = fixedClock
	if !tr.ExecuteTrade("buy", "BTC-USDT", 100, 100, "") {
		t.Fatal("尽力而为模式下落盘失败仍应返回成功")
	}
	pf := tr.Snapshot()
	if !approxEqual(pf.Balance, 900) || len(pf.History) != 1 {
		t.Fatalf("尽力而为模式应保留内存状态: %+v", pf)
	}
}

func TestSaveFailureStrictRollsBack(t *testing.T) {
	tr := NewTrader(brokenDataDir(t), 1000, true)
	tr.now = fixedClock
	if tr.ExecuteTrade("buy", "BTC-USDT", 100, 100, "") {
		t.Fatal("strict 模式下落盘失败应返回失败")
	}
	pf := tr.Snapshot()
	if !approxEqual(pf.Balance, 1000) || len(pf.History) != 0 || len(pf.Positions) != 0 {
		t.Fatalf("strict 模式应回滚状态: %+v", pf)
	}
}

func TestReport(t *testing.T) {
	tr := newTestTrader(t, 10000, false)
	report := tr.Report()
	if !strings.Contains(report, "当前空仓") {
		t.Fatalf("空仓报告异常: %s", report)
	}

	tr.ExecuteTrade("buy", "BTC-USDT", 50000, 1000, "")
	tr.UpdateValuations(map[string]float64{"BTC-USDT": 60000})
	report = tr.Report()
	if !strings.Contains(report, "BTC-USDT: 0.02") {
		t.Fatalf("持仓明细缺失: %s", report)
	}
	if !strings.Contains(report, "+2.00%") {
		t.Fatalf("收益率异常: %s", report)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	tr := newTestTrader(t, 1000, false)
	tr.ExecuteTrade("buy", "BTC-USDT", 100, 100, "")
	pf := tr.Snapshot()
	pf.Positions["BTC-USDT"] = 999
	pf.History[0].Reason = "篡改"
	fresh := tr.Snapshot()
	if approxEqual(fresh.Positions["BTC-USDT"], 999) || fresh.History[0].Reason == "篡改" {
		t.Fatal("Snapshot 应返回深拷贝")
	}
}
