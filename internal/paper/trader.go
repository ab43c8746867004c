package paper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"okra/internal/logger"
	"okra/internal/pkg/format"
)

// 中文说明：
// 模拟盘账本。单文件 JSON 持久化，内存中只保留一份组合数据，
// 每次变更后整体落盘。默认为尽力而为持久化（落盘失败只记日志，
// 内存状态照常生效）；strict 模式下落盘失败会回滚本次交易。
// 假定单进程单调用方，不做并发与跨进程保护。

const (
	fileName   = "paper_trading.json"
	timeLayout = "2006-01-02 15:04:05"

	// SellAll 作为卖出金额的哨兵值，表示清仓
	SellAll = -1
)

// TradeRecord 单笔成交流水，追加后不可变。
type TradeRecord struct {
	Time       string  `json:"time"`
	Action     string  `json:"action"`
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	AmountUSDT float64 `json:"amount_usdt"`
	Reason     string  `json:"reason"`
}

// Portfolio 持久化文档，结构即存储格式。
type Portfolio struct {
	Balance     float64            `json:"balance"`
	Positions   map[string]float64 `json:"positions"`
	TotalValue  float64            `json:"total_value"`
	History     []TradeRecord      `json:"history"`
	LastUpdated *string            `json:"last_updated"`
}

func (p *Portfolio) clone() *Portfolio {
	cp := &Portfolio{
		Balance:    p.Balance,
		TotalValue: p.TotalValue,
		Positions:  make(map[string]float64, len(p.Positions)),
		History:    make([]TradeRecord, len(p.History)),
	}
	for k, v := range p.Positions {
		cp.Positions[k] = v
	}
	copy(cp.History, p.History)
	if p.LastUpdated != nil {
		s := *p.LastUpdated
		cp.LastUpdated = &s
	}
	return cp
}

// Trader 模拟盘交易器。
type Trader struct {
	file    string
	initial float64
	strict  bool
	pf      *Portfolio
	now     func() time.Time
}

// NewTrader 加载（或初始化）模拟盘。dataDir 下的 paper_trading.json 为唯一事实来源；
// 文件缺失或损坏时以 initialBalance 初始化全新组合。
func NewTrader(dataDir string, initialBalance float64, strict bool) *Trader {
	t := &Trader{
		file:    filepath.Join(dataDir, fileName),
		initial: initialBalance,
		strict:  strict,
		now:     time.Now,
	}
	t.pf = t.load()
	return t
}

func (t *Trader) load() *Portfolio {
	data, err := os.ReadFile(t.file)
	if err == nil {
		var pf Portfolio
		if jerr := json.Unmarshal(data, &pf); jerr == nil {
			if pf.Positions == nil {
				pf.Positions = map[string]float64{}
			}
			if pf.History == nil {
				pf.History = []TradeRecord{}
			}
			return &pf
		} else {
			logger.Errorf("模拟盘数据损坏，使用初始组合: %v", jerr)
		}
	} else if !os.IsNotExist(err) {
		logger.Errorf("读取模拟盘数据失败，使用初始组合: %v", err)
	}
	return &Portfolio{
		Balance:    t.initial,
		Positions:  map[string]float64{},
		TotalValue: t.initial,
		History:    []TradeRecord{},
	}
}

func (t *Trader) save() error {
	if err := os.MkdirAll(filepath.Dir(t.file), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t.pf, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.file, data, 0o644)
}

// ExecuteTrade 执行一笔模拟买卖。
//   - action: buy / sell
//   - price: 当前价格（必须为正）
//   - amountUSDT: 买入时为花费金额；卖出时为卖出市值，SellAll(-1) 表示清仓
//
// 余额不足、无持仓、未知动作均视为业务性拒绝：返回 false 且状态不变。
func (t *Trader) ExecuteTrade(action, symbol string, price, amountUSDT float64, reason string) bool {
	if price <= 0 {
		logger.Warnf("非法价格 %v，拒绝交易 %s %s", price, action, symbol)
		return false
	}

	var snap *Portfolio
	if t.strict {
		snap = t.pf.clone()
	}

	switch action {
	case "buy":
		cost := amountUSDT
		if t.pf.Balance < cost {
			logger.Warnf("余额不足，无法买入 %s。需要: %v，持有: %v", symbol, cost, t.pf.Balance)
			return false
		}
		t.pf.Balance -= cost
		qty := cost / price
		t.pf.Positions[symbol] += qty
		logger.Infof("模拟买入 %s: %.2f USDT @ %v (数量: %.6f)。理由: %s", symbol, cost, price, qty, reason)

	case "sell":
		qty, ok := t.pf.Positions[symbol]
		if !ok || qty <= 0 {
			logger.Warnf("无持仓可卖: %s", symbol)
			return false
		}
		var revenue float64
		if amountUSDT == SellAll || amountUSDT >= qty*price {
			// 清仓：持仓条目整体删除，不保留零值
			revenue = qty * price
			delete(t.pf.Positions, symbol)
			logger.Infof("模拟清仓 %s: %.2f USDT @ %v。理由: %s", symbol, revenue, price, reason)
		} else {
			// 减仓：残留仓位无论多小都保留，不做粉尘清理
			sellQty := amountUSDT / price
			revenue = amountUSDT
			t.pf.Positions[symbol] -= sellQty
			logger.Infof("模拟卖出 %s: %.2f USDT @ %v。理由: %s", symbol, revenue, price, reason)
		}
		t.pf.Balance += revenue

	default:
		logger.Warnf("未知交易动作: %s", action)
		return false
	}

	ts := t.now().Format(timeLayout)
	t.pf.History = append(t.pf.History, TradeRecord{
		Time:       ts,
		Action:     action,
		Symbol:     symbol,
		Price:      price,
		AmountUSDT: amountUSDT,
		Reason:     reason,
	})
	t.pf.LastUpdated = &ts

	if err := t.save(); err != nil {
		if t.strict {
			t.pf = snap
			logger.Errorf("保存模拟盘数据失败，已回滚本次交易: %v", err)
			return false
		}
		// 尽力而为：内存状态保留，下次落盘成功即追平
		logger.Errorf("保存模拟盘数据失败: %v", err)
	}
	return true
}

// UpdateValuations 按最新价格重估总市值并落盘。
// 价格缺失或非正的持仓按 0 计入，不会从持仓中移除。
func (t *Trader) UpdateValuations(prices map[string]float64) float64 {
	positionValue := 0.0
	for symbol, qty := range t.pf.Positions {
		if price := prices[symbol]; price > 0 {
			positionValue += qty * price
		}
	}
	t.pf.TotalValue = t.pf.Balance + positionValue
	ts := t.now().Format(timeLayout)
	t.pf.LastUpdated = &ts
	if err := t.save(); err != nil {
		logger.Errorf("保存模拟盘数据失败: %v", err)
	}
	return t.pf.TotalValue
}

// Report 生成持仓报告文本（纯读取，无副作用）。
func (t *Trader) Report() string {
	pnlPct := (t.pf.TotalValue - t.initial) / t.initial * 100

	var sb strings.Builder
	sb.WriteString("💰 **模拟盘周报**\n")
	sb.WriteString("总资产: " + format.USDT(t.pf.TotalValue) + " (收益率: " + format.SignedPercent(pnlPct) + ")\n")
	sb.WriteString("可用余额: " + format.USDT(t.pf.Balance) + "\n")

	if len(t.pf.Positions) > 0 {
		sb.WriteString("当前持仓:\n")
		symbols := make([]string, 0, len(t.pf.Positions))
		for sym := range t.pf.Positions {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		for _, sym := range symbols {
			sb.WriteString("- " + sym + ": " + format.Float(t.pf.Positions[sym], 6) + "\n")
		}
	} else {
		sb.WriteString("当前空仓\n")
	}
	return sb.String()
}

// Snapshot 返回当前组合的深拷贝，供只读展示（HTTP 接口等）使用。
func (t *Trader) Snapshot() Portfolio {
	return *t.pf.clone()
}

// File 返回持久化文件路径。
func (t *Trader) File() string { return t.file }
