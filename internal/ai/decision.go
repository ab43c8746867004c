package ai

import (
	"fmt"
	"strings"
)

// 中文说明：
// 模拟盘交易决策的结构化输出与校验。模型被要求返回纯 JSON 数组，
// 但实际输出常带思维链或 Markdown 标记，这里统一做数组提取与清洗。

// 合法动作
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

// TradeDecision 模型给出的单笔交易建议。
// AmountUSDT 为买入花费/卖出市值（报价币），卖出时 -1 表示清仓。
type TradeDecision struct {
	Action     string  `json:"action"`
	Symbol     string  `json:"symbol"`
	AmountUSDT float64 `json:"amount_usdt"`
	Reason     string  `json:"reason"`
}

// Validate 基础合规校验，不涉及价格与余额（那是账本的职责）。
func Validate(d *TradeDecision) error {
	action := strings.ToLower(strings.TrimSpace(d.Action))
	switch action {
	case ActionBuy:
		if d.AmountUSDT <= 0 {
			return fmt.Errorf("买入金额必须为正: %v", d.AmountUSDT)
		}
	case ActionSell:
		if d.AmountUSDT != -1 && d.AmountUSDT <= 0 {
			return fmt.Errorf("卖出金额必须为正或 -1（清仓）: %v", d.AmountUSDT)
		}
	case ActionHold:
	default:
		return fmt.Errorf("未知动作: %s", d.Action)
	}
	d.Action = action
	d.Symbol = strings.ToUpper(strings.TrimSpace(d.Symbol))
	if action != ActionHold && d.Symbol == "" {
		return fmt.Errorf("缺少交易对")
	}
	return nil
}

// ExtractJSONArray 在字符串中查找首个完整 JSON 数组（按括号配对，不做严格语法检查）。
func ExtractJSONArray(s string) (string, bool) {
	start := strings.Index(s, "[")
	if start == -1 {
		return "", false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1]), true
			}
		}
	}
	return "", false
}

// StripFences 去掉模型输出中可能包裹的 ```json / ``` 标记。
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
