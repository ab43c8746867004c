package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// 市场分析系统提示词：输出结构固定，便于通知端做表格转换
const analyzeSystemPrompt = `你是一个专业的加密货币市场分析师。你的分析风格需要兼备专业深度与通俗易懂性，即便是新手也能理解复杂的市场动态。你的任务是根据提供的市场数据，分析币种的区别，并给出投资建议。

请严格遵守以下输出格式要求，不要包含任何寒暄语（如"你好"、"作为分析师..."）：

1. **核心市场摘要**：用简练且通俗的语言总结当前市场整体情绪（100字以内）。
2. **重点币种分析表格**：必须使用 Markdown 表格形式，列头包含：币种、赛道、24h涨跌幅、分析与评价（简短且易懂）。选取3-5个最具代表性的币种。
3. **赛道机会与风险**：
   - 🟢 **机会**：列出1-2个潜力赛道或币种，并说明理由（逻辑清晰，通俗易懂）。
   - 🔴 **风险**：列出需回避的板块或币种。
4. **投资建议**：针对稳健型和激进型投资者的具体操作建议，建议需具体且易于执行。

保持客观、理性，数据驱动。语言风格需专业严谨但通俗易懂，避免过度堆砌术语，对关键概念可做简要解释。使用 Markdown 格式优化排版。`

const classifySystemPrompt = `你是一个加密货币领域的专家百科全书。你的任务是识别给定币种所属的主流赛道（Sector）。
只返回纯 JSON 格式数据，不要包含 Markdown 标记或其他文字。
格式要求：{"BTC": "Layer1", "UNI": "DeFi", ...}
赛道分类参考：Layer1, Layer2, DeFi, Meme, AI, GameFi, RWA, Storage, Oracle 等。如果不知道，标记为 "Unknown"。`

// 交易决策系统提示词：要求返回纯 JSON 数组，金额语义与模拟盘账本一致
const decideSystemPrompt = `你是一个加密货币模拟盘交易员。根据市场数据摘要与当前持仓报告，给出本轮交易指令。

规则：
1. 只返回 JSON 数组，不要包含其他文字或 Markdown 标记。每个元素格式：
   {"action": "buy"|"sell"|"hold", "symbol": "BTC-USDT", "amount_usdt": 1000, "reason": "简短理由"}
2. buy 的 amount_usdt 为花费的 USDT 金额；sell 的 amount_usdt 为卖出市值，-1 表示清仓。
3. 资金有限，单笔买入不超过可用余额的三成；没有把握时返回 [{"action": "hold", "symbol": "", "amount_usdt": 0, "reason": "观望"}]。
4. 最多给出 3 条指令，理由须基于提供的数据。`

// Analyst 封装面向业务的三类 LLM 调用。
type Analyst struct {
	Client *ChatClient
}

func NewAnalyst(client *ChatClient) *Analyst {
	return &Analyst{Client: client}
}

func (a *Analyst) Enabled() bool { return a != nil && a.Client.Enabled() }

// AnalyzeMarket 生成叙事性市场分析（Markdown）。
func (a *Analyst) AnalyzeMarket(ctx context.Context, marketSummary, newsText, userQuery string) (string, error) {
	var sb strings.Builder
	sb.WriteString("以下是当前市场的部分热门币种数据摘要（已按交易量排序）：\n")
	sb.WriteString(marketSummary)
	sb.WriteString("\n")
	if newsText != "" {
		sb.WriteString("\n近期重要新闻：\n")
		sb.WriteString(newsText)
	}
	if userQuery == "" {
		userQuery = "分析这些币种的区别，并推荐值得关注的币种。"
	}
	sb.WriteString("\n用户的需求是：" + userQuery + "\n\n请给出详细的分析报告。")

	return a.Client.Chat(ctx, analyzeSystemPrompt, sb.String())
}

// ClassifySectors 批量识别币种赛道，返回 {币种: 赛道}。
func (a *Analyst) ClassifySectors(ctx context.Context, coins []string) (map[string]string, error) {
	raw, err := a.Client.Chat(ctx, classifySystemPrompt, "请对以下币种进行分类："+strings.Join(coins, ", "))
	if err != nil {
		return nil, err
	}
	cleaned := StripFences(raw)
	var out map[string]string
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("解析赛道分类结果失败: %w", err)
	}
	return out, nil
}

// DecideTrades 请求交易指令并解析校验；返回合规决策与模型原始输出。
// 不合规的单条决策丢弃（记入返回的 rejected 数量由调用方日志体现），
// 解析整体失败才返回错误。
func (a *Analyst) DecideTrades(ctx context.Context, marketSummary, positionReport string) ([]TradeDecision, string, error) {
	user := "市场数据摘要：\n" + marketSummary + "\n\n当前持仓报告：\n" + positionReport
	raw, err := a.Client.Chat(ctx, decideSystemPrompt, user)
	if err != nil {
		return nil, raw, err
	}
	arr, ok := ExtractJSONArray(raw)
	if !ok {
		return nil, raw, fmt.Errorf("未找到 JSON 决策数组")
	}
	var ds []TradeDecision
	if err := json.Unmarshal([]byte(arr), &ds); err != nil {
		return nil, raw, fmt.Errorf("解析决策数组失败: %w", err)
	}
	return ds, raw, nil
}
