package notify

import (
	"regexp"
	"strings"
)

// 中文说明：
// Markdown 表格在手机端聊天卡片里基本必乱码，这里把分析报告中的表格
// 降级为列表形式：表头吞掉、数据行转为 "🔹 **币种**  |  赛道  |  涨跌幅"，
// 第四列（评价）换行缩进展示；标题行前补一条分割线增强视觉分隔。

const cardDivider = "--------------------------------------------------"

// 表格分隔行，如 |---|---| 或 |:---|:---|
var tableRuleRe = regexp.MustCompile(`^\|.*[-:]{3,}.*\|$`)

// OptimizeCard 将 Markdown 报告转换为适配飞书 lark_md 卡片的文本。
func OptimizeCard(content string) string {
	var out []string
	inTable := false

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if tableRuleRe.MatchString(line) {
			inTable = true
			continue
		}

		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") && len(line) > 1 {
			cells := splitCells(line)

			// 不在表格模式却遇到表格行：视为表头，开启表格模式并跳过
			//（列表视图不需要表头）
			if !inTable {
				inTable = true
				continue
			}

			if len(cells) >= 3 {
				item := "🔹 **" + cells[0] + "**"
				if len(cells) > 1 {
					item += "  |  " + cells[1]
				}
				if len(cells) > 2 {
					item += "  |  " + cells[2]
				}
				out = append(out, item)
				if len(cells) > 3 {
					if comment := strings.TrimSpace(cells[3]); comment != "" {
						out = append(out, "    └  "+comment)
					}
				}
				out = append(out, "")
			} else {
				// 兜底：列数不够，去掉首尾竖线原样显示
				out = append(out, "• "+strings.Trim(line, "|"))
			}
			continue
		}

		if inTable && line == "" {
			inTable = false
		}
		if strings.HasPrefix(line, "### ") || strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "**") {
			if len(out) > 0 && out[len(out)-1] != "" {
				out = append(out, cardDivider)
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// ForDingTalk 在卡片优化文本基础上做钉钉 Markdown 适配：
// 缩进引用符号换成标准 ">"，并追加底部签名。
func ForDingTalk(content string) string {
	ding := strings.ReplaceAll(OptimizeCard(content), "    └", ">")
	return ding + "\n\n---\n###### Generated by OKX Research Analyst AI 🤖"
}

func splitCells(line string) []string {
	parts := strings.Split(strings.Trim(line, "|"), "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}
