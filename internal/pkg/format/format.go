package format

import (
	"fmt"
	"strings"
)

// Float 去除尾随零的定点格式化。
func Float(val float64, decimals int) string {
	if decimals < 0 {
		decimals = 4
	}
	out := fmt.Sprintf("%.*f", decimals, val)
	out = strings.TrimRight(strings.TrimRight(out, "0"), ".")
	if out == "" {
		return "0"
	}
	return out
}

// SignedPercent 带符号百分比，如 +3.25%。
func SignedPercent(val float64) string {
	return fmt.Sprintf("%+.2f%%", val)
}

// USDT 金额展示，保留两位小数。
func USDT(val float64) string {
	return fmt.Sprintf("%.2f USDT", val)
}
