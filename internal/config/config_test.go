package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalTOML = `
[app]
env = "test"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalTOML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Exchange.Name != "okx" {
		t.Errorf("exchange.name = %q, want okx", cfg.Exchange.Name)
	}
	if cfg.Market.TopN != 30 || cfg.Market.CandleBar != "4H" || cfg.Market.CandleSymbol != "BTC-USDT" {
		t.Errorf("market 默认值异常: %+v", cfg.Market)
	}
	if cfg.AI.TimeoutSeconds != 60 || cfg.AI.MaxRetries != 2 {
		t.Errorf("ai 默认值异常: %+v", cfg.AI)
	}
	if cfg.Paper.InitialBalance != 10000 || cfg.Paper.Durability != "best_effort" || cfg.Paper.MaxTradesPerCycle != 3 {
		t.Errorf("paper 默认值异常: %+v", cfg.Paper)
	}
	if cfg.Schedule.DailyAt != "08:00" {
		t.Errorf("schedule.daily_at = %q", cfg.Schedule.DailyAt)
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[exchange]
name = "binance"

[market]
top_n = 50

[paper]
enabled = true
durability = "strict"
initial_balance = 5000.0

[schedule]
enabled = true
interval_minutes = 30
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Exchange.Name != "binance" || cfg.Market.TopN != 50 {
		t.Errorf("显式配置被覆盖: %+v", cfg)
	}
	if !cfg.Paper.Enabled || cfg.Paper.Durability != "strict" || cfg.Paper.InitialBalance != 5000 {
		t.Errorf("paper 配置异常: %+v", cfg.Paper)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"非法行情源", "[exchange]\nname = \"kraken\"\n"},
		{"top_n 超限", "[market]\ntop_n = 500\n"},
		{"非法持久化模式", "[paper]\ndurability = \"fsync\"\n"},
		{"非法每日时刻", "[schedule]\nenabled = true\ndaily_at = \"25:99\"\n"},
		{"TOML 语法错误", "[app\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.toml)); err == nil {
				t.Fatal("应返回错误")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("文件缺失应返回错误")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("FEISHU_WEBHOOK_URL", "https://example.com/hook")
	t.Setenv("OKX_BASE_URL", "https://aws.okx.com")

	cfg, err := Load(writeConfig(t, minimalTOML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AI.APIKey != "sk-test" {
		t.Errorf("ai.api_key = %q", cfg.AI.APIKey)
	}
	if cfg.Notify.FeishuWebhook != "https://example.com/hook" {
		t.Errorf("notify.feishu_webhook = %q", cfg.Notify.FeishuWebhook)
	}
	if cfg.Exchange.BaseURL != "https://aws.okx.com" {
		t.Errorf("exchange.base_url = %q", cfg.Exchange.BaseURL)
	}
}

func TestIsValidClock(t *testing.T) {
	valid := []string{"00:00", "08:30", "23:59"}
	invalid := []string{"24:00", "12:60", "8:30", "ab:cd", ""}
	for _, s := range valid {
		if !isValidClock(s) {
			t.Errorf("isValidClock(%q) = false", s)
		}
	}
	for _, s := range invalid {
		if isValidClock(s) {
			t.Errorf("isValidClock(%q) = true", s)
		}
	}
}
