package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// 配置结构体（与规划一致，保留必要字段，便于后续扩展）
type Config struct {
	App struct {
		Env      string `toml:"env"`
		LogLevel string `toml:"log_level"`
		LogPath  string `toml:"log_path"`
		HTTPAddr string `toml:"http_addr"` // 为空时不启动 HTTP 接口
	} `toml:"app"`

	Exchange struct {
		Name    string `toml:"name"`     // okx | binance
		BaseURL string `toml:"base_url"` // 留空使用官方地址；OKX 备用地址如 https://aws.okx.com
	} `toml:"exchange"`

	Market struct {
		InstType       string   `toml:"inst_type"`       // SPOT
		TopN           int      `toml:"top_n"`           // 参与分析的成交额 Top N
		CandleBar      string   `toml:"candle_bar"`      // 技术面快照使用的 K 线周期
		CandleLimit    int      `toml:"candle_limit"`    // 技术面快照拉取根数
		CandleSymbol   string   `toml:"candle_symbol"`   // 技术面快照币种
		FundingSymbols []string `toml:"funding_symbols"` // 作为大盘情绪参考的资金费率币种（现货 instId）
	} `toml:"market"`

	News struct {
		APIKey     string   `toml:"api_key"`
		Currencies []string `toml:"currencies"`
		Limit      int      `toml:"limit"`
	} `toml:"news"`

	AI struct {
		APIURL         string `toml:"api_url"` // OpenAI 兼容 BaseURL，如 https://api.deepseek.com
		APIKey         string `toml:"api_key"`
		Model          string `toml:"model"`
		TimeoutSeconds int    `toml:"timeout_seconds"`
		MaxRetries     int    `toml:"max_retries"`
	} `toml:"ai"`

	Paper struct {
		Enabled           bool    `toml:"enabled"`
		DataDir           string  `toml:"data_dir"`
		InitialBalance    float64 `toml:"initial_balance"`
		Durability        string  `toml:"durability"` // best_effort | strict
		MaxTradesPerCycle int     `toml:"max_trades_per_cycle"`
	} `toml:"paper"`

	Sector struct {
		DataPath string `toml:"data_path"` // 本地币种赛道兜底数据
	} `toml:"sector"`

	Notify struct {
		FeishuWebhook   string `toml:"feishu_webhook"`
		DingTalkWebhook string `toml:"dingtalk_webhook"`
	} `toml:"notify"`

	Schedule struct {
		Enabled         bool   `toml:"enabled"`
		IntervalMinutes int    `toml:"interval_minutes"` // >0 时按间隔执行
		DailyAt         string `toml:"daily_at"`         // 间隔未启用时按每日定时执行，格式 HH:MM
	} `toml:"schedule"`

	Archive struct {
		Path string `toml:"path"` // SQLite 归档文件；为空时不落库
	} `toml:"archive"`
}

// Load 读取并解析 TOML 配置文件，并设置缺省值与基本校验。
// 敏感项（API Key、Webhook）允许通过环境变量覆盖，.env 文件会先被加载。
func Load(path string) (*Config, error) {
	// .env 不存在不算错误
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析 TOML 失败: %w", err)
	}
	applyEnv(&cfg)
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv 环境变量覆盖敏感配置（与旧部署习惯兼容）
func applyEnv(c *Config) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.Exchange.BaseURL, "OKX_BASE_URL")
	set(&c.AI.APIKey, "LLM_API_KEY", "DEEPSEEK_API_KEY")
	set(&c.AI.APIURL, "LLM_BASE_URL", "DEEPSEEK_BASE_URL")
	set(&c.AI.Model, "LLM_MODEL")
	set(&c.News.APIKey, "CRYPTOPANIC_API_KEY")
	set(&c.Notify.FeishuWebhook, "FEISHU_WEBHOOK_URL")
	set(&c.Notify.DingTalkWebhook, "DINGTALK_WEBHOOK_URL")
}

// ApplyDefaults 默认值设置
func ApplyDefaults(c *Config) {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Exchange.Name == "" {
		c.Exchange.Name = "okx"
	}
	if c.Market.InstType == "" {
		c.Market.InstType = "SPOT"
	}
	if c.Market.TopN <= 0 {
		c.Market.TopN = 30
	}
	if c.Market.CandleBar == "" {
		c.Market.CandleBar = "4H"
	}
	if c.Market.CandleLimit <= 0 {
		c.Market.CandleLimit = 100
	}
	if c.Market.CandleSymbol == "" {
		c.Market.CandleSymbol = "BTC-USDT"
	}
	if len(c.Market.FundingSymbols) == 0 {
		c.Market.FundingSymbols = []string{"BTC-USDT", "ETH-USDT", "SOL-USDT", "DOGE-USDT"}
	}
	if len(c.News.Currencies) == 0 {
		c.News.Currencies = []string{"BTC", "ETH", "SOL"}
	}
	if c.News.Limit <= 0 {
		c.News.Limit = 5
	}
	if c.AI.APIURL == "" {
		c.AI.APIURL = "https://api.deepseek.com"
	}
	if c.AI.Model == "" {
		c.AI.Model = "deepseek-chat"
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = 60
	}
	if c.AI.MaxRetries <= 0 {
		c.AI.MaxRetries = 2
	}
	if c.Paper.DataDir == "" {
		c.Paper.DataDir = "data"
	}
	if c.Paper.InitialBalance <= 0 {
		c.Paper.InitialBalance = 10000
	}
	if c.Paper.Durability == "" {
		c.Paper.Durability = "best_effort"
	}
	if c.Paper.MaxTradesPerCycle <= 0 {
		c.Paper.MaxTradesPerCycle = 3
	}
	if c.Sector.DataPath == "" {
		c.Sector.DataPath = "configs/coins_data.json"
	}
	if c.Schedule.DailyAt == "" {
		c.Schedule.DailyAt = "08:00"
	}
}

// Validate 基础校验
func Validate(c *Config) error {
	switch c.Exchange.Name {
	case "okx", "binance":
	default:
		return fmt.Errorf("不支持的行情源: %s（可选 okx/binance）", c.Exchange.Name)
	}
	if c.Market.TopN > 100 {
		return fmt.Errorf("market.top_n 需在 [1,100]")
	}
	switch c.Paper.Durability {
	case "best_effort", "strict":
	default:
		return fmt.Errorf("非法 paper.durability: %s（可选 best_effort/strict）", c.Paper.Durability)
	}
	if c.Schedule.Enabled && c.Schedule.IntervalMinutes <= 0 {
		if !isValidClock(c.Schedule.DailyAt) {
			return fmt.Errorf("非法 schedule.daily_at: %s（格式 HH:MM）", c.Schedule.DailyAt)
		}
	}
	return nil
}

// isValidClock 简易校验：HH:MM，24 小时制
func isValidClock(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	return h < 24 && m < 60
}
