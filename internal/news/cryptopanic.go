package news

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"okra/internal/logger"
)

// 中文说明：
// CryptoPanic 新闻客户端。优先拉取 important 级别新闻提高信噪比，
// 无结果时降级为 hot。未配置 API Key 时返回空列表（功能降级，不报错）。

const defaultBaseURL = "https://cryptopanic.com/api/v1/posts/"

// Item 预处理后的新闻条目
type Item struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Domain      string   `json:"domain"`
	Source      string   `json:"source"`
	Votes       Votes    `json:"votes"`
	PublishedAt string   `json:"published_at"`
	URL         string   `json:"url"`
	Currencies  []string `json:"currencies"`
}

// Votes 社区投票数据，辅助 AI 判断新闻价值
type Votes struct {
	Positive  int `json:"positive"`
	Negative  int `json:"negative"`
	Important int `json:"important"`
}

type Client struct {
	client *resty.Client
	apiKey string
}

func NewClient(apiKey string) *Client {
	if apiKey == "" {
		logger.Warnf("未配置 CryptoPanic API Key，新闻功能不可用")
	}
	c := resty.New().
		SetBaseURL(defaultBaseURL).
		SetTimeout(10 * time.Second)
	return &Client{client: c, apiKey: apiKey}
}

func (c *Client) Enabled() bool { return c.apiKey != "" }

type rawResponse struct {
	Results []struct {
		ID     int64  `json:"id"`
		Title  string `json:"title"`
		Domain string `json:"domain"`
		Source struct {
			Title string `json:"title"`
		} `json:"source"`
		Votes       Votes  `json:"votes"`
		PublishedAt string `json:"published_at"`
		URL         string `json:"url"`
		Currencies  []struct {
			Code string `json:"code"`
		} `json:"currencies"`
	} `json:"results"`
}

// Latest 获取最新加密货币新闻（最多 limit 条）。
// 网络或接口错误返回空列表并记日志，不向上传播。
func (c *Client) Latest(ctx context.Context, currencies []string, limit int) []Item {
	if !c.Enabled() {
		return nil
	}
	params := map[string]string{
		"auth_token": c.apiKey,
		"filter":     "important", // 只看重要新闻
		"public":     "true",
		"kind":       "news", // 过滤掉纯媒体内容
	}
	if len(currencies) > 0 {
		params["currencies"] = strings.Join(currencies, ",")
	}

	logger.Infof("拉取 CryptoPanic 新闻 (filter=%s)...", params["filter"])
	results, err := c.fetch(ctx, params)
	if err != nil {
		logger.Errorf("拉取新闻失败: %v", err)
		return nil
	}
	// important 没数据时降级为 hot
	if len(results.Results) == 0 {
		logger.Infof("无 important 新闻，降级为 hot...")
		params["filter"] = "hot"
		results, err = c.fetch(ctx, params)
		if err != nil {
			logger.Errorf("拉取新闻失败: %v", err)
			return nil
		}
	}

	items := make([]Item, 0, limit)
	for _, r := range results.Results {
		if len(items) >= limit {
			break
		}
		item := Item{
			ID:          r.ID,
			Title:       r.Title,
			Domain:      r.Domain,
			Source:      r.Source.Title,
			Votes:       r.Votes,
			PublishedAt: r.PublishedAt,
			URL:         r.URL,
		}
		for _, cur := range r.Currencies {
			if cur.Code != "" {
				item.Currencies = append(item.Currencies, cur.Code)
			}
		}
		items = append(items, item)
	}
	return items
}

func (c *Client) fetch(ctx context.Context, params map[string]string) (*rawResponse, error) {
	var out rawResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		Get("")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("cryptopanic http %d: %s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}

// Render 将新闻列表格式化为提示词片段；空列表返回空串。
func Render(items []Item) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, it := range items {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s", i+1, it.Source, it.Title))
		if len(it.Currencies) > 0 {
			sb.WriteString(" (相关: " + strings.Join(it.Currencies, ", ") + ")")
		}
		if it.Votes.Important > 0 || it.Votes.Positive > 0 || it.Votes.Negative > 0 {
			sb.WriteString(fmt.Sprintf(" [票数 利多=%d 利空=%d 重要=%d]", it.Votes.Positive, it.Votes.Negative, it.Votes.Important))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
