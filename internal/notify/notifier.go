package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"okra/internal/logger"
	"okra/internal/pkg/text"
)

// 中文说明：
// Webhook 通知器：飞书交互卡片 + 钉钉 Markdown，按配置逐个推送。
// 推送失败只记日志，不影响分析流程。消息过长时截断，避免触发
// 各平台的长度限制。

// 单条消息内容上限（字符）
const maxContentLen = 3500

type Notifier struct {
	feishuWebhook   string
	dingtalkWebhook string
	client          *resty.Client
}

func NewNotifier(feishuWebhook, dingtalkWebhook string) *Notifier {
	return &Notifier{
		feishuWebhook:   feishuWebhook,
		dingtalkWebhook: dingtalkWebhook,
		client:          resty.New().SetTimeout(10 * time.Second),
	}
}

func (n *Notifier) Enabled() bool {
	return n != nil && (n.feishuWebhook != "" || n.dingtalkWebhook != "")
}

// Send 推送到所有已配置的渠道。
func (n *Notifier) Send(ctx context.Context, title, content string) {
	if n.feishuWebhook != "" {
		if err := n.sendFeishu(ctx, title, content); err != nil {
			logger.Errorf("飞书推送失败: %v", err)
		} else {
			logger.Infof("飞书推送成功")
		}
	}
	if n.dingtalkWebhook != "" {
		if err := n.sendDingTalk(ctx, title, content); err != nil {
			logger.Errorf("钉钉推送失败: %v", err)
		} else {
			logger.Infof("钉钉推送成功")
		}
	}
}

func (n *Notifier) post(ctx context.Context, url string, payload any) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(url)
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("http %d: %s", resp.StatusCode(), text.Truncate(resp.String(), 200))
	}
	return nil
}

func (n *Notifier) sendFeishu(ctx context.Context, title, content string) error {
	optimized := text.Truncate(OptimizeCard(content), maxContentLen)
	payload := map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"header": map[string]any{
				"title":    map[string]string{"tag": "plain_text", "content": title},
				"template": "blue",
			},
			"elements": []any{
				map[string]any{
					"tag":  "div",
					"text": map[string]string{"tag": "lark_md", "content": optimized},
				},
				map[string]any{"tag": "hr"},
				map[string]any{
					"tag": "note",
					"elements": []any{
						map[string]string{"tag": "plain_text", "content": "Generated by OKX Research Analyst AI 🤖"},
					},
				},
			},
		},
	}
	return n.post(ctx, n.feishuWebhook, payload)
}

func (n *Notifier) sendDingTalk(ctx context.Context, title, content string) error {
	ding := text.Truncate(ForDingTalk(content), maxContentLen)
	payload := map[string]any{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  "# " + title + "\n\n" + ding,
		},
	}
	return n.post(ctx, n.dingtalkWebhook, payload)
}
