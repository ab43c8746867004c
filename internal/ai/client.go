package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"okra/internal/logger"
)

// 中文说明：
// OpenAI 兼容 Chat 接口客户端。BaseURL 允许只填根域名或 /v1，
// 内部统一补全为 /chat/completions；429/5xx 自动重试并尊重 Retry-After。

type ChatClient struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int

	httpc *http.Client
}

func NewChatClient(baseURL, apiKey, model string, timeout time.Duration, maxRetries int) *ChatClient {
	c := &ChatClient{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		Timeout:    timeout,
		MaxRetries: maxRetries,
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	c.httpc = &http.Client{Timeout: c.Timeout}
	if c.APIKey == "" {
		logger.Warnf("未配置 LLM API Key，AI 分析不可用")
	} else {
		logger.Debugf("LLM 客户端就绪，模型: %s", c.Model)
	}
	return c
}

func (c *ChatClient) Enabled() bool { return c != nil && c.APIKey != "" }

// chatCompletionsURL 规范化 BaseURL：
// 根域名/含 /v1 的地址都补全到 /chat/completions；已是完整路径则不改动。
func (c *ChatClient) chatCompletionsURL() string {
	url := strings.TrimRight(c.BaseURL, "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

// Chat 发送一轮 system+user 消息，返回模型文本输出。
func (c *ChatClient) Chat(ctx context.Context, system, user string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("LLM API Key 未配置")
	}
	body, _ := json.Marshal(map[string]any{
		"model": c.Model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"temperature": 0.7,
		"stream":      false,
	})
	url := c.chatCompletionsURL()

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.APIKey)

		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = err
			break
		}
		if resp.StatusCode/100 == 2 {
			return decodeChatContent(resp)
		}
		msg := readErrorBody(resp)
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
		if shouldRetry(resp.StatusCode) && attempt < c.MaxRetries {
			wait := parseRetryAfter(resp.Header.Get("Retry-After"), attempt)
			logger.Debugf("[AI] %v，%v 后重试", lastErr, wait)
			time.Sleep(wait)
			continue
		}
		break
	}
	return "", lastErr
}

func decodeChatContent(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("LLM 响应缺少 choices")
	}
	return r.Choices[0].Message.Content, nil
}

func readErrorBody(resp *http.Response) string {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if err != nil {
		return resp.Status
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return resp.Status
	}
	return s
}

func shouldRetry(status int) bool {
	return status == http.StatusTooManyRequests || status/100 == 5
}

// parseRetryAfter 解析 Retry-After 秒数；缺失时按尝试次数指数退避。
func parseRetryAfter(header string, attempt int) time.Duration {
	if header != "" {
		if sec, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && sec > 0 {
			return time.Duration(sec) * time.Second
		}
	}
	return time.Duration(1<<attempt) * time.Second
}
