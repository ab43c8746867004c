package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func chatResponse(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(body)
}

func newTestClient(url string) *ChatClient {
	c := NewChatClient(url, "sk-test", "test-model", 5*time.Second, 2)
	return c
}

func TestChatCompletionsURL(t *testing.T) {
	tests := []struct{ base, want string }{
		{"https://api.deepseek.com", "https://api.deepseek.com/chat/completions"},
		{"https://api.deepseek.com/", "https://api.deepseek.com/chat/completions"},
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://x.test/v1/chat/completions", "https://x.test/v1/chat/completions"},
		{"", "https://api.openai.com/v1/chat/completions"},
	}
	for _, tt := range tests {
		c := &ChatClient{BaseURL: tt.base}
		if got := c.chatCompletionsURL(); got != tt.want {
			t.Errorf("chatCompletionsURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestChatSuccess(t *testing.T) {
	var gotAuth string
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, chatResponse("你好，市场分析如下"))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Chat(context.Background(), "system", "user")
	if err != nil {
		t.Fatal(err)
	}
	if out != "你好，市场分析如下" {
		t.Fatalf("Chat = %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotReq["model"] != "test-model" || gotReq["stream"] != false {
		t.Fatalf("请求体异常: %v", gotReq)
	}
}

func TestChatRetriesOn429(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, chatResponse("ok"))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Chat(context.Background(), "s", "u")
	if err != nil {
		t.Fatal(err)
	}
	if out != "ok" || attempts != 2 {
		t.Fatalf("out=%q attempts=%d", out, attempts)
	}
}

func TestChatNoRetryOn400(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Chat(context.Background(), "s", "u"); err == nil {
		t.Fatal("400 应返回错误")
	}
	if attempts != 1 {
		t.Fatalf("400 不应重试, attempts=%d", attempts)
	}
}

func TestChatDisabled(t *testing.T) {
	c := NewChatClient("https://example.com", "", "m", time.Second, 1)
	if c.Enabled() {
		t.Fatal("无 API Key 时应视为未启用")
	}
	if _, err := c.Chat(context.Background(), "s", "u"); err == nil {
		t.Fatal("未启用时 Chat 应报错")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("3", 0); got != 3*time.Second {
		t.Fatalf("parseRetryAfter header = %v", got)
	}
	if got := parseRetryAfter("", 2); got != 4*time.Second {
		t.Fatalf("parseRetryAfter backoff = %v", got)
	}
	if got := parseRetryAfter("junk", 0); got != time.Second {
		t.Fatalf("parseRetryAfter junk = %v", got)
	}
}
