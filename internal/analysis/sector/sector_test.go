package sector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeLocalData(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coins_data.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLookupLocalData(t *testing.T) {
	path := writeLocalData(t, `{"sectors": {"Layer1": ["BTC", "ETH"], "Meme": ["DOGE"]}}`)
	r := NewResolver(path)

	tests := []struct{ in, want string }{
		{"BTC-USDT", "Layer1"},
		{"DOGE-USDT", "Meme"},
		{"ETH", "Layer1"},
		{"XYZ-USDT", "Unknown"},
	}
	for _, tt := range tests {
		if got := r.Lookup(tt.in); got != tt.want {
			t.Errorf("Lookup(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolverMissingFile(t *testing.T) {
	r := NewResolver(filepath.Join(t.TempDir(), "nope.json"))
	if got := r.Lookup("BTC-USDT"); got != "Unknown" {
		t.Fatalf("无本地数据时 = %q, want Unknown", got)
	}
}

func TestResolverCorruptFile(t *testing.T) {
	r := NewResolver(writeLocalData(t, "{broken"))
	if got := r.Lookup("BTC-USDT"); got != "Unknown" {
		t.Fatalf("损坏数据时 = %q, want Unknown", got)
	}
}

type fakeClassifier struct {
	calls   [][]string
	answers map[string]string
	fail    bool
}

func (f *fakeClassifier) ClassifySectors(_ context.Context, coins []string) (map[string]string, error) {
	f.calls = append(f.calls, append([]string(nil), coins...))
	if f.fail {
		return nil, context.DeadlineExceeded
	}
	out := map[string]string{}
	for _, c := range coins {
		if sec, ok := f.answers[c]; ok {
			out[c] = sec
		}
	}
	return out, nil
}

func TestUpdateWithAI(t *testing.T) {
	r := NewResolver(writeLocalData(t, `{"sectors": {"Layer1": ["BTC"]}}`))
	cls := &fakeClassifier{answers: map[string]string{"WIF": "Meme", "FET": "AI"}}

	// BTC 已知不重查；WIF 重复出现只问一次
	r.UpdateWithAI(context.Background(), cls, []string{"BTC-USDT", "WIF-USDT", "WIF-USDT", "FET-USDT"})

	if len(cls.calls) != 1 {
		t.Fatalf("调用次数 = %d, want 1", len(cls.calls))
	}
	if got := cls.calls[0]; len(got) != 2 || got[0] != "WIF" || got[1] != "FET" {
		t.Fatalf("请求币种 = %v", got)
	}
	if r.Lookup("WIF-USDT") != "Meme" || r.Lookup("FET-USDT") != "AI" {
		t.Fatal("识别结果未写入缓存")
	}

	// 缓存命中后不再触发调用
	r.UpdateWithAI(context.Background(), cls, []string{"WIF-USDT"})
	if len(cls.calls) != 1 {
		t.Fatal("已缓存币种不应重复请求")
	}
}

func TestUpdateWithAIChunking(t *testing.T) {
	r := NewResolver(filepath.Join(t.TempDir(), "nope.json"))
	cls := &fakeClassifier{answers: map[string]string{}}

	ids := make([]string, 0, 42)
	for i := 0; i < 42; i++ {
		ids = append(ids, string(rune('A'+i%26))+string(rune('A'+i/26))+"-USDT")
	}
	r.UpdateWithAI(context.Background(), cls, ids)

	if len(cls.calls) != 3 {
		t.Fatalf("分片调用次数 = %d, want 3", len(cls.calls))
	}
	if len(cls.calls[0]) != 20 || len(cls.calls[2]) != 2 {
		t.Fatalf("分片大小异常: %d/%d/%d", len(cls.calls[0]), len(cls.calls[1]), len(cls.calls[2]))
	}
}

func TestUpdateWithAIFailureKeepsState(t *testing.T) {
	r := NewResolver(filepath.Join(t.TempDir(), "nope.json"))
	r.UpdateWithAI(context.Background(), &fakeClassifier{fail: true}, []string{"WIF-USDT"})
	if got := r.Lookup("WIF-USDT"); got != "Unknown" {
		t.Fatalf("失败时不应写缓存, got %q", got)
	}
}
