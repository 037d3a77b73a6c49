package bangumi

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

const subjectJSON = `{
	"id": 400602,
	"type": 2,
	"name": "葬送のフリーレン",
	"name_cn": "葬送的芙莉莲",
	"summary": "勇者一行が魔王を倒した後の物語。",
	"date": "2023-09-29",
	"platform": "TV",
	"images": {"large": "https://lain.bgm.tv/pic/cover/l/13/c5/400602_ZI8Y9.jpg"},
	"infobox": [
		{"key": "中文名", "value": "葬送的芙莉莲"},
		{"key": "别名", "value": [{"v": "Frieren"}, {"v": "Sousou no Frieren"}]}
	],
	"rating": {"rank": 1, "total": 30000, "score": 9.1},
	"tags": [{"name": "奇幻", "count": 3000}],
	"eps": 28,
	"total_episodes": 28
}`

func TestNewClient_Defaults(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), Options{})
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %s, want %s", c.baseURL, DefaultBaseURL)
	}
	if c.userAgent != DefaultUserAgent {
		t.Errorf("userAgent = %s, want %s", c.userAgent, DefaultUserAgent)
	}
}

func TestClient_GetSubject_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/subjects/400602" {
			t.Errorf("path = %s, want /v0/subjects/400602", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %s, want test-agent", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(subjectJSON))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), Options{BaseURL: server.URL, UserAgent: "test-agent"})

	data, err := c.GetSubject(context.Background(), 400602)
	if err != nil {
		t.Fatalf("GetSubject がエラーを返した: %v", err)
	}
	if data.NameCN != "葬送的芙莉莲" {
		t.Errorf("NameCN = %s", data.NameCN)
	}
	if data.Rating.Score != 9.1 {
		t.Errorf("Rating.Score = %v, want 9.1", data.Rating.Score)
	}
	aliases := data.Aliases()
	want := []string{"葬送的芙莉莲", "葬送のフリーレン", "Frieren", "Sousou no Frieren"}
	if len(aliases) != len(want) {
		t.Fatalf("Aliases = %v, want %v", aliases, want)
	}
	for i := range want {
		if aliases[i] != want[i] {
			t.Errorf("Aliases[%d] = %s, want %s", i, aliases[i], want[i])
		}
	}
}

func TestClient_GetSubject_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), Options{BaseURL: server.URL})

	_, err := c.GetSubject(context.Background(), 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestClient_GetSubject_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), Options{BaseURL: server.URL})

	_, err := c.GetSubject(context.Background(), 1)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if !statusErr.Temporary() {
		t.Error("503 は Temporary であるべき")
	}
}

func TestClient_GetSubject_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), Options{BaseURL: server.URL})

	if _, err := c.GetSubject(context.Background(), 1); err == nil {
		t.Error("不正なJSONでエラーを返すべき")
	}
}

func TestClient_GetSubject_InvalidID(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), Options{})

	if _, err := c.GetSubject(context.Background(), 0); err == nil {
		t.Error("ID=0 でエラーを返すべき")
	}
}

func TestClient_GetSubject_RateLimited(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"id": 1}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	// 1秒に1回まで
	c := NewClient(server.Client(), newTestLogger(&buf), Options{BaseURL: server.URL, RateLimit: 1})

	if _, err := c.GetSubject(context.Background(), 1); err != nil {
		t.Fatalf("1回目の GetSubject がエラーを返した: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.GetSubject(ctx, 1); err == nil {
		t.Error("レート制限中はコンテキストの期限内に呼び出せないべき")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("上流の呼び出し回数 = %d, want 1", n)
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   StatusClass
	}{
		{200, StatusOK},
		{404, StatusMissing},
		{410, StatusMissing},
		{401, StatusDenied},
		{403, StatusDenied},
		{429, StatusBackoff},
		{500, StatusBackoff},
		{502, StatusBackoff},
		{302, StatusUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %d, want %d", tt.status, got, tt.want)
		}
	}
}
