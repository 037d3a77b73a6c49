package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIDMiddleware_GeneratesUUID(t *testing.T) {
	var got string
	handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("生成されたIDがUUIDではない: %q", got)
	}
	if w.Header().Get(RequestIDHeader) != got {
		t.Errorf("レスポンスヘッダー = %q, want %q", w.Header().Get(RequestIDHeader), got)
	}
}

func TestRequestIDMiddleware_PropagatesClientID(t *testing.T) {
	var got string
	handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "client-abc" {
		t.Errorf("request id = %q, want client-abc", got)
	}
}

func TestRequestIDMiddleware_ReplacesOversizedID(t *testing.T) {
	var got string
	handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(got) != 36 {
		t.Errorf("長すぎるIDは置き換えられるべき: %q", got)
	}
}
