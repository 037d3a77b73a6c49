package subject

import (
	"slices"
	"testing"
)

func TestTextNormalizer_Summary(t *testing.T) {
	n := NewTextNormalizer()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"空文字列", "", ""},
		{"タグ除去", "<p>hello <b>world</b></p>", "hello world"},
		{"scriptの中身ごと除去", "a<script>alert(1)</script>b", "ab"},
		{"文字参照", "Tom &amp; Jerry", "Tom & Jerry"},
		{"CRLF", "line1\r\nline2", "line1\nline2"},
		{"空行の圧縮", "a\n\n\n\n\nb", "a\n\nb"},
		{"行内の空白", "a   \t b　　c", "a b c"},
		{"NFC", "が", "が"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Summary(tt.raw); got != tt.want {
				t.Errorf("Summary(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTextNormalizer_Summary_Idempotent(t *testing.T) {
	n := NewTextNormalizer()
	raw := "<p>first</p>\r\n\r\n\r\n  second   line &lt;3"
	once := n.Summary(raw)
	if twice := n.Summary(once); twice != once {
		t.Errorf("2回目の正規化で変化した: %q -> %q", once, twice)
	}
}

func TestTextNormalizer_Terms(t *testing.T) {
	n := NewTextNormalizer()
	got := n.Terms([]string{" a ", "", "b", "a", "が", "が"})
	want := []string{"a", "b", "が"}
	if !slices.Equal(got, want) {
		t.Errorf("Terms = %q, want %q", got, want)
	}

	if got := n.Terms(nil); got == nil || len(got) != 0 {
		t.Errorf("Terms(nil) は空スライスを返すべき: %#v", got)
	}
}
