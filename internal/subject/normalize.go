package subject

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	// blankLines は3行以上連続する改行。
	blankLines = regexp.MustCompile(`\n{3,}`)
	// spaces は連続する空白（改行を除く）。
	spaces = regexp.MustCompile(`[ \t\x{3000}]+`)
)

// TextNormalizer は上流データの文字列を保存用に正規化する。
// あらすじに含まれるHTMLはすべて除去し、文字列はNFCに揃える。
// スレッドセーフ。
type TextNormalizer struct {
	policy *bluemonday.Policy
}

// NewTextNormalizer はTextNormalizerの新しいインスタンスを生成する。
// タグを一切許可しないbluemondayのポリシーを使用する。
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Summary はあらすじを正規化する。
//   - HTMLタグを除去し、文字参照を元の文字に戻す
//   - 改行コードをLFに揃え、3行以上の空行を1行にまとめる
//   - 行ごとの連続する空白を1つにまとめ、前後の空白を除去する
//   - NFCに正規化する
//
// 同一入力に対して常に同一出力を返す（冪等）。
func (n *TextNormalizer) Summary(raw string) string {
	if raw == "" {
		return ""
	}

	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = n.policy.Sanitize(s)
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaces.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")

	return norm.NFC.String(strings.TrimSpace(s))
}

// Term はタイトル・別名・検索語を正規化する。
// 前後の空白を除去し、NFCに正規化する。
func (n *TextNormalizer) Term(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Terms は各要素を Term で正規化し、空文字列と重複を除いたスライスを返す。
// 順序は初出順を保つ。
func (n *TextNormalizer) Terms(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = n.Term(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
