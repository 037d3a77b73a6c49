// Package report は同期結果の書き出しを提供する。
// 条目を放送年月ごとのJSONファイルに分割して保存し、同期ログをMarkdownで出力する。
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	// UnscheduledKey は放送日が未定の条目のグループ名。
	UnscheduledKey = "tbd"
	// maxParallelWrites は同時に書き込むファイル数の上限。
	maxParallelWrites = 8
)

// MonthKey は "YYYY-MM-DD" 形式の日付から "YYYY/MM" のグループ名を返す。
// 日付が空または年月を読み取れない場合は UnscheduledKey を返す。
func MonthKey(date string) string {
	parts := strings.SplitN(date, "-", 3)
	if len(parts) < 2 || !isDigits(parts[0], 4) || !isDigits(parts[1], 2) {
		return UnscheduledKey
	}
	return parts[0] + "/" + parts[1]
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// DumpBy はitemsをkeyでグループ分けし、グループごとに rootDir/<key>.json として書き出す。
// 各グループはcmpで並べ替える。書き出したファイルのパスをグループ名の昇順で返す。
func DumpBy[T any](ctx context.Context, rootDir string, items []T, key func(T) string, cmp func(a, b T) int) ([]string, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
	}

	grouped := make(map[string][]T)
	for _, item := range items {
		k := key(item)
		if !filepath.IsLocal(k) {
			return nil, fmt.Errorf("不正なグループ名です: %q", k)
		}
		grouped[k] = append(grouped[k], item)
	}

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	paths := make([]string, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelWrites)
	for i, k := range keys {
		group := grouped[k]
		slices.SortStableFunc(group, cmp)
		path := filepath.Join(rootDir, filepath.FromSlash(k)+".json")
		paths[i] = path

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return WriteJSON(path, group)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// WriteJSON はvをインデント付きのJSONとしてpathに書き出す。親ディレクトリは必要に応じて作成する。
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("JSONのエンコードに失敗しました: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%s の書き込みに失敗しました: %w", path, err)
	}
	return nil
}
