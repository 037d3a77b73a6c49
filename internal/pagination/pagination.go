// Package pagination はIDカーソルによるページ分割と、全ページを遅延走査するイテレータを提供する。
//
// ページはIDの昇順で、カーソルは直前のページの最後のIDを表す（そのIDより大きいレコードを返す）。
// 返却件数が limit と一致した場合にのみ次のカーソルを設定する。
// そのため総件数がlimitの倍数のときは、末尾で空ページを1回取得して走査が終わる。
package pagination

import (
	"context"
	"iter"
)

const (
	// DefaultLimit はlimit未指定時の1ページあたりの件数。
	DefaultLimit = 100
	// MaxLimit は1ページあたりの最大件数。
	MaxLimit = 1000
)

// Page はページ分割された結果。
// NextCursor がnilの場合は最終ページ。
type Page[T any] struct {
	Data       []T    `json:"data"`
	NextCursor *int64 `json:"nextCursor,omitempty"`
}

// NewPage はID昇順に取得したレコードからPageを生成する。
// idOf はレコードのIDを返す関数。
func NewPage[T any](records []T, limit int, idOf func(T) int64) Page[T] {
	if records == nil {
		records = []T{}
	}
	page := Page[T]{Data: records}
	if limit > 0 && len(records) == limit {
		next := idOf(records[len(records)-1])
		page.NextCursor = &next
	}
	return page
}

// ClampLimit はlimitを1〜MaxLimitの範囲に収める。0以下は DefaultLimit として扱う。
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// FetchFunc はカーソル以降の1ページを取得する関数。
type FetchFunc[T any] func(ctx context.Context, cursor int64) (Page[T], error)

// Walk はカーソル0から始めて全ページのレコードを順に返すイテレータを返す。
//
// ページは利用側が要素を読み進めたときに初めて取得される。
// 取得に失敗した場合はエラーを1回だけ返して走査を終える。利用側がbreakした場合は以降のページを取得しない。
func Walk[T any](ctx context.Context, fetch FetchFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var cursor int64
		for {
			if err := ctx.Err(); err != nil {
				var zero T
				yield(zero, err)
				return
			}

			page, err := fetch(ctx, cursor)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, record := range page.Data {
				if !yield(record, nil) {
					return
				}
			}
			if page.NextCursor == nil {
				return
			}
			cursor = *page.NextCursor
		}
	}
}

// Collect はWalkの結果をスライスにまとめる。最初のエラーで中断する。
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
