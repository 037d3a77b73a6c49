// Package limiter は同時実行数を制限するタスク実行器を提供する。
// 上限に達している間の投入は到着順（FIFO）に待機し、空きが出た順に開始される。
package limiter

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Result はタスクの実行結果。
type Result[T any] struct {
	Value T
	Err   error
}

// Limiter は同時に実行中のタスク数を Concurrency 以下に保つ。
// ゼロ値は使用できない。New で生成すること。
type Limiter struct {
	sem         *semaphore.Weighted
	concurrency int
}

// New は同時実行数の上限を指定してLimiterを生成する。
// 1未満の値は1として扱う。
func New(concurrency int) *Limiter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Limiter{
		sem:         semaphore.NewWeighted(int64(concurrency)),
		concurrency: concurrency,
	}
}

// Concurrency は同時実行数の上限を返す。
func (l *Limiter) Concurrency() int {
	return l.concurrency
}

// Submit はタスクを投入し、結果を1件だけ受け取れるチャネルを返す。
//
// 実行枠が空くまで呼び出し元をブロックし、枠を確保した時点でタスクを別goroutineで開始する。
// 枠の確保は投入順に行われるため、先に投入されたタスクが後のタスクより先に開始される。
// 待機中にctxが終了した場合、タスクは実行せずctx.Err()を結果として返す。
// タスクの成否にかかわらず枠は必ず解放される。panicも解放してから再送出する。
func Submit[T any](ctx context.Context, l *Limiter, task func(ctx context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)

	if err := l.sem.Acquire(ctx, 1); err != nil {
		out <- Result[T]{Err: err}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer l.sem.Release(1)

		v, err := task(ctx)
		out <- Result[T]{Value: v, Err: err}
	}()
	return out
}

// Go は結果を待たずにタスクを投入する。ctx終了で投入できなかった場合はエラーを返す。
func (l *Limiter) Go(ctx context.Context, task func(ctx context.Context)) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer l.sem.Release(1)
		task(ctx)
	}()
	return nil
}

// Wait は実行中のタスクがすべて完了するまで待機する。
// 待機中は新しいタスクの開始を妨げる。
func (l *Limiter) Wait(ctx context.Context) error {
	n := int64(l.concurrency)
	if err := l.sem.Acquire(ctx, n); err != nil {
		return err
	}
	l.sem.Release(n)
	return nil
}
