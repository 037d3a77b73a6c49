// Package refresh は条目データの定期同期処理を提供する。
// リモートストアに登録済みの条目と外部データセットの条目を列挙し、
// 同時実行数を制限しながら上流（bgm.tv）から最新データを取得して更新する。
package refresh

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/hitoshi/bgmx/internal/limiter"
	"github.com/hitoshi/bgmx/internal/model"
)

// RemoteEnumerator はリモートストアに登録済みのbangumiデータを列挙する。
type RemoteEnumerator interface {
	Bangumis(ctx context.Context) iter.Seq2[*model.Bangumi, error]
}

// CuratedEnumerator は外部データセットの項目を列挙する。
type CuratedEnumerator interface {
	Items(ctx context.Context) iter.Seq2[model.CuratedItem, error]
}

// Updater は1件の条目を上流から取得して更新する。
type Updater interface {
	Update(ctx context.Context, id int64) (*model.Bangumi, error)
}

// MetricsRecorder は同期処理のメトリクス記録インターフェース。
// RecordRefresh は複数のgoroutineから同時に呼ばれる。
type MetricsRecorder interface {
	RecordRefresh(success bool, duration time.Duration)
	RecordRetryRound()
	RecordRun(updated, unknown, failed int, duration time.Duration)
}

// Config は同期処理の設定。
type Config struct {
	Concurrency    int  // 同時に実行する更新の上限
	MaxRetryRounds int  // 失敗した条目を再試行するラウンド数の上限
	UpdateEnabled  bool // falseの場合は上流を呼ばず、リモートストアの既存データを結果とする
}

// Result は1回の同期処理の集計結果。永続化はしない。
type Result struct {
	Updated map[int64]*model.Bangumi
	Unknown []model.CuratedItem
	Errors  map[int64]*model.SyncError
}

func newResult() *Result {
	return &Result{
		Updated: make(map[int64]*model.Bangumi),
		Errors:  make(map[int64]*model.SyncError),
	}
}

// UpdatedIDs は更新に成功した条目IDを昇順で返す。
func (r *Result) UpdatedIDs() []int64 {
	return slices.Sorted(maps.Keys(r.Updated))
}

// ErrorIDs は失敗した条目IDを昇順で返す。
func (r *Result) ErrorIDs() []int64 {
	return slices.Sorted(maps.Keys(r.Errors))
}

// Scheduler は同期処理の実行とスケジューリングを行う。
// 集計用のマップは Run を実行するgoroutineだけが読み書きし、
// 各更新タスクの結果はチャネル経由で受け取る。
type Scheduler struct {
	remote  RemoteEnumerator
	curated CuratedEnumerator
	updater Updater
	metrics MetricsRecorder
	logger  *slog.Logger
	cfg     Config
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// Concurrencyが0以下の場合はデフォルト値3を使用する。
// curated と metrics はnilでもよい。
func NewScheduler(
	remote RemoteEnumerator,
	curated CuratedEnumerator,
	updater Updater,
	metrics MetricsRecorder,
	logger *slog.Logger,
	cfg Config,
) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.MaxRetryRounds < 0 {
		cfg.MaxRetryRounds = 0
	}
	return &Scheduler{
		remote:  remote,
		curated: curated,
		updater: updater,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start は指定間隔のティッカーで同期処理を起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("concurrency", s.cfg.Concurrency),
		slog.Int("retry", s.cfg.MaxRetryRounds),
	)

	// 起動直後に1回実行
	s.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Scheduler) runAndLog(ctx context.Context) {
	if _, err := s.Run(ctx); err != nil {
		s.logger.Error("同期処理の実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// pending は投入済みで結果待ちの更新タスク。
type pending struct {
	id     int64
	result <-chan limiter.Result[*model.Bangumi]
}

// Run は同期処理を1回実行し、集計結果を返す。
//
// 1. リモートストアの条目を列挙し、各IDの更新を投入する（フェーズA）。
// 2. 外部データセットを列挙し、フェーズAで未処理のIDの更新を投入する（フェーズB）。
// 3. フェーズA・Bで投入したすべての更新の完了を待つ。
// 4. 失敗したIDを最大 MaxRetryRounds ラウンドまで再試行する。
//
// 個別の条目の更新失敗はエラーとして返さず、Result.Errors に集計する。
// 列挙自体に失敗した場合は、投入済みの更新の完了を待ってからエラーを返す。
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := newResult()
	lim := limiter.New(s.cfg.Concurrency)
	seen := make(map[int64]struct{})

	var tasks []pending
	submit := func(id int64) {
		tasks = append(tasks, s.submit(ctx, lim, id))
	}

	s.logger.Info("同期処理を開始します",
		slog.Int("concurrency", s.cfg.Concurrency),
		slog.Bool("update_enabled", s.cfg.UpdateEnabled),
	)

	// フェーズA: リモートストアの条目
	for bangumi, err := range s.remote.Bangumis(ctx) {
		if err != nil {
			s.join(res, tasks, 0)
			return res, fmt.Errorf("remote enumeration: %w", err)
		}
		if _, ok := seen[bangumi.ID]; ok {
			continue
		}
		seen[bangumi.ID] = struct{}{}

		if s.cfg.UpdateEnabled {
			submit(bangumi.ID)
		} else {
			res.Updated[bangumi.ID] = bangumi
		}
	}
	remoteCount := len(seen)

	// フェーズB: 外部データセットの条目
	if s.curated != nil {
		for item, err := range s.curated.Items(ctx) {
			if err != nil {
				s.join(res, tasks, 0)
				return res, fmt.Errorf("curated enumeration: %w", err)
			}
			if !item.Resolved() {
				s.logger.Warn("bangumi IDが対応付けられていない項目です",
					slog.String("title", item.Title),
				)
				res.Unknown = append(res.Unknown, item)
				continue
			}
			if _, ok := seen[item.BangumiID]; ok {
				continue
			}
			seen[item.BangumiID] = struct{}{}

			if s.cfg.UpdateEnabled {
				submit(item.BangumiID)
			}
		}
	}

	s.logger.Info("更新対象を列挙しました",
		slog.Int("remote_count", remoteCount),
		slog.Int("curated_count", len(seen)-remoteCount),
		slog.Int("unknown_count", len(res.Unknown)),
		slog.Int("submitted", len(tasks)),
	)

	s.join(res, tasks, 0)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	// リトライ: ラウンド開始時点の失敗IDを対象とする
	for round := 1; round <= s.cfg.MaxRetryRounds && len(res.Errors) > 0; round++ {
		ids := res.ErrorIDs()
		s.logger.Info("失敗した条目を再試行します",
			slog.Int("round", round),
			slog.Int("count", len(ids)),
		)
		if s.metrics != nil {
			s.metrics.RecordRetryRound()
		}

		tasks = tasks[:0]
		for _, id := range ids {
			submit(id)
		}
		s.join(res, tasks, round)
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}

	for _, syncErr := range res.Errors {
		syncErr.Permanent = true
	}

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordRun(len(res.Updated), len(res.Unknown), len(res.Errors), duration)
	}
	s.logger.Info("同期処理が完了しました",
		slog.Int("updated", len(res.Updated)),
		slog.Int("unknown", len(res.Unknown)),
		slog.Int("errors", len(res.Errors)),
		slog.Int64("duration_ms", duration.Milliseconds()),
	)

	return res, nil
}

// submit は1件の更新をLimiter経由で投入する。
// 実行枠が空くまで呼び出し元をブロックする。
func (s *Scheduler) submit(ctx context.Context, lim *limiter.Limiter, id int64) pending {
	return pending{
		id: id,
		result: limiter.Submit(ctx, lim, func(ctx context.Context) (*model.Bangumi, error) {
			start := time.Now()
			bangumi, err := s.updater.Update(ctx, id)
			if s.metrics != nil {
				s.metrics.RecordRefresh(err == nil, time.Since(start))
			}
			return bangumi, err
		}),
	}
}

// join は投入済みのタスクすべての完了を待ち、結果を集計に反映する。
// 成功したIDは以前の失敗記録を削除し、失敗したIDは記録を上書きする。
func (s *Scheduler) join(res *Result, tasks []pending, round int) {
	for _, t := range tasks {
		out := <-t.result
		if out.Err != nil {
			s.logger.Error("条目の更新に失敗しました",
				slog.Int64("subject_id", t.id),
				slog.Int("round", round),
				slog.String("error", out.Err.Error()),
			)
			res.Errors[t.id] = &model.SyncError{ID: t.id, Round: round, Err: out.Err}
			continue
		}

		bangumi := out.Value
		if bangumi == nil {
			bangumi = &model.Bangumi{ID: t.id}
		}
		res.Updated[t.id] = bangumi
		delete(res.Errors, t.id)
	}
}
