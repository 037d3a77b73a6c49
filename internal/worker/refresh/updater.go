package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/bgmx/internal/model"
)

// UpstreamFetcher は上流（bgm.tv）から条目データを取得する。
type UpstreamFetcher interface {
	GetSubject(ctx context.Context, id int64) (*model.BangumiData, error)
}

// BangumiStore は取得したデータを保存する先。
// CLIではリモートストアのAPI、サーバーのworkerではリポジトリと条目の再構築を担うサービスが実装する。
type BangumiStore interface {
	PutBangumi(ctx context.Context, id int64, data *model.BangumiData) (*model.Bangumi, error)
}

// BangumiUpdater は上流から条目データを取得し、保存先が設定されていればそこへ書き込む。
type BangumiUpdater struct {
	upstream UpstreamFetcher
	store    BangumiStore
	now      func() time.Time
}

// NewBangumiUpdater はBangumiUpdaterの新しいインスタンスを生成する。
// store がnilの場合は保存せず、取得したデータをそのまま返す。
func NewBangumiUpdater(upstream UpstreamFetcher, store BangumiStore) *BangumiUpdater {
	return &BangumiUpdater{
		upstream: upstream,
		store:    store,
		now:      time.Now,
	}
}

// Update は1件の条目を上流から取得して更新し、保存後のデータを返す。
func (u *BangumiUpdater) Update(ctx context.Context, id int64) (*model.Bangumi, error) {
	data, err := u.upstream.GetSubject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch upstream subject: %w", err)
	}

	if u.store == nil {
		now := u.now()
		return &model.Bangumi{ID: id, Data: *data, CreatedAt: now, UpdatedAt: now}, nil
	}

	stored, err := u.store.PutBangumi(ctx, id, data)
	if err != nil {
		return nil, fmt.Errorf("store bangumi: %w", err)
	}
	return stored, nil
}
