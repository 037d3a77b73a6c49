// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/bgmx/internal/model"
)

// BangumiRepository はbgm.tvの生データの永続化インターフェース。
type BangumiRepository interface {
	// FindByID は指定IDのデータを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Bangumi, error)

	// Upsert はデータを作成または上書きし、保存後の行を返す。
	// 既存行の created_at は保持する。
	Upsert(ctx context.Context, id int64, data *model.BangumiData) (*model.Bangumi, error)

	// ListAfter は cursor より大きいIDの行をID昇順で最大 limit 件取得する。
	ListAfter(ctx context.Context, cursor int64, limit int) ([]*model.Bangumi, error)
}

// SubjectRepository は整形済み条目の永続化インターフェース。
type SubjectRepository interface {
	// FindByID は指定IDの条目を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Subject, error)

	// Upsert は条目を作成または上書きし、保存後の行を返す。
	Upsert(ctx context.Context, subject *model.Subject) (*model.Subject, error)

	// ListAfter は cursor より大きいIDの条目をID昇順で最大 limit 件取得する。
	ListAfter(ctx context.Context, cursor int64, limit int) ([]*model.Subject, error)
}

// RevisionRepository は修正履歴の永続化インターフェース。
// 修正履歴は追記のみで、作成後に変更できるのは enabled だけ。
type RevisionRepository interface {
	// Create は有効な状態の修正履歴を作成する。
	Create(ctx context.Context, subjectID int64, detail model.RevisionDetail) (*model.Revision, error)

	// ListEnabled は有効な修正履歴をID昇順で取得する。
	ListEnabled(ctx context.Context, subjectID int64) ([]model.Revision, error)

	// ListAll は無効化されたものを含むすべての修正履歴をID昇順で取得する。
	ListAll(ctx context.Context, subjectID int64) ([]model.Revision, error)

	// Enable は修正履歴を有効にする。見つからない場合はnilを返す。
	Enable(ctx context.Context, subjectID, revisionID int64) (*model.Revision, error)

	// Disable は修正履歴を無効にする。見つからない場合はnilを返す。
	Disable(ctx context.Context, subjectID, revisionID int64) (*model.Revision, error)
}

// CalendarRepository は放送カレンダーの永続化インターフェース。
type CalendarRepository interface {
	// Replace はカレンダー全体を entries で置き換える。
	Replace(ctx context.Context, entries []model.CalendarEntry) error

	// ListActive は条目が存在するカレンダー行を、条目と結合してID昇順で取得する。
	ListActive(ctx context.Context) ([]model.CalendarSubject, error)
}
