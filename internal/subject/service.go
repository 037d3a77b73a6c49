package subject

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"

	"github.com/hitoshi/bgmx/internal/model"
	"github.com/hitoshi/bgmx/internal/pagination"
	"github.com/hitoshi/bgmx/internal/repository"
	"github.com/hitoshi/bgmx/internal/revision"
)

// SubjectWithRevisions は条目とその修正履歴の組。
type SubjectWithRevisions struct {
	Subject   *model.Subject   `json:"subject"`
	Revisions []model.Revision `json:"revisions"`
}

// FoldRecorder は修正履歴の畳み込み結果を記録するインターフェース。
type FoldRecorder interface {
	RecordFold(ok bool)
}

// Service は条目・修正履歴・放送カレンダーのサービス層。
type Service struct {
	bangumiRepo  repository.BangumiRepository
	subjectRepo  repository.SubjectRepository
	revisionRepo repository.RevisionRepository
	calendarRepo repository.CalendarRepository
	normalizer   *TextNormalizer
	recorder     FoldRecorder
	logger       *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// recorder はnilでもよい。
func NewService(
	bangumiRepo repository.BangumiRepository,
	subjectRepo repository.SubjectRepository,
	revisionRepo repository.RevisionRepository,
	calendarRepo repository.CalendarRepository,
	recorder FoldRecorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		bangumiRepo:  bangumiRepo,
		subjectRepo:  subjectRepo,
		revisionRepo: revisionRepo,
		calendarRepo: calendarRepo,
		normalizer:   NewTextNormalizer(),
		recorder:     recorder,
		logger:       logger,
	}
}

// GetSubject は条目と有効な修正履歴を返す。
func (s *Service) GetSubject(ctx context.Context, id int64) (*SubjectWithRevisions, error) {
	subject, err := s.subjectRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("条目の取得に失敗しました: %w", err)
	}
	if subject == nil {
		return nil, model.NewSubjectNotFoundError(id)
	}

	revisions, err := s.revisionRepo.ListEnabled(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("修正履歴の取得に失敗しました: %w", err)
	}
	return &SubjectWithRevisions{Subject: subject, Revisions: revisions}, nil
}

// ListRevisions は条目と、無効化されたものを含むすべての修正履歴を返す。
func (s *Service) ListRevisions(ctx context.Context, id int64) (*SubjectWithRevisions, error) {
	if _, err := s.findBangumi(ctx, id); err != nil {
		return nil, err
	}

	subject, err := s.subjectRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("条目の取得に失敗しました: %w", err)
	}
	revisions, err := s.revisionRepo.ListAll(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("修正履歴の取得に失敗しました: %w", err)
	}
	return &SubjectWithRevisions{Subject: subject, Revisions: revisions}, nil
}

// CreateRevision は修正履歴を検証して作成し、条目を再構築する。
// 許可されていないパス・操作・値は INVALID_REVISION エラーになる。
func (s *Service) CreateRevision(ctx context.Context, id int64, detail model.RevisionDetail) (*SubjectWithRevisions, error) {
	if err := revision.Validate(detail); err != nil {
		return nil, model.NewInvalidRevisionError(err.Error())
	}
	detail = s.normalizeDetail(detail)

	bangumi, err := s.findBangumi(ctx, id)
	if err != nil {
		return nil, err
	}

	rev, err := s.revisionRepo.Create(ctx, id, detail)
	if err != nil {
		return nil, fmt.Errorf("修正履歴の作成に失敗しました: %w", err)
	}
	s.logger.Info("修正履歴を作成しました",
		slog.Int64("subject_id", id),
		slog.Int64("revision_id", rev.ID),
		slog.String("operation", string(detail.Operation)),
		slog.String("path", detail.Path),
	)

	return s.rebuildWithRevisions(ctx, bangumi)
}

// EnableRevision は修正履歴を有効にし、条目を再構築する。
func (s *Service) EnableRevision(ctx context.Context, id, revisionID int64) (*SubjectWithRevisions, error) {
	return s.toggleRevision(ctx, id, revisionID, true)
}

// DisableRevision は修正履歴を無効にし、条目を再構築する。
// 修正履歴の行は削除しない。
func (s *Service) DisableRevision(ctx context.Context, id, revisionID int64) (*SubjectWithRevisions, error) {
	return s.toggleRevision(ctx, id, revisionID, false)
}

func (s *Service) toggleRevision(ctx context.Context, id, revisionID int64, enabled bool) (*SubjectWithRevisions, error) {
	bangumi, err := s.findBangumi(ctx, id)
	if err != nil {
		return nil, err
	}

	var rev *model.Revision
	if enabled {
		rev, err = s.revisionRepo.Enable(ctx, id, revisionID)
	} else {
		rev, err = s.revisionRepo.Disable(ctx, id, revisionID)
	}
	if err != nil {
		return nil, fmt.Errorf("修正履歴の状態更新に失敗しました: %w", err)
	}
	if rev == nil {
		return nil, model.NewRevisionNotFoundError(id, revisionID)
	}
	s.logger.Info("修正履歴の状態を更新しました",
		slog.Int64("subject_id", id),
		slog.Int64("revision_id", revisionID),
		slog.Bool("enabled", enabled),
	)

	return s.rebuildWithRevisions(ctx, bangumi)
}

// GetBangumi はbgm.tvの生データを返す。
func (s *Service) GetBangumi(ctx context.Context, id int64) (*model.Bangumi, error) {
	return s.findBangumi(ctx, id)
}

// PutBangumi はbgm.tvの生データを保存し、条目を再構築する。
func (s *Service) PutBangumi(ctx context.Context, id int64, data *model.BangumiData) (*model.Bangumi, error) {
	if data == nil {
		return nil, model.NewInvalidRequestError("data is required")
	}
	if data.ID != 0 && data.ID != id {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("data.id %d does not match %d", data.ID, id))
	}

	bangumi, err := s.bangumiRepo.Upsert(ctx, id, data)
	if err != nil {
		return nil, fmt.Errorf("bangumiデータの保存に失敗しました: %w", err)
	}
	if _, err := s.Rebuild(ctx, bangumi); err != nil {
		return nil, err
	}
	return bangumi, nil
}

// ListSubjects は条目をカーソルでページ分割して返す。
func (s *Service) ListSubjects(ctx context.Context, cursor int64, limit int) (pagination.Page[*model.Subject], error) {
	list, err := s.subjectRepo.ListAfter(ctx, cursor, limit)
	if err != nil {
		return pagination.Page[*model.Subject]{}, fmt.Errorf("条目一覧の取得に失敗しました: %w", err)
	}
	return pagination.NewPage(list, limit, func(s *model.Subject) int64 { return s.ID }), nil
}

// ListBangumis はbgm.tvの生データをカーソルでページ分割して返す。
func (s *Service) ListBangumis(ctx context.Context, cursor int64, limit int) (pagination.Page[*model.Bangumi], error) {
	list, err := s.bangumiRepo.ListAfter(ctx, cursor, limit)
	if err != nil {
		return pagination.Page[*model.Bangumi]{}, fmt.Errorf("bangumiデータ一覧の取得に失敗しました: %w", err)
	}
	return pagination.NewPage(list, limit, func(b *model.Bangumi) int64 { return b.ID }), nil
}

// Bangumis は保存済みのbgm.tvの生データをすべて列挙する。
// 同期workerのリモート列挙として使用する。
func (s *Service) Bangumis(ctx context.Context) iter.Seq2[*model.Bangumi, error] {
	return pagination.Walk(ctx, func(ctx context.Context, cursor int64) (pagination.Page[*model.Bangumi], error) {
		return s.ListBangumis(ctx, cursor, pagination.DefaultLimit)
	})
}

// Rebuild は生データから導出した基底スナップショットに有効な修正履歴を畳み込み、条目として保存する。
//
// 途中で適用できない修正履歴に到達した場合は、そこまでの結果を保存して警告を記録する。
func (s *Service) Rebuild(ctx context.Context, bangumi *model.Bangumi) (*model.Subject, error) {
	revisions, err := s.revisionRepo.ListEnabled(ctx, bangumi.ID)
	if err != nil {
		return nil, fmt.Errorf("修正履歴の取得に失敗しました: %w", err)
	}
	return s.rebuild(ctx, bangumi, revisions)
}

func (s *Service) rebuild(ctx context.Context, bangumi *model.Bangumi, revisions []model.Revision) (*model.Subject, error) {
	base := FromBangumi(bangumi, s.normalizer)
	folded, ok := revision.Apply(base, revisions)
	if s.recorder != nil {
		s.recorder.RecordFold(ok)
	}
	if !ok {
		s.logger.Warn("適用できない修正履歴があるため途中までの結果を保存します",
			slog.Int64("subject_id", bangumi.ID),
			slog.Int("revision_count", len(revisions)),
		)
	}

	saved, err := s.subjectRepo.Upsert(ctx, folded)
	if err != nil {
		return nil, fmt.Errorf("条目の保存に失敗しました: %w", err)
	}
	return saved, nil
}

func (s *Service) rebuildWithRevisions(ctx context.Context, bangumi *model.Bangumi) (*SubjectWithRevisions, error) {
	revisions, err := s.revisionRepo.ListEnabled(ctx, bangumi.ID)
	if err != nil {
		return nil, fmt.Errorf("修正履歴の取得に失敗しました: %w", err)
	}
	subject, err := s.rebuild(ctx, bangumi, revisions)
	if err != nil {
		return nil, err
	}
	return &SubjectWithRevisions{Subject: subject, Revisions: revisions}, nil
}

func (s *Service) findBangumi(ctx context.Context, id int64) (*model.Bangumi, error) {
	bangumi, err := s.bangumiRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("bangumiデータの取得に失敗しました: %w", err)
	}
	if bangumi == nil {
		return nil, model.NewBangumiNotFoundError(id)
	}
	return bangumi, nil
}

// normalizeDetail はリスト型の値を正規化する（NFC、空文字列と重複の除去）。
// Validate を通過した修正内容を前提とする。
func (s *Service) normalizeDetail(detail model.RevisionDetail) model.RevisionDetail {
	spec, ok := revision.LookupPath(detail.Path)
	if !ok || !spec.IsList() {
		return detail
	}

	var values []string
	if err := json.Unmarshal(detail.Value, &values); err != nil || values == nil {
		return detail
	}
	raw, err := json.Marshal(s.normalizer.Terms(values))
	if err != nil {
		return detail
	}
	detail.Value = raw
	return detail
}
