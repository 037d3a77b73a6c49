package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/bgmx/internal/model"
)

// PostgresRevisionRepo はPostgreSQLを使用した修正履歴リポジトリ。
type PostgresRevisionRepo struct {
	db *sql.DB
}

// NewPostgresRevisionRepo はPostgresRevisionRepoを生成する。
func NewPostgresRevisionRepo(db *sql.DB) *PostgresRevisionRepo {
	return &PostgresRevisionRepo{db: db}
}

const revisionColumns = `id, subject_id, enabled, detail, created_at`

// Create は有効な状態の修正履歴を作成する。IDはデータベースが採番する。
func (r *PostgresRevisionRepo) Create(ctx context.Context, subjectID int64, detail model.RevisionDetail) (*model.Revision, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("修正内容のエンコードに失敗しました: %w", err)
	}

	row := r.db.QueryRowContext(ctx,
		`INSERT INTO revisions (subject_id, enabled, detail, created_at)
		 VALUES ($1, TRUE, $2, now())
		 RETURNING `+revisionColumns,
		subjectID, raw,
	)
	rev, err := scanRevision(row)
	if err != nil {
		return nil, fmt.Errorf("修正履歴の作成に失敗しました: %w", err)
	}
	return rev, nil
}

// ListEnabled は有効な修正履歴をID昇順で取得する。
func (r *PostgresRevisionRepo) ListEnabled(ctx context.Context, subjectID int64) ([]model.Revision, error) {
	return r.list(ctx,
		`SELECT `+revisionColumns+` FROM revisions
		 WHERE subject_id = $1 AND enabled = TRUE ORDER BY id ASC`,
		subjectID,
	)
}

// ListAll は無効化されたものを含むすべての修正履歴をID昇順で取得する。
func (r *PostgresRevisionRepo) ListAll(ctx context.Context, subjectID int64) ([]model.Revision, error) {
	return r.list(ctx,
		`SELECT `+revisionColumns+` FROM revisions
		 WHERE subject_id = $1 ORDER BY id ASC`,
		subjectID,
	)
}

// Enable は修正履歴を有効にする。見つからない場合はnilを返す。
func (r *PostgresRevisionRepo) Enable(ctx context.Context, subjectID, revisionID int64) (*model.Revision, error) {
	return r.setEnabled(ctx, subjectID, revisionID, true)
}

// Disable は修正履歴を無効にする。見つからない場合はnilを返す。
func (r *PostgresRevisionRepo) Disable(ctx context.Context, subjectID, revisionID int64) (*model.Revision, error) {
	return r.setEnabled(ctx, subjectID, revisionID, false)
}

func (r *PostgresRevisionRepo) setEnabled(ctx context.Context, subjectID, revisionID int64, enabled bool) (*model.Revision, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE revisions SET enabled = $3
		 WHERE id = $1 AND subject_id = $2
		 RETURNING `+revisionColumns,
		revisionID, subjectID, enabled,
	)
	rev, err := scanRevision(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("修正履歴の状態更新に失敗しました: %w", err)
	}
	return rev, nil
}

func (r *PostgresRevisionRepo) list(ctx context.Context, query string, subjectID int64) ([]model.Revision, error) {
	rows, err := r.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("修正履歴一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	revisions := []model.Revision{}
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("修正履歴行の読み取りに失敗しました: %w", err)
		}
		revisions = append(revisions, *rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("修正履歴一覧の走査に失敗しました: %w", err)
	}
	return revisions, nil
}

func scanRevision(s rowScanner) (*model.Revision, error) {
	rev := &model.Revision{}
	var raw []byte
	if err := s.Scan(&rev.ID, &rev.SubjectID, &rev.Enabled, &raw, &rev.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &rev.Detail); err != nil {
		return nil, fmt.Errorf("detailカラムのデコードに失敗しました: %w", err)
	}
	return rev, nil
}
