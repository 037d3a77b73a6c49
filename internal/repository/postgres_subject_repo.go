package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/bgmx/internal/model"
)

// PostgresSubjectRepo はPostgreSQLを使用した条目リポジトリ。
type PostgresSubjectRepo struct {
	db *sql.DB
}

// NewPostgresSubjectRepo はPostgresSubjectRepoを生成する。
func NewPostgresSubjectRepo(db *sql.DB) *PostgresSubjectRepo {
	return &PostgresSubjectRepo{db: db}
}

const subjectColumns = `id, title, data, search, created_at, updated_at`

// FindByID は指定IDの条目を取得する。見つからない場合はnilを返す。
func (r *PostgresSubjectRepo) FindByID(ctx context.Context, id int64) (*model.Subject, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE id = $1`,
		id,
	)
	s, err := scanSubject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("条目の取得に失敗しました: %w", err)
	}
	return s, nil
}

// Upsert は条目を作成または上書きし、保存後の行を返す。
func (r *PostgresSubjectRepo) Upsert(ctx context.Context, subject *model.Subject) (*model.Subject, error) {
	data, err := json.Marshal(subject.Data)
	if err != nil {
		return nil, fmt.Errorf("条目データのエンコードに失敗しました: %w", err)
	}
	search, err := json.Marshal(subject.Search)
	if err != nil {
		return nil, fmt.Errorf("検索設定のエンコードに失敗しました: %w", err)
	}

	row := r.db.QueryRowContext(ctx,
		`INSERT INTO subjects (id, title, data, search, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())
		 ON CONFLICT (id) DO UPDATE SET
		     title = EXCLUDED.title,
		     data = EXCLUDED.data,
		     search = EXCLUDED.search,
		     updated_at = now()
		 RETURNING `+subjectColumns,
		subject.ID, subject.Title, data, search,
	)
	saved, err := scanSubject(row)
	if err != nil {
		return nil, fmt.Errorf("条目の保存に失敗しました: %w", err)
	}
	return saved, nil
}

// ListAfter は cursor より大きいIDの条目をID昇順で最大 limit 件取得する。
func (r *PostgresSubjectRepo) ListAfter(ctx context.Context, cursor int64, limit int) ([]*model.Subject, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subjectColumns+` FROM subjects
		 WHERE id > $1 ORDER BY id ASC LIMIT $2`,
		cursor, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("条目一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var list []*model.Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("条目行の読み取りに失敗しました: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("条目一覧の走査に失敗しました: %w", err)
	}
	return list, nil
}

func scanSubject(s rowScanner) (*model.Subject, error) {
	subject := &model.Subject{}
	var data, search []byte
	if err := s.Scan(&subject.ID, &subject.Title, &data, &search, &subject.CreatedAt, &subject.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeSubjectJSON(subject, data, search); err != nil {
		return nil, err
	}
	return subject, nil
}

func decodeSubjectJSON(subject *model.Subject, data, search []byte) error {
	if err := json.Unmarshal(data, &subject.Data); err != nil {
		return fmt.Errorf("dataカラムのデコードに失敗しました: %w", err)
	}
	if err := json.Unmarshal(search, &subject.Search); err != nil {
		return fmt.Errorf("searchカラムのデコードに失敗しました: %w", err)
	}
	return nil
}
