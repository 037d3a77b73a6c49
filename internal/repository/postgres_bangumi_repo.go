package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/bgmx/internal/model"
)

// PostgresBangumiRepo はPostgreSQLを使用したbangumiデータのリポジトリ。
type PostgresBangumiRepo struct {
	db *sql.DB
}

// NewPostgresBangumiRepo はPostgresBangumiRepoを生成する。
func NewPostgresBangumiRepo(db *sql.DB) *PostgresBangumiRepo {
	return &PostgresBangumiRepo{db: db}
}

// FindByID は指定IDのデータを取得する。見つからない場合はnilを返す。
func (r *PostgresBangumiRepo) FindByID(ctx context.Context, id int64) (*model.Bangumi, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, data, created_at, updated_at FROM bangumis WHERE id = $1`,
		id,
	)
	b, err := scanBangumi(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bangumiデータの取得に失敗しました: %w", err)
	}
	return b, nil
}

// Upsert はデータを作成または上書きし、保存後の行を返す。
func (r *PostgresBangumiRepo) Upsert(ctx context.Context, id int64, data *model.BangumiData) (*model.Bangumi, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("bangumiデータのエンコードに失敗しました: %w", err)
	}

	row := r.db.QueryRowContext(ctx,
		`INSERT INTO bangumis (id, data, created_at, updated_at)
		 VALUES ($1, $2, now(), now())
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
		 RETURNING id, data, created_at, updated_at`,
		id, raw,
	)
	b, err := scanBangumi(row)
	if err != nil {
		return nil, fmt.Errorf("bangumiデータの保存に失敗しました: %w", err)
	}
	return b, nil
}

// ListAfter は cursor より大きいIDの行をID昇順で最大 limit 件取得する。
func (r *PostgresBangumiRepo) ListAfter(ctx context.Context, cursor int64, limit int) ([]*model.Bangumi, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, data, created_at, updated_at FROM bangumis
		 WHERE id > $1 ORDER BY id ASC LIMIT $2`,
		cursor, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("bangumiデータ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var list []*model.Bangumi
	for rows.Next() {
		b, err := scanBangumi(rows)
		if err != nil {
			return nil, fmt.Errorf("bangumiデータ行の読み取りに失敗しました: %w", err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bangumiデータ一覧の走査に失敗しました: %w", err)
	}
	return list, nil
}

// rowScanner は *sql.Row と *sql.Rows の共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBangumi(s rowScanner) (*model.Bangumi, error) {
	b := &model.Bangumi{}
	var raw []byte
	if err := s.Scan(&b.ID, &raw, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &b.Data); err != nil {
		return nil, fmt.Errorf("dataカラムのデコードに失敗しました: %w", err)
	}
	return b, nil
}
