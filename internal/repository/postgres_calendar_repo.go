package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/bgmx/internal/model"
)

// PostgresCalendarRepo はPostgreSQLを使用した放送カレンダーリポジトリ。
type PostgresCalendarRepo struct {
	db *sql.DB
}

// NewPostgresCalendarRepo はPostgresCalendarRepoを生成する。
func NewPostgresCalendarRepo(db *sql.DB) *PostgresCalendarRepo {
	return &PostgresCalendarRepo{db: db}
}

// Replace はカレンダー全体を entries で置き換える。
// 削除と挿入は同一トランザクションで行う。
func (r *PostgresCalendarRepo) Replace(ctx context.Context, entries []model.CalendarEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM calendars`); err != nil {
		return fmt.Errorf("カレンダーの削除に失敗しました: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO calendars (id, platform, weekday, created_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (id) DO UPDATE SET platform = EXCLUDED.platform, weekday = EXCLUDED.weekday`,
	)
	if err != nil {
		return fmt.Errorf("カレンダー挿入文の準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		var weekday sql.NullInt16
		if e.Weekday != nil {
			weekday = sql.NullInt16{Int16: int16(*e.Weekday), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, e.ID, string(e.Platform), weekday); err != nil {
			return fmt.Errorf("カレンダー行の挿入に失敗しました: id=%d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListActive は条目が存在するカレンダー行を、条目と結合してID昇順で取得する。
func (r *PostgresCalendarRepo) ListActive(ctx context.Context) ([]model.CalendarSubject, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.title, s.data, s.search, s.created_at, s.updated_at,
		        c.platform, c.weekday
		 FROM calendars c
		 JOIN subjects s ON s.id = c.id
		 ORDER BY c.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("カレンダーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var list []model.CalendarSubject
	for rows.Next() {
		var cs model.CalendarSubject
		var data, search []byte
		var platform string
		var weekday sql.NullInt16
		if err := rows.Scan(
			&cs.ID, &cs.Title, &data, &search, &cs.CreatedAt, &cs.UpdatedAt,
			&platform, &weekday,
		); err != nil {
			return nil, fmt.Errorf("カレンダー行の読み取りに失敗しました: %w", err)
		}
		if err := decodeSubjectJSON(&cs.Subject, data, search); err != nil {
			return nil, err
		}
		cs.Platform = model.CalendarPlatform(platform)
		if weekday.Valid {
			w := int(weekday.Int16)
			cs.Weekday = &w
		}
		list = append(list, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カレンダーの走査に失敗しました: %w", err)
	}
	return list, nil
}
