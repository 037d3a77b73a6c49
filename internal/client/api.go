package client

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/bgmx/internal/model"
	"github.com/hitoshi/bgmx/internal/pagination"
	"github.com/hitoshi/bgmx/internal/subject"
)

// GetSubject は条目と有効な修正履歴を取得する。
func (c *Client) GetSubject(ctx context.Context, id int64) (*subject.SubjectWithRevisions, error) {
	env, err := c.get(ctx, "/subject/"+pathID(id), nil, false)
	if err != nil {
		return nil, err
	}
	var out subject.SubjectWithRevisions
	if err := decodeData(env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRevisions は条目と無効化されたものを含む全修正履歴を取得する。
func (c *Client) ListRevisions(ctx context.Context, id int64) (*subject.SubjectWithRevisions, error) {
	env, err := c.get(ctx, "/subject/"+pathID(id)+"/revisions", nil, true)
	if err != nil {
		return nil, err
	}
	var out subject.SubjectWithRevisions
	if err := decodeData(env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRevision は修正履歴を作成する。
func (c *Client) CreateRevision(ctx context.Context, id int64, detail model.RevisionDetail) (*subject.SubjectWithRevisions, error) {
	body := struct {
		Detail model.RevisionDetail `json:"detail"`
	}{Detail: detail}
	return c.writeSubject(ctx, http.MethodPost, "/subject/"+pathID(id)+"/revision", body)
}

// EnableRevision は修正履歴を有効にする。
func (c *Client) EnableRevision(ctx context.Context, id, revisionID int64) (*subject.SubjectWithRevisions, error) {
	return c.writeSubject(ctx, http.MethodPut, "/subject/"+pathID(id)+"/revision/"+pathID(revisionID), nil)
}

// DisableRevision は修正履歴を無効にする。
func (c *Client) DisableRevision(ctx context.Context, id, revisionID int64) (*subject.SubjectWithRevisions, error) {
	return c.writeSubject(ctx, http.MethodDelete, "/subject/"+pathID(id)+"/revision/"+pathID(revisionID), nil)
}

func (c *Client) writeSubject(ctx context.Context, method, path string, body any) (*subject.SubjectWithRevisions, error) {
	env, err := c.do(ctx, method, path, nil, body, true)
	if err != nil {
		return nil, err
	}
	var out subject.SubjectWithRevisions
	if err := decodeData(env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSubjects は条目を1ページ取得する。
func (c *Client) ListSubjects(ctx context.Context, cursor int64, limit int) (pagination.Page[*model.Subject], error) {
	return listPage[*model.Subject](ctx, c, "/subjects", cursor, limit)
}

// Subjects はすべての条目を順に列挙する。
func (c *Client) Subjects(ctx context.Context) iter.Seq2[*model.Subject, error] {
	return pagination.Walk(ctx, func(ctx context.Context, cursor int64) (pagination.Page[*model.Subject], error) {
		return c.ListSubjects(ctx, cursor, pagination.DefaultLimit)
	})
}

// ListBangumis はbgm.tvの生データを1ページ取得する。
func (c *Client) ListBangumis(ctx context.Context, cursor int64, limit int) (pagination.Page[*model.Bangumi], error) {
	return listPage[*model.Bangumi](ctx, c, "/bangumis", cursor, limit)
}

// Bangumis はbgmwに保存されているbgm.tvの生データを順に列挙する。
// 同期処理のリモート列挙として使用する。
func (c *Client) Bangumis(ctx context.Context) iter.Seq2[*model.Bangumi, error] {
	return pagination.Walk(ctx, func(ctx context.Context, cursor int64) (pagination.Page[*model.Bangumi], error) {
		return c.ListBangumis(ctx, cursor, pagination.DefaultLimit)
	})
}

func listPage[T any](ctx context.Context, c *Client, path string, cursor int64, limit int) (pagination.Page[T], error) {
	query := url.Values{}
	query.Set("cursor", strconv.FormatInt(cursor, 10))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	env, err := c.get(ctx, path, query, false)
	if err != nil {
		return pagination.Page[T]{}, err
	}
	var data []T
	if err := decodeData(env, &data); err != nil {
		return pagination.Page[T]{}, err
	}
	if data == nil {
		data = []T{}
	}
	return pagination.Page[T]{Data: data, NextCursor: env.NextCursor}, nil
}

// GetBangumi はbgm.tvの生データを取得する。
func (c *Client) GetBangumi(ctx context.Context, id int64) (*model.Bangumi, error) {
	env, err := c.get(ctx, "/bangumi/"+pathID(id), nil, false)
	if err != nil {
		return nil, err
	}
	var out model.Bangumi
	if err := decodeData(env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutBangumi はbgm.tvの生データをbgmwに保存する。bgmw側で条目が再構築される。
func (c *Client) PutBangumi(ctx context.Context, id int64, data *model.BangumiData) (*model.Bangumi, error) {
	if data == nil {
		return nil, fmt.Errorf("bangumiデータがありません: %d", id)
	}
	body := struct {
		Data *model.BangumiData `json:"data"`
	}{Data: data}

	env, err := c.do(ctx, http.MethodPut, "/bangumi/"+pathID(id), nil, body, true)
	if err != nil {
		return nil, err
	}
	var out model.Bangumi
	if err := decodeData(env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCalendar は放送カレンダーを取得する。
func (c *Client) GetCalendar(ctx context.Context) (*model.Calendar, error) {
	env, err := c.get(ctx, "/calendar", nil, false)
	if err != nil {
		return nil, err
	}
	var out model.Calendar
	if err := decodeData(env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCalendar は放送カレンダー全体を置き換え、登録件数を返す。
func (c *Client) UpdateCalendar(ctx context.Context, entries []model.CalendarEntry) (int, error) {
	if entries == nil {
		entries = []model.CalendarEntry{}
	}
	body := struct {
		Calendar []model.CalendarEntry `json:"calendar"`
	}{Calendar: entries}

	env, err := c.do(ctx, http.MethodPost, "/calendar", nil, body, true)
	if err != nil {
		return 0, err
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := decodeData(env, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}
