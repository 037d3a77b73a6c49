// Package model はドメインモデルを定義する。
package model

import (
	"slices"
	"time"
)

// Subject は公開用に整形された条目を表す。
// Data はbgm.tvの生データから導出され、Search は導出値に修正履歴（Revision）を畳み込んだ結果となる。
type Subject struct {
	ID        int64         `json:"id"`
	Title     string        `json:"title"`
	Data      SubjectData   `json:"data"`
	Search    SubjectSearch `json:"search"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// SubjectData は条目のメタデータ。
type SubjectData struct {
	Title     string         `json:"title"`
	Platform  string         `json:"platform"`
	OnairDate string         `json:"onair_date,omitempty"`
	Rating    SubjectRating  `json:"rating"`
	Poster    string         `json:"poster"`
	Images    []SubjectImage `json:"images"`
	Summary   string         `json:"summary"`
	Alias     []string       `json:"alias"`
	Tags      []string       `json:"tags"`
}

// SubjectRating は評価スコアと順位。
type SubjectRating struct {
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// SubjectImage は画像の参照。
type SubjectImage struct {
	Provider string `json:"provider"` // bgm, tmdb
	Quality  string `json:"quality"`
	Src      string `json:"src"`
}

// SubjectSearch はリソース検索用の設定。
// nilのスライス・ポインタは「未設定」を表す。
type SubjectSearch struct {
	Include  []string   `json:"include"`
	Exclude  []string   `json:"exclude,omitempty"`
	Keywords []string   `json:"keywords,omitempty"`
	After    *time.Time `json:"after,omitempty"`
	Before   *time.Time `json:"before,omitempty"`
}

// Clone はSubjectの深いコピーを返す。
func (s *Subject) Clone() *Subject {
	if s == nil {
		return nil
	}
	c := *s
	c.Data.Images = slices.Clone(s.Data.Images)
	c.Data.Alias = slices.Clone(s.Data.Alias)
	c.Data.Tags = slices.Clone(s.Data.Tags)
	c.Search = s.Search.Clone()
	return &c
}

// Clone はSubjectSearchの深いコピーを返す。
// nilはnilのまま保持し、「未設定」と「空」を区別する。
func (s SubjectSearch) Clone() SubjectSearch {
	return SubjectSearch{
		Include:  slices.Clone(s.Include),
		Exclude:  slices.Clone(s.Exclude),
		Keywords: slices.Clone(s.Keywords),
		After:    cloneTime(s.After),
		Before:   cloneTime(s.Before),
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
