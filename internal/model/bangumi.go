// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Bangumi はbgm.tvから取得した生の条目データを表す。
// サーバー側では bangumis テーブルに保存され、Subject の基底スナップショットの元になる。
type Bangumi struct {
	ID        int64       `json:"id"`
	Data      BangumiData `json:"data"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// BangumiData はbgm.tv API（/v0/subjects/{id}）のレスポンスのうち保持するフィールド。
type BangumiData struct {
	ID            int64          `json:"id"`
	Type          int            `json:"type"`
	Name          string         `json:"name"`
	NameCN        string         `json:"name_cn"`
	Summary       string         `json:"summary"`
	Date          string         `json:"date,omitempty"`
	Platform      string         `json:"platform"`
	Images        BangumiImages  `json:"images"`
	Infobox       []InfoboxEntry `json:"infobox,omitempty"`
	Rating        BangumiRating  `json:"rating"`
	Tags          []BangumiTag   `json:"tags,omitempty"`
	Eps           int            `json:"eps"`
	TotalEpisodes int            `json:"total_episodes"`
	NSFW          bool           `json:"nsfw"`
}

// BangumiImages は条目画像のURL群。
type BangumiImages struct {
	Large  string `json:"large"`
	Common string `json:"common"`
	Medium string `json:"medium"`
	Small  string `json:"small"`
	Grid   string `json:"grid"`
}

// BangumiRating は条目の評価情報。
type BangumiRating struct {
	Rank  int     `json:"rank"`
	Total int     `json:"total"`
	Score float64 `json:"score"`
}

// BangumiTag はユーザーが付与したタグとその件数。
type BangumiTag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// InfoboxEntry はinfoboxの1項目。
// valueは文字列または {"v": "..."} の配列のどちらかで返される。
type InfoboxEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Values はinfobox項目の値を文字列スライスとして返す。
// 解釈できない形式の場合は空スライスを返す。
func (e InfoboxEntry) Values() []string {
	var s string
	if err := json.Unmarshal(e.Value, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return []string{s}
		}
		return nil
	}

	var list []struct {
		K string `json:"k"`
		V string `json:"v"`
	}
	if err := json.Unmarshal(e.Value, &list); err != nil {
		return nil
	}
	values := make([]string, 0, len(list))
	for _, item := range list {
		if v := strings.TrimSpace(item.V); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// DisplayName は表示用の名前を返す。中文名があればそれを優先する。
func (d BangumiData) DisplayName() string {
	if name := strings.TrimSpace(d.NameCN); name != "" {
		return name
	}
	return strings.TrimSpace(d.Name)
}

// Aliases は条目の別名一覧を返す。
// name_cn、name、infoboxの「中文名」「别名」を重複なく出現順に並べる。
func (d BangumiData) Aliases() []string {
	seen := make(map[string]struct{})
	var aliases []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		aliases = append(aliases, v)
	}

	add(d.NameCN)
	add(d.Name)
	for _, entry := range d.Infobox {
		if entry.Key == "中文名" || entry.Key == "别名" {
			for _, v := range entry.Values() {
				add(v)
			}
		}
	}
	return aliases
}
