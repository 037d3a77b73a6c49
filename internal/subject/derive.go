// Package subject は条目と修正履歴を扱うビジネスロジックを提供する。
// 条目はbgm.tvの生データから導出した基底スナップショットに、
// 有効な修正履歴を作成順に畳み込んだものとして保存される。
package subject

import (
	"cmp"
	"slices"

	"github.com/hitoshi/bgmx/internal/model"
)

// FromBangumi はbgm.tvの生データから条目の基底スナップショットを導出する。
// 修正履歴は適用しない。
func FromBangumi(b *model.Bangumi, n *TextNormalizer) *model.Subject {
	d := b.Data
	title := n.Term(d.DisplayName())

	return &model.Subject{
		ID:    b.ID,
		Title: title,
		Data: model.SubjectData{
			Title:     title,
			Platform:  d.Platform,
			OnairDate: d.Date,
			Rating: model.SubjectRating{
				Score: d.Rating.Score,
				Rank:  d.Rating.Rank,
			},
			Poster:  d.Images.Large,
			Images:  bangumiImages(d.Images),
			Summary: n.Summary(d.Summary),
			Alias:   n.Terms(d.Aliases()),
			Tags:    tagNames(d.Tags),
		},
		Search: model.SubjectSearch{
			Include: n.Terms([]string{title, d.Name}),
		},
	}
}

// bangumiImages は空でない画像URLを大きい順に並べる。
func bangumiImages(images model.BangumiImages) []model.SubjectImage {
	candidates := []struct {
		quality string
		src     string
	}{
		{"large", images.Large},
		{"common", images.Common},
		{"medium", images.Medium},
		{"small", images.Small},
		{"grid", images.Grid},
	}

	out := []model.SubjectImage{}
	for _, c := range candidates {
		if c.src == "" {
			continue
		}
		out = append(out, model.SubjectImage{Provider: "bgm", Quality: c.quality, Src: c.src})
	}
	return out
}

// tagNames はタグ名を件数の多い順に返す。同数の場合は元の順序を保つ。
func tagNames(tags []model.BangumiTag) []string {
	sorted := slices.Clone(tags)
	slices.SortStableFunc(sorted, func(a, b model.BangumiTag) int {
		return cmp.Compare(b.Count, a.Count)
	})

	names := make([]string, 0, len(sorted))
	for _, t := range sorted {
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return names
}
