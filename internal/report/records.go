package report

import (
	"cmp"
	"context"

	"github.com/hitoshi/bgmx/internal/model"
)

// SubjectRecord は条目をファイルに書き出すときの形式。
// 画像・概要・別名は full 指定時のみ含める。
type SubjectRecord struct {
	ID        int64                `json:"id"`
	Title     string               `json:"title"`
	Platform  string               `json:"platform"`
	OnairDate string               `json:"onair_date,omitempty"`
	Rating    model.SubjectRating  `json:"rating"`
	Poster    string               `json:"poster"`
	Images    []model.SubjectImage `json:"images,omitempty"`
	Summary   string               `json:"summary,omitempty"`
	Alias     []string             `json:"alias,omitempty"`
	Tags      []string             `json:"tags"`
	Search    model.SubjectSearch  `json:"search"`
}

// NewSubjectRecord は条目から書き出し用のレコードを生成する。
func NewSubjectRecord(s *model.Subject, full bool) SubjectRecord {
	rec := SubjectRecord{
		ID:        s.ID,
		Title:     s.Title,
		Platform:  s.Data.Platform,
		OnairDate: s.Data.OnairDate,
		Rating:    s.Data.Rating,
		Poster:    s.Data.Poster,
		Tags:      s.Data.Tags,
		Search:    s.Search,
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if full {
		rec.Images = s.Data.Images
		rec.Summary = s.Data.Summary
		rec.Alias = s.Data.Alias
	}
	return rec
}

// DumpSubjects は条目を放送年月ごとに rootDir/YYYY/MM.json へ書き出す。
func DumpSubjects(ctx context.Context, rootDir string, subjects []*model.Subject) ([]string, error) {
	records := make([]SubjectRecord, 0, len(subjects))
	for _, s := range subjects {
		records = append(records, NewSubjectRecord(s, true))
	}
	return DumpBy(ctx, rootDir, records,
		func(r SubjectRecord) string { return MonthKey(r.OnairDate) },
		func(a, b SubjectRecord) int { return cmp.Compare(a.ID, b.ID) },
	)
}

// DumpBangumis はbgm.tvの生データを放送年月ごとに rootDir/YYYY/MM.json へ書き出す。
func DumpBangumis(ctx context.Context, rootDir string, bangumis []*model.Bangumi) ([]string, error) {
	return DumpBy(ctx, rootDir, bangumis,
		func(b *model.Bangumi) string { return MonthKey(b.Data.Date) },
		func(a, b *model.Bangumi) int { return cmp.Compare(a.ID, b.ID) },
	)
}

// calendarFile は放送カレンダーのファイル形式。
type calendarFile struct {
	Version  string             `json:"version,omitempty"`
	Calendar [7][]SubjectRecord `json:"calendar"`
	Web      []SubjectRecord    `json:"web"`
}

// DumpCalendar は放送カレンダーをpathに書き出す。
// 各条目のplatformが空の場合はカレンダー上の配信区分で補う。
func DumpCalendar(path string, cal *model.Calendar, version string, full bool) error {
	toRecords := func(items []model.CalendarSubject) []SubjectRecord {
		out := make([]SubjectRecord, 0, len(items))
		for _, item := range items {
			rec := NewSubjectRecord(&item.Subject, full)
			if rec.Platform == "" {
				rec.Platform = string(item.Platform)
			}
			out = append(out, rec)
		}
		return out
	}

	file := calendarFile{Version: version, Web: toRecords(cal.Web)}
	for i := range cal.Calendar {
		file.Calendar[i] = toRecords(cal.Calendar[i])
	}
	return WriteJSON(path, file)
}
