// Package printer は条目・bgm.tv生データ・放送カレンダーを端末向けに整形して出力する。
package printer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hitoshi/bgmx/internal/model"
	"github.com/hitoshi/bgmx/internal/subject"
)

const (
	labelWidth     = 10
	datetimeLayout = "2006-01-02 15:04:05"
)

// weekdayNames は 0(月)〜6(日) の曜日名。
var weekdayNames = [7]string{"月曜日", "火曜日", "水曜日", "木曜日", "金曜日", "土曜日", "日曜日"}

// Printer は端末向けの出力を行う。
// 出力先が端末でない場合は装飾を付けない。
type Printer struct {
	w        io.Writer
	label    lipgloss.Style
	heading  lipgloss.Style
	enabled  lipgloss.Style
	disabled lipgloss.Style
	dim      lipgloss.Style
}

// New はwに出力するPrinterを生成する。
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w: w,
		label: r.NewStyle().
			Bold(true).
			Width(labelWidth).
			Align(lipgloss.Right),
		heading: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51")),
		enabled: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")),
		disabled: r.NewStyle().
			Strikethrough(true).
			Foreground(lipgloss.Color("245")),
		dim: r.NewStyle().
			Foreground(lipgloss.Color("245")),
	}
}

func (p *Printer) line(label, value string) {
	fmt.Fprintf(p.w, "%s  %s\n", p.label.Render(label), value)
}

// list は値の一覧を、1行目にだけラベルを付けて出力する。
func (p *Printer) list(label string, values []string) {
	for i, v := range values {
		if i == 0 {
			p.line(label, v)
			continue
		}
		p.line("", v)
	}
}

func formatDatetime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(datetimeLayout)
}

// Subject は条目と修正履歴を出力する。
func (p *Printer) Subject(data *subject.SubjectWithRevisions) {
	s := data.Subject
	if s == nil {
		fmt.Fprintln(p.w, p.dim.Render("条目はまだ生成されていません"))
	} else {
		p.line("id", fmt.Sprint(s.ID))
		p.line("name", s.Title)
		p.line("platform", s.Data.Platform)
		p.line("date", s.Data.OnairDate)
		p.line("rating", fmt.Sprintf("%v #%d", s.Data.Rating.Score, s.Data.Rating.Rank))
		p.line("updated", formatDatetime(s.UpdatedAt))

		fmt.Fprintln(p.w)
		p.list("include", s.Search.Include)
		p.list("exclude", s.Search.Exclude)
		p.list("keywords", s.Search.Keywords)
		if s.Search.After != nil {
			p.line("after", formatDatetime(*s.Search.After))
		}
		if s.Search.Before != nil {
			p.line("before", formatDatetime(*s.Search.Before))
		}
	}

	if len(data.Revisions) > 0 {
		fmt.Fprintln(p.w)
		p.line("revisions", fmt.Sprintf("x%d", len(data.Revisions)))
		for _, rev := range data.Revisions {
			p.Revision(rev)
		}
	}
}

// Revision は修正履歴1件を出力する。無効な修正履歴には取り消し線と (無効) を付ける。
func (p *Printer) Revision(rev model.Revision) {
	id := fmt.Sprintf("#%d", rev.ID)
	if rev.Enabled {
		id = p.enabled.Render(id)
	} else {
		id = p.disabled.Render(id) + " (無効)"
	}
	fmt.Fprintf(p.w, "  - %s: %s %s %s %s\n",
		id,
		rev.Detail.Operation,
		rev.Detail.Path,
		string(rev.Detail.Value),
		p.dim.Render(formatDatetime(rev.CreatedAt)),
	)
}

// Bangumi はbgm.tvの生データを出力する。
func (p *Printer) Bangumi(b *model.Bangumi) {
	d := b.Data
	name := d.DisplayName()
	if name == "" {
		name = "?"
	}

	p.line("id", fmt.Sprint(b.ID))
	p.line("name", name)
	p.line("platform", d.Platform)
	p.line("date", d.Date)
	p.line("rating", fmt.Sprintf("%v #%d (count. %d)", d.Rating.Score, d.Rating.Rank, d.Rating.Total))
	p.list("alias", d.Aliases())
	p.line("updated", formatDatetime(b.UpdatedAt))
}

// Calendar は放送カレンダーを曜日ごとに出力する。
func (p *Printer) Calendar(cal *model.Calendar) {
	for i, items := range cal.Calendar {
		fmt.Fprintln(p.w, p.heading.Render(weekdayNames[i]))
		for _, item := range items {
			p.calendarItem(item)
		}
		fmt.Fprintln(p.w)
	}

	fmt.Fprintln(p.w, p.heading.Render("web"))
	for _, item := range cal.Web {
		p.calendarItem(item)
	}
}

func (p *Printer) calendarItem(item model.CalendarSubject) {
	date := item.Data.OnairDate
	if date == "" {
		date = "?"
	}
	fmt.Fprintf(p.w, "%s %s\n", item.Title, p.dim.Render(fmt.Sprintf("(id: %d, %s)", item.ID, date)))
}

// Summary は同期処理などの結果を1行で出力する。
func (p *Printer) Summary(parts ...string) {
	fmt.Fprintln(p.w, strings.Join(parts, ", "))
}
